package identity

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPForwardedForPrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.1:52000"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.Header.Set("X-Real-IP", "198.51.100.2")

	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestClientIPRealIPFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.1:52000"
	r.Header.Set("X-Real-IP", "198.51.100.2")

	assert.Equal(t, "198.51.100.2", ClientIP(r))
}

func TestClientIPRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.1:52000"

	assert.Equal(t, "192.168.1.1", ClientIP(r))
}

func TestResolveSessionHeaderWins(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Session-ID", "header-session")

	v := Resolve(r, "", "body-session")
	assert.Equal(t, "header-session", v.SessionID)
}

func TestResolveSessionBodyHint(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)

	v := Resolve(r, "", "body-session")
	assert.Equal(t, "body-session", v.SessionID)
}

func TestResolveSessionSynthesized(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.1:52000"

	v := Resolve(r, "", "")
	assert.True(t, strings.HasPrefix(v.SessionID, "192.168.1.1-"))

	// A second resolve must not collide
	v2 := Resolve(r, "", "")
	assert.NotEqual(t, v.SessionID, v2.SessionID)
}

func TestResolveUserAgentFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)

	v := Resolve(r, "", "sess")
	assert.Equal(t, "unknown", v.UserAgent)

	r.Header.Set("User-Agent", "Mozilla/5.0")
	v = Resolve(r, "", "sess")
	assert.Equal(t, "Mozilla/5.0", v.UserAgent)
}

func TestViewerAnonymous(t *testing.T) {
	v := Viewer{}
	assert.True(t, v.Anonymous())
	assert.Nil(t, v.UserIDPtr())

	v.UserID = "user-1"
	assert.False(t, v.Anonymous())
	if assert.NotNil(t, v.UserIDPtr()) {
		assert.Equal(t, "user-1", *v.UserIDPtr())
	}
}
