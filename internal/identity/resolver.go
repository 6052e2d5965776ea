package identity

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Viewer is everything the engagement engine needs to know about who is
// looking at a page. UserID is empty for anonymous visitors; SessionID is
// always set, synthesized when the client sent nothing usable.
type Viewer struct {
	UserID    string
	SessionID string
	IPAddress string
	UserAgent string
}

// Anonymous reports whether the viewer has no authenticated user
func (v Viewer) Anonymous() bool {
	return v.UserID == ""
}

// UserIDPtr returns the user id as a nullable column value
func (v Viewer) UserIDPtr() *string {
	if v.UserID == "" {
		return nil
	}
	id := v.UserID
	return &id
}

// Resolve builds a Viewer from the request. userID comes from the auth
// middleware (empty when unauthenticated); sessionHint is the session id
// the handler pulled from the request body or query, tried after the
// X-Session-ID header.
func Resolve(r *http.Request, userID, sessionHint string) Viewer {
	ip := ClientIP(r)

	session := strings.TrimSpace(r.Header.Get("X-Session-ID"))
	if session == "" {
		session = strings.TrimSpace(sessionHint)
	}
	if session == "" {
		session = synthesizeSessionID(ip)
	}

	ua := strings.TrimSpace(r.UserAgent())
	if ua == "" {
		ua = "unknown"
	}

	return Viewer{
		UserID:    userID,
		SessionID: session,
		IPAddress: ip,
		UserAgent: ua,
	}
}

// ClientIP extracts the client address, preferring proxy headers.
// X-Forwarded-For may carry a chain; the first entry is the client.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}

	return "127.0.0.1"
}

// synthesizeSessionID builds a fallback session identifier. It is stable
// for nothing beyond this request, which is the point: a client that
// refuses to identify its session gets no dedup window.
func synthesizeSessionID(ip string) string {
	return fmt.Sprintf("%s-%d-%s", ip, time.Now().UnixNano(), uuid.New().String()[:8])
}
