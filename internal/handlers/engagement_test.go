package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/engagement"
	"github.com/gracechapel/backend/internal/logger"
	"github.com/gracechapel/backend/internal/models"
)

type EngagementHandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	handlers *Handlers
	testUser *models.User
}

func (suite *EngagementHandlersTestSuite) SetupTest() {
	logger.Log = zap.NewNop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(suite.T(), err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.CommunityPost{},
		&models.ViewEvent{},
		&models.PostLike{},
		&models.EngagementSession{},
		&models.PostStats{},
	)
	require.NoError(suite.T(), err)

	database.DB = db
	suite.db = db

	user := models.User{Email: "alice@example.com", Username: "alice"}
	require.NoError(suite.T(), db.Create(&user).Error)
	suite.testUser = &user

	now := time.Now().UTC()
	post := models.Post{
		Slug:        "easter-service",
		Title:       "Easter Service",
		Published:   true,
		PublishedAt: &now,
	}
	require.NoError(suite.T(), db.Create(&post).Error)

	svc := engagement.NewService(db, engagement.NewMemoryViewStore(), nil, engagement.DefaultOptions())
	suite.handlers = NewHandlers(svc)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.setupRoutes()
}

// setupRoutes configures the test router with a header-based auth shim
func (suite *EngagementHandlersTestSuite) setupRoutes() {
	optionalAuth := func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
	requireAuth := func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}

	suite.router.GET("/health", suite.handlers.Health)

	api := suite.router.Group("/api/v1")

	api.GET("/blog", suite.handlers.ListPosts)
	api.GET("/blog/:slug", suite.handlers.GetPost)
	api.GET("/community", suite.handlers.ListCommunityPosts)
	api.GET("/community/:slug", suite.handlers.GetCommunityPost)
	api.POST("/community", requireAuth, suite.handlers.CreateCommunityPost)

	content := api.Group("/:ctype/:slug")
	content.POST("/view", optionalAuth, suite.handlers.RecordView)
	content.POST("/engagement", optionalAuth, suite.handlers.RecordEngagement)
	content.POST("/share", optionalAuth, suite.handlers.RecordShare)
	content.GET("/stats", optionalAuth, suite.handlers.Stats)
	content.POST("/like", requireAuth, suite.handlers.Like)
	content.DELETE("/like", requireAuth, suite.handlers.Unlike)
}

func (suite *EngagementHandlersTestSuite) postJSON(path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *EngagementHandlersTestSuite) do(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *EngagementHandlersTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (suite *EngagementHandlersTestSuite) TestHealth() {
	w := suite.do("GET", "/health", nil)
	suite.Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal("ok", body["status"])
}

func (suite *EngagementHandlersTestSuite) TestRecordViewAndDedup() {
	w := suite.postJSON("/api/v1/blog/easter-service/view", gin.H{"session_id": "sess-1"}, nil)
	suite.Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal(true, body["success"])
	suite.Equal("sess-1", body["session_id"])
	suite.NotEmpty(body["view_id"])

	w = suite.postJSON("/api/v1/blog/easter-service/view", gin.H{"session_id": "sess-1"}, nil)
	suite.Equal(http.StatusOK, w.Code)
	body = suite.decode(w)
	suite.Equal(false, body["success"])
	suite.Equal("duplicate", body["reason"])
	suite.Equal("sess-1", body["session_id"])
}

func (suite *EngagementHandlersTestSuite) TestRecordViewEchoesSynthesizedSession() {
	w := suite.postJSON("/api/v1/blog/easter-service/view", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal(true, body["success"])

	session, _ := body["session_id"].(string)
	suite.Require().NotEmpty(session)

	// Replaying the echoed session id must hit the dedup window
	w = suite.postJSON("/api/v1/blog/easter-service/view", gin.H{"session_id": session}, nil)
	suite.Equal(http.StatusOK, w.Code)
	body = suite.decode(w)
	suite.Equal(false, body["success"])
	suite.Equal("duplicate", body["reason"])
}

func (suite *EngagementHandlersTestSuite) TestRecordViewFormBeacon() {
	form := url.Values{}
	form.Set("session_id", "beacon-1")
	form.Set("view_duration", "12.5")

	req := httptest.NewRequest("POST", "/api/v1/blog/easter-service/view", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal(true, body["success"])

	var event models.ViewEvent
	suite.Require().NoError(suite.db.First(&event, "session_id = ?", "beacon-1").Error)
	suite.Require().NotNil(event.ViewDuration)
	suite.Equal(12.5, *event.ViewDuration)
}

func (suite *EngagementHandlersTestSuite) TestRecordViewUnknownPost() {
	w := suite.postJSON("/api/v1/blog/no-such-post/view", gin.H{"session_id": "sess-1"}, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *EngagementHandlersTestSuite) TestRecordViewUnknownContentType() {
	w := suite.postJSON("/api/v1/podcast/easter-service/view", gin.H{"session_id": "sess-1"}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *EngagementHandlersTestSuite) TestEngagementValidation() {
	w := suite.postJSON("/api/v1/blog/easter-service/engagement",
		gin.H{"session_id": "sess-1", "scroll_depth": 150}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	body := suite.decode(w)
	suite.Equal("VALIDATION_ERROR", body["code"])
	suite.Equal("scroll_depth", body["field"])

	w = suite.postJSON("/api/v1/blog/easter-service/engagement",
		gin.H{"session_id": "sess-1", "time_on_page": -5}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.postJSON("/api/v1/blog/easter-service/engagement",
		gin.H{"session_id": "sess-1", "scroll_depth": 70, "time_on_page": 12, "clicks": 1}, nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *EngagementHandlersTestSuite) TestShareNormalizesPlatform() {
	w := suite.postJSON("/api/v1/blog/easter-service/share",
		gin.H{"session_id": "sess-1", "platform": "myspace"}, nil)
	suite.Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal("other", body["platform"])
	suite.Equal(float64(1), body["total_shares"])

	w = suite.postJSON("/api/v1/blog/easter-service/share",
		gin.H{"session_id": "sess-1", "platform": "twitter"}, nil)
	suite.Equal(http.StatusOK, w.Code)
	body = suite.decode(w)
	suite.Equal(float64(2), body["total_shares"])
}

func (suite *EngagementHandlersTestSuite) TestLikeRequiresAuth() {
	w := suite.postJSON("/api/v1/blog/easter-service/like", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *EngagementHandlersTestSuite) TestLikeConflictOnDuplicate() {
	headers := map[string]string{"X-User-ID": suite.testUser.ID}

	w := suite.postJSON("/api/v1/blog/easter-service/like", nil, headers)
	suite.Equal(http.StatusCreated, w.Code)
	body := suite.decode(w)
	suite.Equal(true, body["liked"])
	suite.Equal(float64(1), body["like_count"])

	w = suite.postJSON("/api/v1/blog/easter-service/like", nil, headers)
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.do("DELETE", "/api/v1/blog/easter-service/like", headers)
	suite.Equal(http.StatusOK, w.Code)
	body = suite.decode(w)
	suite.Equal(false, body["liked"])
	suite.Equal(float64(0), body["like_count"])
}

func (suite *EngagementHandlersTestSuite) TestUnlikeNotFound() {
	headers := map[string]string{"X-User-ID": suite.testUser.ID}

	w := suite.do("DELETE", "/api/v1/blog/easter-service/like", headers)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *EngagementHandlersTestSuite) TestStatsResponseShape() {
	suite.postJSON("/api/v1/blog/easter-service/view", gin.H{"session_id": "sess-1"}, nil)

	headers := map[string]string{"X-User-ID": suite.testUser.ID}
	suite.postJSON("/api/v1/blog/easter-service/like", nil, headers)

	w := suite.do("GET", "/api/v1/blog/easter-service/stats", headers)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("public, max-age=60", w.Header().Get("Cache-Control"))

	body := suite.decode(w)
	suite.Equal(float64(1), body["total_views"])
	suite.Equal(float64(1), body["total_likes"])
	suite.Equal(true, body["has_liked"])

	// Anonymous request sees the same counts without the like flag
	w = suite.do("GET", "/api/v1/blog/easter-service/stats", nil)
	suite.Equal(http.StatusOK, w.Code)
	body = suite.decode(w)
	suite.Equal(false, body["has_liked"])
}

func (suite *EngagementHandlersTestSuite) TestCommunityPostModeration() {
	headers := map[string]string{"X-User-ID": suite.testUser.ID}

	w := suite.postJSON("/api/v1/community", gin.H{
		"title": "Potluck Recap",
		"body":  "What a great evening.",
	}, headers)
	suite.Equal(http.StatusCreated, w.Code)

	var post models.CommunityPost
	suite.Require().NoError(suite.db.First(&post, "title = ?", "Potluck Recap").Error)
	suite.Equal(models.CommunityPostPending, post.Status)

	// Pending posts are invisible to readers and the engagement engine
	w = suite.do("GET", "/api/v1/community/"+post.Slug, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.postJSON("/api/v1/community/"+post.Slug+"/view", gin.H{"session_id": "s"}, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	suite.Require().NoError(suite.db.Model(&post).Update("status", models.CommunityPostApproved).Error)

	w = suite.do("GET", "/api/v1/community/"+post.Slug, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.postJSON("/api/v1/community/"+post.Slug+"/view", gin.H{"session_id": "s"}, nil)
	suite.Equal(http.StatusOK, w.Code)
}

func TestEngagementHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(EngagementHandlersTestSuite))
}
