package engagement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apierrors "github.com/gracechapel/backend/internal/errors"
	"github.com/gracechapel/backend/internal/identity"
	"github.com/gracechapel/backend/internal/logger"
	"github.com/gracechapel/backend/internal/models"
)

type EngagementTestSuite struct {
	suite.Suite
	db    *gorm.DB
	store *MemoryViewStore
	svc   *Service
	ref   ContentRef
}

func (suite *EngagementTestSuite) SetupTest() {
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

	now := time.Now().UTC()
	post := models.Post{
		Slug:        "easter-service",
		Title:       "Easter Service",
		Published:   true,
		PublishedAt: &now,
	}
	require.NoError(suite.T(), db.Create(&post).Error)

	suite.db = db
	suite.store = NewMemoryViewStore()
	suite.svc = NewService(db, suite.store, nil, DefaultOptions())

	ref, err := ResolveContent(db, models.ContentTypeChurch, "easter-service")
	require.NoError(suite.T(), err)
	suite.ref = ref
}

func (suite *EngagementTestSuite) viewer(session, ip string) identity.Viewer {
	return identity.Viewer{
		SessionID: session,
		IPAddress: ip,
		UserAgent: "test-agent",
	}
}

func (suite *EngagementTestSuite) TestResolveContentUnknownSlug() {
	_, err := ResolveContent(suite.db, models.ContentTypeChurch, "no-such-post")
	suite.Require().Error(err)

	var apiErr *apierrors.APIError
	suite.Require().True(errors.As(err, &apiErr))
	suite.Equal(404, apiErr.Status)
}

func (suite *EngagementTestSuite) TestResolveContentUnpublished() {
	draft := models.Post{Slug: "draft-post", Title: "Draft", Published: false}
	suite.Require().NoError(suite.db.Create(&draft).Error)

	_, err := ResolveContent(suite.db, models.ContentTypeChurch, "draft-post")
	suite.Require().Error(err)
}

func (suite *EngagementTestSuite) TestViewDedup() {
	ctx := context.Background()
	v := suite.viewer("sess-1", "10.0.0.1")

	result, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
	suite.Require().NoError(err)
	suite.True(result.Counted)
	suite.Equal("sess-1", result.SessionID)
	suite.NotEmpty(result.ViewID)

	result, err = suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
	suite.Require().NoError(err)
	suite.False(result.Counted)
	suite.Equal(ReasonDuplicate, result.Reason)
	suite.Equal("sess-1", result.SessionID)
	suite.Empty(result.ViewID)

	var count int64
	suite.db.Model(&models.ViewEvent{}).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *EngagementTestSuite) TestViewRateLimit() {
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		v := suite.viewer(fmt.Sprintf("sess-%d", i), "10.0.0.9")
		result, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
		suite.Require().NoError(err)
		suite.True(result.Counted, "view %d should count", i)
	}

	v := suite.viewer("sess-11", "10.0.0.9")
	result, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
	suite.Require().NoError(err)
	suite.False(result.Counted)
	suite.Equal(ReasonRateLimited, result.Reason)

	var count int64
	suite.db.Model(&models.ViewEvent{}).Count(&count)
	suite.Equal(int64(10), count)
}

func (suite *EngagementTestSuite) TestDuplicatesDoNotSpendRateBudget() {
	ctx := context.Background()

	// Hammer the same session; only the first view counts
	v := suite.viewer("sess-loop", "10.0.0.5")
	for i := 0; i < 5; i++ {
		_, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
		suite.Require().NoError(err)
	}

	// Nine fresh sessions from the same IP still fit the budget
	for i := 0; i < 9; i++ {
		fresh := suite.viewer(fmt.Sprintf("fresh-%d", i), "10.0.0.5")
		result, err := suite.svc.RecordView(ctx, suite.ref, fresh, ViewInput{})
		suite.Require().NoError(err)
		suite.True(result.Counted, "fresh view %d should count", i)
	}

	var count int64
	suite.db.Model(&models.ViewEvent{}).Count(&count)
	suite.Equal(int64(10), count)
}

func (suite *EngagementTestSuite) TestTrackerOutageSoftFails() {
	svc := NewService(suite.db, &FailingViewStore{Err: errors.New("connection refused")}, nil, DefaultOptions())

	result, err := svc.RecordView(context.Background(), suite.ref, suite.viewer("sess-1", "10.0.0.1"), ViewInput{})
	suite.Require().NoError(err)
	suite.False(result.Counted)
	suite.Equal(ReasonUnavailable, result.Reason)

	var count int64
	suite.db.Model(&models.ViewEvent{}).Count(&count)
	suite.Equal(int64(0), count)
}

func (suite *EngagementTestSuite) TestScrollDepthOnlyIncreases() {
	ctx := context.Background()
	v := suite.viewer("sess-1", "10.0.0.1")

	err := suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{ScrollDepth: 60, TimeOnPage: 30})
	suite.Require().NoError(err)

	err = suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{ScrollDepth: 30, TimeOnPage: 45})
	suite.Require().NoError(err)

	var session models.EngagementSession
	suite.Require().NoError(suite.db.First(&session, "session_id = ?", "sess-1").Error)
	suite.Equal(60, session.ScrollDepthMax)
	suite.Equal(45.0, session.TimeOnPage) // last write wins

	err = suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{ScrollDepth: 85, TimeOnPage: 50})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.db.First(&session, "session_id = ?", "sess-1").Error)
	suite.Equal(85, session.ScrollDepthMax)
}

func (suite *EngagementTestSuite) TestClicksAccumulate() {
	ctx := context.Background()
	v := suite.viewer("sess-1", "10.0.0.1")

	suite.Require().NoError(suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{Clicks: 2}))
	suite.Require().NoError(suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{Clicks: 3}))

	var session models.EngagementSession
	suite.Require().NoError(suite.db.First(&session, "session_id = ?", "sess-1").Error)
	suite.Equal(5, session.Clicks)
}

func (suite *EngagementTestSuite) TestViewDurationPropagates() {
	ctx := context.Background()
	v := suite.viewer("sess-1", "10.0.0.1")

	result, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
	suite.Require().NoError(err)
	suite.True(result.Counted)

	duration := 42.5
	err = suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{ScrollDepth: 10, ViewDuration: &duration})
	suite.Require().NoError(err)

	var event models.ViewEvent
	suite.Require().NoError(suite.db.First(&event, "session_id = ?", "sess-1").Error)
	suite.Require().NotNil(event.ViewDuration)
	suite.Equal(42.5, *event.ViewDuration)
}

func (suite *EngagementTestSuite) TestTimeOnPageFallsBackToViewDuration() {
	ctx := context.Background()
	v := suite.viewer("sess-1", "10.0.0.1")

	result, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
	suite.Require().NoError(err)
	suite.True(result.Counted)

	// The plain ping shape carries no explicit duration; time on page
	// still has to land on the view event
	err = suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{ScrollDepth: 50, TimeOnPage: 33, Clicks: 1})
	suite.Require().NoError(err)

	var event models.ViewEvent
	suite.Require().NoError(suite.db.First(&event, "session_id = ?", "sess-1").Error)
	suite.Require().NotNil(event.ViewDuration)
	suite.Equal(33.0, *event.ViewDuration)

	// An explicit duration still wins over time on page
	duration := 40.5
	err = suite.svc.RecordEngagement(ctx, suite.ref, v, EngagementInput{TimeOnPage: 60, ViewDuration: &duration})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.db.First(&event, "session_id = ?", "sess-1").Error)
	suite.Require().NotNil(event.ViewDuration)
	suite.Equal(40.5, *event.ViewDuration)
}

func (suite *EngagementTestSuite) TestShareAccumulation() {
	ctx := context.Background()
	v := suite.viewer("sess-1", "10.0.0.1")

	for i := 1; i <= 3; i++ {
		total, err := suite.svc.RecordShare(ctx, suite.ref, v, models.SharePlatformTwitter)
		suite.Require().NoError(err)
		suite.Equal(int64(i), total)
	}

	// Shares from another session roll into the content total
	other := suite.viewer("sess-2", "10.0.0.2")
	total, err := suite.svc.RecordShare(ctx, suite.ref, other, models.SharePlatformFacebook)
	suite.Require().NoError(err)
	suite.Equal(int64(4), total)

	var session models.EngagementSession
	suite.Require().NoError(suite.db.First(&session, "session_id = ?", "sess-1").Error)
	suite.Equal(3, session.Shares)
}

func (suite *EngagementTestSuite) makeUser(username string) models.User {
	user := models.User{
		Email:    username + "@example.com",
		Username: username,
	}
	suite.Require().NoError(suite.db.Create(&user).Error)
	return user
}

func (suite *EngagementTestSuite) TestLikeUnlikeRoundTrip() {
	ctx := context.Background()
	user := suite.makeUser("alice")

	count, err := suite.svc.Like(ctx, suite.ref, user.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)

	liked, err := suite.svc.HasLiked(ctx, suite.ref, user.ID)
	suite.Require().NoError(err)
	suite.True(liked)

	// Second like is a conflict
	_, err = suite.svc.Like(ctx, suite.ref, user.ID)
	suite.Require().Error(err)
	var apiErr *apierrors.APIError
	suite.Require().True(errors.As(err, &apiErr))
	suite.Equal(409, apiErr.Status)

	count, err = suite.svc.Unlike(ctx, suite.ref, user.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(0), count)

	liked, err = suite.svc.HasLiked(ctx, suite.ref, user.ID)
	suite.Require().NoError(err)
	suite.False(liked)

	// Unliking again is a not-found
	_, err = suite.svc.Unlike(ctx, suite.ref, user.ID)
	suite.Require().Error(err)
	suite.Require().True(errors.As(err, &apiErr))
	suite.Equal(404, apiErr.Status)
}

func (suite *EngagementTestSuite) TestLikeCountTracksLedger() {
	ctx := context.Background()
	alice := suite.makeUser("alice")
	bob := suite.makeUser("bob")

	count, err := suite.svc.Like(ctx, suite.ref, alice.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)

	count, err = suite.svc.Like(ctx, suite.ref, bob.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(2), count)

	stats, err := suite.svc.Stats(ctx, suite.ref, alice.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(2), stats.TotalLikes)
	suite.True(stats.HasLiked)

	count, err = suite.svc.Unlike(ctx, suite.ref, alice.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)

	stats, err = suite.svc.Stats(ctx, suite.ref, alice.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(1), stats.TotalLikes)
	suite.False(stats.HasLiked)
}

func (suite *EngagementTestSuite) TestStatsConsistency() {
	ctx := context.Background()
	user := suite.makeUser("carol")

	// Two anonymous sessions, one registered session
	for i, session := range []string{"anon-1", "anon-2"} {
		v := suite.viewer(session, fmt.Sprintf("10.0.1.%d", i))
		result, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
		suite.Require().NoError(err)
		suite.True(result.Counted)
	}

	registered := identity.Viewer{
		UserID:    user.ID,
		SessionID: "reg-1",
		IPAddress: "10.0.2.1",
		UserAgent: "test-agent",
	}
	result, err := suite.svc.RecordView(ctx, suite.ref, registered, ViewInput{})
	suite.Require().NoError(err)
	suite.True(result.Counted)

	stats, err := suite.svc.Stats(ctx, suite.ref, "")
	suite.Require().NoError(err)
	suite.Equal(int64(3), stats.TotalViews)
	suite.Equal(int64(3), stats.UniqueViews)
	suite.Equal(int64(1), stats.RegisteredViews)
	suite.Equal(int64(2), stats.AnonymousViews)
	suite.Equal(stats.TotalViews-stats.RegisteredViews, stats.AnonymousViews)
	suite.NotNil(stats.LastViewedAt)
}

func (suite *EngagementTestSuite) TestStatsRecomputeOnDrift() {
	ctx := context.Background()

	v := suite.viewer("sess-1", "10.0.0.1")
	_, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
	suite.Require().NoError(err)

	stats, err := suite.svc.Stats(ctx, suite.ref, "")
	suite.Require().NoError(err)
	suite.Equal(int64(1), stats.TotalViews)

	// Views landing outside this process (another node) show up as drift
	for i := 0; i < 7; i++ {
		event := models.ViewEvent{
			ContentType: suite.ref.Type,
			ContentID:   suite.ref.ID,
			SessionID:   fmt.Sprintf("external-%d", i),
			IPAddress:   "10.9.9.9",
		}
		suite.Require().NoError(suite.db.Create(&event).Error)
	}

	stats, err = suite.svc.Stats(ctx, suite.ref, "")
	suite.Require().NoError(err)
	suite.Equal(int64(8), stats.TotalViews)
}

func (suite *EngagementTestSuite) TestStatsAverageDuration() {
	ctx := context.Background()

	for i, d := range []float64{10, 20, 30} {
		duration := d
		v := suite.viewer(fmt.Sprintf("sess-%d", i), "10.0.0.1")
		_, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{ViewDuration: &duration})
		suite.Require().NoError(err)
	}

	// A view without a duration must not drag the average down
	v := suite.viewer("sess-nodur", "10.0.0.2")
	_, err := suite.svc.RecordView(ctx, suite.ref, v, ViewInput{})
	suite.Require().NoError(err)

	stats, err := suite.svc.Stats(ctx, suite.ref, "")
	suite.Require().NoError(err)
	suite.InDelta(20.0, stats.AvgViewDuration, 0.001)
}

func TestEngagementTestSuite(t *testing.T) {
	suite.Run(t, new(EngagementTestSuite))
}
