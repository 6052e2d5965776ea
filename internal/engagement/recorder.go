package engagement

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gracechapel/backend/internal/identity"
	"github.com/gracechapel/backend/internal/logger"
	"github.com/gracechapel/backend/internal/metrics"
	"github.com/gracechapel/backend/internal/models"
)

// Reasons a view was not counted
const (
	ReasonDuplicate   = "duplicate"
	ReasonRateLimited = "rate_limited"
	ReasonUnavailable = "unavailable"
)

// ViewResult is what the view endpoint reports back. Views are
// fire-and-forget for the client; an uncounted view is not an error.
// SessionID is always echoed so clients given a synthesized session can
// reuse it and stay inside the dedup window.
type ViewResult struct {
	Counted   bool   `json:"counted"`
	Reason    string `json:"reason,omitempty"`
	SessionID string `json:"session_id"`
	ViewID    string `json:"view_id,omitempty"`
}

// ViewInput carries the optional fields of a view beacon
type ViewInput struct {
	Referrer     string
	ViewDuration *float64
}

// RecordView counts a page view for the content item, subject to session
// dedup and the per-IP rate cap. Tracker outages degrade to an uncounted
// view rather than an error; losing a view beat failing the page.
func (s *Service) RecordView(ctx context.Context, ref ContentRef, viewer identity.Viewer, input ViewInput) (ViewResult, error) {
	result := ViewResult{SessionID: viewer.SessionID}

	seen, err := s.tracker.WasViewedRecently(ctx, ref, viewer.SessionID)
	if err != nil {
		logger.Warn("view tracker unavailable, skipping view",
			zap.Error(err),
			logger.WithContent(string(ref.Type), ref.ID),
		)
		result.Reason = ReasonUnavailable
		return result, nil
	}
	if seen {
		metrics.Get().ViewsDedupedTotal.WithLabelValues(string(ref.Type)).Inc()
		result.Reason = ReasonDuplicate
		return result, nil
	}

	// Rate budget is only spent on views that pass dedup
	count, err := s.tracker.IncrViewCount(ctx, ref, viewer.IPAddress, s.opts.RateWindow)
	if err != nil {
		logger.Warn("view tracker unavailable, skipping view",
			zap.Error(err),
			logger.WithContent(string(ref.Type), ref.ID),
		)
		result.Reason = ReasonUnavailable
		return result, nil
	}
	if count > s.opts.RateLimit {
		metrics.Get().ViewsRateLimitedTotal.WithLabelValues(string(ref.Type)).Inc()
		logger.Warn("view rate limit exceeded",
			logger.WithContent(string(ref.Type), ref.ID),
			logger.WithIP(viewer.IPAddress),
			zap.Int64("count", count),
		)
		result.Reason = ReasonRateLimited
		return result, nil
	}

	event := models.ViewEvent{
		ContentType:  ref.Type,
		ContentID:    ref.ID,
		UserID:       viewer.UserIDPtr(),
		SessionID:    viewer.SessionID,
		IPAddress:    viewer.IPAddress,
		UserAgent:    viewer.UserAgent,
		Referrer:     input.Referrer,
		ViewDuration: input.ViewDuration,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		logger.ErrorWithFields("failed to persist view event", err)
		result.Reason = ReasonUnavailable
		return result, nil
	}

	// Best effort: a failed mark means this session might double-count
	// later, which the stats drift check absorbs
	if err := s.tracker.MarkViewed(ctx, ref, viewer.SessionID, s.opts.DedupTTL); err != nil {
		logger.Warn("failed to mark view for dedup", zap.Error(err))
	}

	metrics.Get().ViewsRecordedTotal.WithLabelValues(string(ref.Type)).Inc()
	result.Counted = true
	result.ViewID = event.ID
	return result, nil
}

// EngagementInput is an in-page engagement ping. The handler validates
// ranges; negative values never reach here.
type EngagementInput struct {
	ScrollDepth  int // 0-100
	TimeOnPage   float64
	Clicks       int
	ViewDuration *float64
}

// RecordEngagement upserts the per-session engagement row. Scroll depth
// only moves up, clicks accumulate, time on page is last-write-wins. The
// session's latest view event gets its duration from the explicit
// view_duration field, falling back to time on page so duration stats
// stay populated for clients that only send the ping shape.
func (s *Service) RecordEngagement(ctx context.Context, ref ContentRef, viewer identity.Viewer, input EngagementInput) error {
	session, err := s.getOrCreateSession(ctx, ref, viewer.SessionID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"time_on_page": input.TimeOnPage,
	}
	if input.ScrollDepth > session.ScrollDepthMax {
		updates["scroll_depth_max"] = input.ScrollDepth
	}
	if input.Clicks > 0 {
		updates["clicks"] = gorm.Expr("clicks + ?", input.Clicks)
	}

	err = s.db.WithContext(ctx).Model(&models.EngagementSession{}).
		Where("id = ?", session.ID).
		Updates(updates).Error
	if err != nil {
		return err
	}

	duration := input.ViewDuration
	if duration == nil && input.TimeOnPage > 0 {
		duration = &input.TimeOnPage
	}
	if duration != nil {
		if err := s.updateLatestViewDuration(ctx, ref, viewer.SessionID, *duration); err != nil {
			logger.Warn("failed to update view duration", zap.Error(err))
		}
	}

	return nil
}

// RecordShare bumps the share counter on the session row and returns the
// content item's total share count. Unknown platforms are folded into
// "other" upstream.
func (s *Service) RecordShare(ctx context.Context, ref ContentRef, viewer identity.Viewer, platform models.SharePlatform) (int64, error) {
	session, err := s.getOrCreateSession(ctx, ref, viewer.SessionID)
	if err != nil {
		return 0, err
	}

	err = s.db.WithContext(ctx).Model(&models.EngagementSession{}).
		Where("id = ?", session.ID).
		Update("shares", gorm.Expr("shares + 1")).Error
	if err != nil {
		return 0, err
	}

	var total int64
	err = s.db.WithContext(ctx).Model(&models.EngagementSession{}).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		Select("COALESCE(SUM(shares), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}

	metrics.Get().SharesTotal.WithLabelValues(string(ref.Type), string(platform)).Inc()
	return total, nil
}

// getOrCreateSession fetches the engagement row for (content, session),
// creating it on first contact. The unique index backstops creation
// races: a losing insert refetches the winner's row.
func (s *Service) getOrCreateSession(ctx context.Context, ref ContentRef, sessionID string) (*models.EngagementSession, error) {
	var session models.EngagementSession
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ? AND session_id = ?", ref.Type, ref.ID, sessionID).
		First(&session).Error
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	session = models.EngagementSession{
		ContentType: ref.Type,
		ContentID:   ref.ID,
		SessionID:   sessionID,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		var existing models.EngagementSession
		refetchErr := s.db.WithContext(ctx).
			Where("content_type = ? AND content_id = ? AND session_id = ?", ref.Type, ref.ID, sessionID).
			First(&existing).Error
		if refetchErr != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &session, nil
}

// updateLatestViewDuration fills view_duration on the most recent view
// event this session produced for the content item
func (s *Service) updateLatestViewDuration(ctx context.Context, ref ContentRef, sessionID string, duration float64) error {
	var event models.ViewEvent
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ? AND session_id = ?", ref.Type, ref.ID, sessionID).
		Order("created_at DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // engagement ping before any counted view
		}
		return err
	}

	return s.db.WithContext(ctx).Model(&models.ViewEvent{}).
		Where("id = ?", event.ID).
		Update("view_duration", duration).Error
}
