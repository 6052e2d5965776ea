package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gracechapel/backend/internal/logger"
	"github.com/gracechapel/backend/internal/metrics"
	"github.com/gracechapel/backend/internal/models"
)

// StatsResponse is the public stats shape. HasLiked is per-viewer and is
// filled in after the (shared) snapshot is loaded.
type StatsResponse struct {
	TotalViews      int64      `json:"total_views"`
	UniqueViews     int64      `json:"unique_views"`
	RegisteredViews int64      `json:"registered_views"`
	AnonymousViews  int64      `json:"anonymous_views"`
	TotalLikes      int64      `json:"total_likes"`
	AvgViewDuration float64    `json:"avg_view_duration"`
	LastViewedAt    *time.Time `json:"last_viewed_at,omitempty"`
	HasLiked        bool       `json:"has_liked"`
}

func statsCacheKey(ref ContentRef) string {
	return fmt.Sprintf("stats:%s:%s", ref.Type, ref.ID)
}

// Stats returns the engagement snapshot for a content item. Read path:
// snapshot cache, then the stored snapshot row (recomputed when missing,
// old, or drifted), with has-liked always answered live.
func (s *Service) Stats(ctx context.Context, ref ContentRef, userID string) (*StatsResponse, error) {
	hasLiked, err := s.HasLiked(ctx, ref, userID)
	if err != nil {
		return nil, err
	}

	if cached := s.getCachedStats(ctx, ref); cached != nil {
		metrics.Get().StatsCacheHitsTotal.WithLabelValues(string(ref.Type)).Inc()
		cached.HasLiked = hasLiked
		return cached, nil
	}
	metrics.Get().StatsCacheMissesTotal.WithLabelValues(string(ref.Type)).Inc()

	stats, err := s.loadOrRecomputeStats(ctx, ref)
	if err != nil {
		return nil, err
	}

	resp := &StatsResponse{
		TotalViews:      stats.TotalViews,
		UniqueViews:     stats.UniqueViews,
		RegisteredViews: stats.RegisteredViews,
		AnonymousViews:  stats.AnonymousViews,
		TotalLikes:      stats.TotalLikes,
		AvgViewDuration: stats.AvgViewDuration,
		LastViewedAt:    stats.LastViewedAt,
	}

	s.setCachedStats(ctx, ref, resp)

	resp.HasLiked = hasLiked
	return resp, nil
}

// loadOrRecomputeStats returns a fresh-enough snapshot row, recomputing
// from the event tables when the stored one is missing, stale, or has
// drifted from the live view count
func (s *Service) loadOrRecomputeStats(ctx context.Context, ref ContentRef) (*models.PostStats, error) {
	var stats models.PostStats
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.recomputeStats(ctx, ref)
		}
		return nil, err
	}

	if time.Since(stats.UpdatedAt) > s.opts.SnapshotMaxAge {
		return s.recomputeStats(ctx, ref)
	}

	var liveTotal int64
	err = s.db.WithContext(ctx).Model(&models.ViewEvent{}).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		Count(&liveTotal).Error
	if err != nil {
		return nil, err
	}

	drift := liveTotal - stats.TotalViews
	if drift < 0 {
		drift = -drift
	}
	if drift > s.opts.DriftTolerance {
		return s.recomputeStats(ctx, ref)
	}

	return &stats, nil
}

type statsAggregation struct {
	TotalViews      int64
	UniqueViews     int64
	RegisteredViews int64
	AvgViewDuration *float64
	LastViewedAt    *time.Time
}

// recomputeStats rebuilds the snapshot from the event tables in a single
// aggregation pass and writes it back
func (s *Service) recomputeStats(ctx context.Context, ref ContentRef) (*models.PostStats, error) {
	var agg statsAggregation
	err := s.db.WithContext(ctx).Model(&models.ViewEvent{}).
		Select("COUNT(*) AS total_views, "+
			"COUNT(DISTINCT session_id) AS unique_views, "+
			"COUNT(user_id) AS registered_views, "+
			"AVG(view_duration) AS avg_view_duration, "+
			"MAX(created_at) AS last_viewed_at").
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	var totalLikes int64
	err = s.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		Count(&totalLikes).Error
	if err != nil {
		return nil, err
	}

	avgDuration := 0.0
	if agg.AvgViewDuration != nil {
		avgDuration = *agg.AvgViewDuration
	}

	var stats models.PostStats
	err = s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		First(&stats).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	stats.ContentType = ref.Type
	stats.ContentID = ref.ID
	stats.TotalViews = agg.TotalViews
	stats.UniqueViews = agg.UniqueViews
	stats.RegisteredViews = agg.RegisteredViews
	stats.AnonymousViews = agg.TotalViews - agg.RegisteredViews
	stats.TotalLikes = totalLikes
	stats.AvgViewDuration = avgDuration
	stats.LastViewedAt = agg.LastViewedAt

	if stats.ID == "" {
		if err := s.db.WithContext(ctx).Create(&stats).Error; err != nil {
			return nil, err
		}
	} else {
		if err := s.db.WithContext(ctx).Save(&stats).Error; err != nil {
			return nil, err
		}
	}

	metrics.Get().StatsRecomputesTotal.WithLabelValues(string(ref.Type)).Inc()
	return &stats, nil
}

func (s *Service) getCachedStats(ctx context.Context, ref ContentRef) *StatsResponse {
	if s.cache == nil {
		return nil
	}

	raw, err := s.cache.Get(ctx, statsCacheKey(ref))
	if err != nil {
		return nil
	}

	var resp StatsResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		logger.Warn("dropping malformed cached stats", zap.Error(err))
		_ = s.cache.Del(ctx, statsCacheKey(ref))
		return nil
	}
	return &resp
}

func (s *Service) setCachedStats(ctx context.Context, ref ContentRef, resp *StatsResponse) {
	if s.cache == nil {
		return
	}

	// Cache the shared snapshot without the per-viewer flag
	shared := *resp
	shared.HasLiked = false

	raw, err := json.Marshal(&shared)
	if err != nil {
		return
	}
	if err := s.cache.SetEx(ctx, statsCacheKey(ref), string(raw), s.opts.CacheTTL); err != nil {
		logger.Warn("failed to cache stats snapshot", zap.Error(err))
	}
}

func (s *Service) invalidateStatsCache(ctx context.Context, ref ContentRef) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(ref)); err != nil {
		logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}
