package engagement

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apierrors "github.com/gracechapel/backend/internal/errors"
	"github.com/gracechapel/backend/internal/metrics"
	"github.com/gracechapel/backend/internal/models"
)

// Like adds a like edge for the user and returns the fresh like count.
// A second like of the same content is a conflict, not a no-op; the
// client toggle relies on the distinction.
func (s *Service) Like(ctx context.Context, ref ContentRef, userID string) (int64, error) {
	var existing models.PostLike
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ? AND user_id = ?", ref.Type, ref.ID, userID).
		First(&existing).Error
	if err == nil {
		return 0, apierrors.Conflict("like")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	like := models.PostLike{
		ContentType: ref.Type,
		ContentID:   ref.ID,
		UserID:      userID,
	}
	if err := s.db.WithContext(ctx).Create(&like).Error; err != nil {
		// A racing like hit the unique index first
		var recheck models.PostLike
		recheckErr := s.db.WithContext(ctx).
			Where("content_type = ? AND content_id = ? AND user_id = ?", ref.Type, ref.ID, userID).
			First(&recheck).Error
		if recheckErr == nil {
			return 0, apierrors.Conflict("like")
		}
		return 0, err
	}

	metrics.Get().LikesTotal.WithLabelValues(string(ref.Type), "like").Inc()
	return s.refreshLikeCount(ctx, ref)
}

// Unlike removes the user's like edge and returns the fresh like count;
// an absent edge is a not-found
func (s *Service) Unlike(ctx context.Context, ref ContentRef, userID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ? AND user_id = ?", ref.Type, ref.ID, userID).
		Delete(&models.PostLike{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, apierrors.NotFound("like")
	}

	metrics.Get().LikesTotal.WithLabelValues(string(ref.Type), "unlike").Inc()
	return s.refreshLikeCount(ctx, ref)
}

// HasLiked reports whether the user has a live like edge. Always hits the
// ledger; the snapshot cache never answers this.
func (s *Service) HasLiked(ctx context.Context, ref ContentRef, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("content_type = ? AND content_id = ? AND user_id = ?", ref.Type, ref.ID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// refreshLikeCount recounts the ledger into the snapshot row, drops the
// cached stats so the next read sees the new count, and returns the total
func (s *Service) refreshLikeCount(ctx context.Context, ref ContentRef) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		Count(&total).Error
	if err != nil {
		return 0, err
	}

	var stats models.PostStats
	err = s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		First(&stats).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		stats = models.PostStats{
			ContentType: ref.Type,
			ContentID:   ref.ID,
			TotalLikes:  total,
		}
		if err := s.db.WithContext(ctx).Create(&stats).Error; err != nil {
			return 0, err
		}
	} else {
		err = s.db.WithContext(ctx).Model(&models.PostStats{}).
			Where("id = ?", stats.ID).
			Update("total_likes", total).Error
		if err != nil {
			return 0, err
		}
	}

	s.invalidateStatsCache(ctx, ref)
	return total, nil
}
