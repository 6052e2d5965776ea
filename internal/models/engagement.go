package models

import (
	"time"

	"gorm.io/gorm"
)

// ContentType discriminates which content table an engagement row belongs to
type ContentType string

const (
	ContentTypeChurch    ContentType = "church"
	ContentTypeCommunity ContentType = "community"
)

// Valid reports whether the content type is one of the known tags
func (t ContentType) Valid() bool {
	return t == ContentTypeChurch || t == ContentTypeCommunity
}

// SharePlatform enumerates where a post can be shared to
type SharePlatform string

const (
	SharePlatformTwitter  SharePlatform = "twitter"
	SharePlatformFacebook SharePlatform = "facebook"
	SharePlatformLinkedIn SharePlatform = "linkedin"
	SharePlatformCopy     SharePlatform = "copy"
	SharePlatformOther    SharePlatform = "other"
)

// NormalizeSharePlatform maps arbitrary client input onto the known set.
// Unknown values become "other" - analytics beacons should never fail the page.
func NormalizeSharePlatform(s string) SharePlatform {
	switch SharePlatform(s) {
	case SharePlatformTwitter, SharePlatformFacebook, SharePlatformLinkedIn, SharePlatformCopy:
		return SharePlatform(s)
	default:
		return SharePlatformOther
	}
}

// ViewEvent is an append-only record of a counted page view.
// Rows are never mutated except view_duration, which a later engagement
// ping from the same session may fill in.
type ViewEvent struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	ContentType ContentType `gorm:"not null;index:idx_view_events_content" json:"content_type"`
	ContentID   string      `gorm:"not null;index:idx_view_events_content" json:"content_id"`

	UserID    *string `gorm:"index" json:"user_id,omitempty"` // nil for anonymous viewers
	SessionID string  `gorm:"not null;index" json:"session_id"`
	IPAddress string  `gorm:"not null" json:"ip_address"`
	UserAgent string  `json:"user_agent"`

	ViewDuration *float64 `json:"view_duration,omitempty"` // seconds
	Referrer     string   `json:"referrer,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ViewEvent) TableName() string {
	return "view_events"
}

// PostLike is one edge in the like ledger. The unique index on
// (content_type, content_id, user_id) is the source of truth for
// at-most-one-like-per-user; counters are derived from it.
type PostLike struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	ContentType ContentType `gorm:"not null;uniqueIndex:idx_post_likes_unique" json:"content_type"`
	ContentID   string      `gorm:"not null;uniqueIndex:idx_post_likes_unique" json:"content_id"`
	UserID      string      `gorm:"not null;uniqueIndex:idx_post_likes_unique;index" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (PostLike) TableName() string {
	return "post_likes"
}

// EngagementSession aggregates in-page behavior per (session, content) pair.
// scroll_depth_max only increases; clicks and shares only increase;
// time_on_page is overwritten with the latest reported value.
type EngagementSession struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	ContentType ContentType `gorm:"not null;uniqueIndex:idx_engagement_sessions_unique" json:"content_type"`
	ContentID   string      `gorm:"not null;uniqueIndex:idx_engagement_sessions_unique" json:"content_id"`
	SessionID   string      `gorm:"not null;uniqueIndex:idx_engagement_sessions_unique" json:"session_id"`

	ScrollDepthMax int     `gorm:"default:0" json:"scroll_depth_max"` // 0-100
	TimeOnPage     float64 `gorm:"default:0" json:"time_on_page"`     // seconds, last reported
	Clicks         int     `gorm:"default:0" json:"clicks"`
	Shares         int     `gorm:"default:0" json:"shares"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EngagementSession) TableName() string {
	return "engagement_sessions"
}

// PostStats is the denormalized per-content snapshot derived from
// view_events and post_likes. Recomputed lazily; anonymous_views is
// always total_views - registered_views.
type PostStats struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	ContentType ContentType `gorm:"not null;uniqueIndex:idx_post_stats_unique" json:"content_type"`
	ContentID   string      `gorm:"not null;uniqueIndex:idx_post_stats_unique" json:"content_id"`

	TotalViews      int64      `gorm:"default:0" json:"total_views"`
	UniqueViews     int64      `gorm:"default:0" json:"unique_views"`
	RegisteredViews int64      `gorm:"default:0" json:"registered_views"`
	AnonymousViews  int64      `gorm:"default:0" json:"anonymous_views"`
	TotalLikes      int64      `gorm:"default:0" json:"total_likes"`
	AvgViewDuration float64    `gorm:"default:0" json:"avg_view_duration"`
	LastViewedAt    *time.Time `json:"last_viewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PostStats) TableName() string {
	return "post_stats"
}

func (v *ViewEvent) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	return nil
}

func (e *EngagementSession) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	return nil
}

func (s *PostStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	return nil
}
