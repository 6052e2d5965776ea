package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a minimal account record. Authentication lives elsewhere; this
// table exists for like attribution and admin gating.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `gorm:"default:false" json:"is_admin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Post is a church-authored blog post
type Post struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Title       string     `gorm:"not null" json:"title"`
	Excerpt     string     `json:"excerpt"`
	Body        string     `gorm:"type:text" json:"body"`
	AuthorName  string     `json:"author_name"`
	Category    string     `gorm:"index" json:"category"`
	Tags        string     `json:"tags"` // comma-separated
	Published   bool       `gorm:"default:false;index" json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

// CommunityPost statuses
const (
	CommunityPostPending  = "pending"
	CommunityPostApproved = "approved"
	CommunityPostRejected = "rejected"
)

// CommunityPost is a member-authored post that goes through moderation
type CommunityPost struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	Slug   string `gorm:"uniqueIndex;not null" json:"slug"`
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	Title  string `gorm:"not null" json:"title"`
	Body   string `gorm:"type:text" json:"body"`
	Status string `gorm:"default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (CommunityPost) TableName() string {
	return "community_posts"
}

// Member is a staff or congregation member shown on the site
type Member struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Bio      string `gorm:"type:text" json:"bio"`
	PhotoURL string `json:"photo_url"`
	Active   bool   `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// Position is a leadership or volunteer position
type Position struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string  `gorm:"not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	MemberID    *string `gorm:"type:uuid;index" json:"member_id,omitempty"`
	SortOrder   int     `gorm:"default:0" json:"sort_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// Event is a calendar entry (service, study, gathering)
type Event struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Location    string     `json:"location"`
	StartsAt    time.Time  `gorm:"index" json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Recurring   bool       `gorm:"default:false" json:"recurring"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

// Doctrine is a statement-of-faith entry
type Doctrine struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	Title     string `gorm:"not null" json:"title"`
	Body      string `gorm:"type:text" json:"body"`
	SortOrder int    `gorm:"default:0" json:"sort_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Doctrine) TableName() string {
	return "doctrines"
}

// SiteSetting is a key/value row for site-wide configuration
type SiteSetting struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `gorm:"type:text" json:"value"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SiteSetting) TableName() string {
	return "site_settings"
}

func generateUUID() string {
	return uuid.New().String()
}

// BeforeCreate hooks for GORM
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (c *CommunityPost) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}

func (p *Position) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	return nil
}

func (d *Doctrine) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = generateUUID()
	}
	return nil
}

func (s *SiteSetting) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	return nil
}
