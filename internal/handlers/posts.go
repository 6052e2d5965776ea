package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/models"
	"github.com/gracechapel/backend/internal/util"
)

// ListPosts returns published church blog posts, newest first
// GET /api/v1/blog?category=&limit=&offset=
func (h *Handlers) ListPosts(c *gin.Context) {
	limit := util.ParseInt(c.Query("limit"), 20)
	offset := util.ParseInt(c.Query("offset"), 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := database.DB.Where("published = ?", true)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var posts []models.Post
	err := query.Order("published_at DESC").Limit(limit).Offset(offset).Find(&posts).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"limit":  limit,
		"offset": offset,
	})
}

// GetPost returns one published church blog post by slug
// GET /api/v1/blog/:slug
func (h *Handlers) GetPost(c *gin.Context) {
	var post models.Post
	err := database.DB.Where("slug = ? AND published = ?", c.Param("slug"), true).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "post")
			return
		}
		util.RespondInternalError(c, "failed to load post")
		return
	}

	c.JSON(http.StatusOK, post)
}

// ListCommunityPosts returns approved community posts, newest first
// GET /api/v1/community?limit=&offset=
func (h *Handlers) ListCommunityPosts(c *gin.Context) {
	limit := util.ParseInt(c.Query("limit"), 20)
	offset := util.ParseInt(c.Query("offset"), 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var posts []models.CommunityPost
	err := database.DB.Where("status = ?", models.CommunityPostApproved).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&posts).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list community posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"limit":  limit,
		"offset": offset,
	})
}

// GetCommunityPost returns one approved community post by slug
// GET /api/v1/community/:slug
func (h *Handlers) GetCommunityPost(c *gin.Context) {
	var post models.CommunityPost
	err := database.DB.Where("slug = ? AND status = ?", c.Param("slug"), models.CommunityPostApproved).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "post")
			return
		}
		util.RespondInternalError(c, "failed to load post")
		return
	}

	c.JSON(http.StatusOK, post)
}

type createCommunityPostRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// CreateCommunityPost submits a community post for moderation
// POST /api/v1/community
func (h *Handlers) CreateCommunityPost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req createCommunityPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "title and body are required")
		return
	}

	post := models.CommunityPost{
		Slug:   uniqueSlug(req.Title),
		UserID: userID,
		Title:  req.Title,
		Body:   req.Body,
		Status: models.CommunityPostPending,
	}
	if err := database.DB.Create(&post).Error; err != nil {
		util.RespondInternalError(c, "failed to create post")
		return
	}

	c.JSON(http.StatusCreated, post)
}

// slugify lowercases the title and collapses non-alphanumeric runs to hyphens
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// uniqueSlug appends a short suffix when the natural slug is taken
func uniqueSlug(title string) string {
	slug := slugify(title)
	if slug == "" {
		slug = "post"
	}

	var count int64
	database.DB.Model(&models.CommunityPost{}).Where("slug = ?", slug).Count(&count)
	if count == 0 {
		return slug
	}
	return slug + "-" + uuid.New().String()[:8]
}
