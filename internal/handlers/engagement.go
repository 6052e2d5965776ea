package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/engagement"
	"github.com/gracechapel/backend/internal/identity"
	"github.com/gracechapel/backend/internal/models"
	"github.com/gracechapel/backend/internal/util"
)

// contentTypeFromParam maps the URL segment onto the content type tag
func contentTypeFromParam(param string) (models.ContentType, bool) {
	switch param {
	case "blog":
		return models.ContentTypeChurch, true
	case "community":
		return models.ContentTypeCommunity, true
	default:
		return "", false
	}
}

// resolveContent resolves the :ctype/:slug pair into a ContentRef,
// responding with the appropriate error on failure
func (h *Handlers) resolveContent(c *gin.Context) (engagement.ContentRef, bool) {
	ctype, ok := contentTypeFromParam(c.Param("ctype"))
	if !ok {
		util.RespondBadRequest(c, "unknown content type")
		return engagement.ContentRef{}, false
	}

	slug := c.Param("slug")
	if slug == "" {
		util.RespondBadRequest(c, "slug is required")
		return engagement.ContentRef{}, false
	}

	ref, err := engagement.ResolveContent(database.DB, ctype, slug)
	if err != nil {
		util.RespondServiceError(c, err)
		return engagement.ContentRef{}, false
	}
	return ref, true
}

// viewBeacon accepts both JSON and form encoding so page-unload
// sendBeacon calls work without a JSON content type
type viewBeacon struct {
	SessionID    string   `json:"session_id" form:"session_id"`
	Referrer     string   `json:"referrer" form:"referrer"`
	ViewDuration *float64 `json:"view_duration" form:"view_duration"`
}

// RecordView counts a page view
// POST /api/v1/:ctype/:slug/view
func (h *Handlers) RecordView(c *gin.Context) {
	ref, ok := h.resolveContent(c)
	if !ok {
		return
	}

	var body viewBeacon
	_ = c.ShouldBind(&body) // empty body is a valid beacon

	if body.ViewDuration != nil && *body.ViewDuration < 0 {
		util.RespondValidationError(c, "view_duration", "view_duration must be non-negative")
		return
	}

	viewer := identity.Resolve(c.Request, util.OptionalUserID(c), body.SessionID)

	result, err := h.engagement.RecordView(c.Request.Context(), ref, viewer, engagement.ViewInput{
		Referrer:     body.Referrer,
		ViewDuration: body.ViewDuration,
	})
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	resp := gin.H{
		"success":    result.Counted,
		"session_id": result.SessionID,
	}
	if result.ViewID != "" {
		resp["view_id"] = result.ViewID
	}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	c.JSON(http.StatusOK, resp)
}

type engagementBeacon struct {
	SessionID    string   `json:"session_id" form:"session_id"`
	ScrollDepth  int      `json:"scroll_depth" form:"scroll_depth"`
	TimeOnPage   float64  `json:"time_on_page" form:"time_on_page"`
	Clicks       int      `json:"clicks" form:"clicks"`
	ViewDuration *float64 `json:"view_duration" form:"view_duration"`
}

// RecordEngagement records an in-page engagement ping
// POST /api/v1/:ctype/:slug/engagement
func (h *Handlers) RecordEngagement(c *gin.Context) {
	ref, ok := h.resolveContent(c)
	if !ok {
		return
	}

	var body engagementBeacon
	if err := c.ShouldBind(&body); err != nil {
		util.RespondBadRequest(c, "invalid engagement payload")
		return
	}

	if body.ScrollDepth < 0 || body.ScrollDepth > 100 {
		util.RespondValidationError(c, "scroll_depth", "scroll_depth must be between 0 and 100")
		return
	}
	if body.TimeOnPage < 0 {
		util.RespondValidationError(c, "time_on_page", "time_on_page must be non-negative")
		return
	}
	if body.Clicks < 0 {
		util.RespondValidationError(c, "clicks", "clicks must be non-negative")
		return
	}
	if body.ViewDuration != nil && *body.ViewDuration < 0 {
		util.RespondValidationError(c, "view_duration", "view_duration must be non-negative")
		return
	}

	viewer := identity.Resolve(c.Request, util.OptionalUserID(c), body.SessionID)

	err := h.engagement.RecordEngagement(c.Request.Context(), ref, viewer, engagement.EngagementInput{
		ScrollDepth:  body.ScrollDepth,
		TimeOnPage:   body.TimeOnPage,
		Clicks:       body.Clicks,
		ViewDuration: body.ViewDuration,
	})
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type shareBeacon struct {
	SessionID string `json:"session_id" form:"session_id"`
	Platform  string `json:"platform" form:"platform"`
}

// RecordShare records a share action
// POST /api/v1/:ctype/:slug/share
func (h *Handlers) RecordShare(c *gin.Context) {
	ref, ok := h.resolveContent(c)
	if !ok {
		return
	}

	var body shareBeacon
	_ = c.ShouldBind(&body)

	platform := models.NormalizeSharePlatform(body.Platform)
	viewer := identity.Resolve(c.Request, util.OptionalUserID(c), body.SessionID)

	total, err := h.engagement.RecordShare(c.Request.Context(), ref, viewer, platform)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"platform":     platform,
		"total_shares": total,
	})
}

// Like adds the current user's like
// POST /api/v1/:ctype/:slug/like
func (h *Handlers) Like(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	ref, ok := h.resolveContent(c)
	if !ok {
		return
	}

	count, err := h.engagement.Like(c.Request.Context(), ref, userID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"liked":      true,
		"like_count": count,
	})
}

// Unlike removes the current user's like
// DELETE /api/v1/:ctype/:slug/like
func (h *Handlers) Unlike(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	ref, ok := h.resolveContent(c)
	if !ok {
		return
	}

	count, err := h.engagement.Unlike(c.Request.Context(), ref, userID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"liked":      false,
		"like_count": count,
	})
}

// Stats returns the engagement snapshot for a content item
// GET /api/v1/:ctype/:slug/stats
func (h *Handlers) Stats(c *gin.Context) {
	ref, ok := h.resolveContent(c)
	if !ok {
		return
	}

	stats, err := h.engagement.Stats(c.Request.Context(), ref, util.OptionalUserID(c))
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	// Client cache lifetime mirrors the server-side snapshot cache
	maxAge := int(h.engagement.Options().CacheTTL.Seconds())
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))

	c.JSON(http.StatusOK, stats)
}
