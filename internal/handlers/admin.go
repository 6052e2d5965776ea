package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/models"
	"github.com/gracechapel/backend/internal/util"
)

// Admin CRUD. All routes behind RequireAuth + RequireAdmin.

// ListMembers returns all members
// GET /api/v1/admin/members
func (h *Handlers) ListMembers(c *gin.Context) {
	var members []models.Member
	if err := database.DB.Order("name ASC").Find(&members).Error; err != nil {
		util.RespondInternalError(c, "failed to list members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// CreateMember adds a member
// POST /api/v1/admin/members
func (h *Handlers) CreateMember(c *gin.Context) {
	var member models.Member
	if err := c.ShouldBindJSON(&member); err != nil || member.Name == "" {
		util.RespondBadRequest(c, "name is required")
		return
	}
	member.ID = ""
	if err := database.DB.Create(&member).Error; err != nil {
		util.RespondInternalError(c, "failed to create member")
		return
	}
	c.JSON(http.StatusCreated, member)
}

// UpdateMember updates a member
// PUT /api/v1/admin/members/:id
func (h *Handlers) UpdateMember(c *gin.Context) {
	var member models.Member
	if err := database.DB.First(&member, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "member")
			return
		}
		util.RespondInternalError(c, "failed to load member")
		return
	}

	var updates models.Member
	if err := c.ShouldBindJSON(&updates); err != nil {
		util.RespondBadRequest(c, "invalid member payload")
		return
	}

	member.Name = updates.Name
	member.Email = updates.Email
	member.Phone = updates.Phone
	member.Role = updates.Role
	member.Bio = updates.Bio
	member.PhotoURL = updates.PhotoURL
	member.Active = updates.Active
	if err := database.DB.Save(&member).Error; err != nil {
		util.RespondInternalError(c, "failed to update member")
		return
	}
	c.JSON(http.StatusOK, member)
}

// DeleteMember removes a member
// DELETE /api/v1/admin/members/:id
func (h *Handlers) DeleteMember(c *gin.Context) {
	result := database.DB.Delete(&models.Member{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		util.RespondInternalError(c, "failed to delete member")
		return
	}
	if result.RowsAffected == 0 {
		util.RespondNotFound(c, "member")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListPositions returns all positions ordered for display
// GET /api/v1/admin/positions
func (h *Handlers) ListPositions(c *gin.Context) {
	var positions []models.Position
	if err := database.DB.Order("sort_order ASC").Find(&positions).Error; err != nil {
		util.RespondInternalError(c, "failed to list positions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// CreatePosition adds a position
// POST /api/v1/admin/positions
func (h *Handlers) CreatePosition(c *gin.Context) {
	var position models.Position
	if err := c.ShouldBindJSON(&position); err != nil || position.Title == "" {
		util.RespondBadRequest(c, "title is required")
		return
	}
	position.ID = ""
	if err := database.DB.Create(&position).Error; err != nil {
		util.RespondInternalError(c, "failed to create position")
		return
	}
	c.JSON(http.StatusCreated, position)
}

// UpdatePosition updates a position
// PUT /api/v1/admin/positions/:id
func (h *Handlers) UpdatePosition(c *gin.Context) {
	var position models.Position
	if err := database.DB.First(&position, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "position")
			return
		}
		util.RespondInternalError(c, "failed to load position")
		return
	}

	var updates models.Position
	if err := c.ShouldBindJSON(&updates); err != nil {
		util.RespondBadRequest(c, "invalid position payload")
		return
	}

	position.Title = updates.Title
	position.Description = updates.Description
	position.MemberID = updates.MemberID
	position.SortOrder = updates.SortOrder
	if err := database.DB.Save(&position).Error; err != nil {
		util.RespondInternalError(c, "failed to update position")
		return
	}
	c.JSON(http.StatusOK, position)
}

// DeletePosition removes a position
// DELETE /api/v1/admin/positions/:id
func (h *Handlers) DeletePosition(c *gin.Context) {
	result := database.DB.Delete(&models.Position{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		util.RespondInternalError(c, "failed to delete position")
		return
	}
	if result.RowsAffected == 0 {
		util.RespondNotFound(c, "position")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListEvents returns events, optionally only upcoming ones
// GET /api/v1/admin/events?upcoming=true
func (h *Handlers) ListEvents(c *gin.Context) {
	query := database.DB.Order("starts_at ASC")
	if c.Query("upcoming") == "true" {
		query = query.Where("starts_at > ?", time.Now().UTC())
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		util.RespondInternalError(c, "failed to list events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// CreateEvent adds an event
// POST /api/v1/admin/events
func (h *Handlers) CreateEvent(c *gin.Context) {
	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil || event.Title == "" {
		util.RespondBadRequest(c, "title is required")
		return
	}
	event.ID = ""
	if err := database.DB.Create(&event).Error; err != nil {
		util.RespondInternalError(c, "failed to create event")
		return
	}
	c.JSON(http.StatusCreated, event)
}

// UpdateEvent updates an event
// PUT /api/v1/admin/events/:id
func (h *Handlers) UpdateEvent(c *gin.Context) {
	var event models.Event
	if err := database.DB.First(&event, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "event")
			return
		}
		util.RespondInternalError(c, "failed to load event")
		return
	}

	var updates models.Event
	if err := c.ShouldBindJSON(&updates); err != nil {
		util.RespondBadRequest(c, "invalid event payload")
		return
	}

	event.Title = updates.Title
	event.Description = updates.Description
	event.Location = updates.Location
	event.StartsAt = updates.StartsAt
	event.EndsAt = updates.EndsAt
	event.Recurring = updates.Recurring
	if err := database.DB.Save(&event).Error; err != nil {
		util.RespondInternalError(c, "failed to update event")
		return
	}
	c.JSON(http.StatusOK, event)
}

// DeleteEvent removes an event
// DELETE /api/v1/admin/events/:id
func (h *Handlers) DeleteEvent(c *gin.Context) {
	result := database.DB.Delete(&models.Event{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		util.RespondInternalError(c, "failed to delete event")
		return
	}
	if result.RowsAffected == 0 {
		util.RespondNotFound(c, "event")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListDoctrines returns the statement-of-faith entries
// GET /api/v1/admin/doctrines
func (h *Handlers) ListDoctrines(c *gin.Context) {
	var doctrines []models.Doctrine
	if err := database.DB.Order("sort_order ASC").Find(&doctrines).Error; err != nil {
		util.RespondInternalError(c, "failed to list doctrines")
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctrines": doctrines})
}

// CreateDoctrine adds a doctrine entry
// POST /api/v1/admin/doctrines
func (h *Handlers) CreateDoctrine(c *gin.Context) {
	var doctrine models.Doctrine
	if err := c.ShouldBindJSON(&doctrine); err != nil || doctrine.Title == "" {
		util.RespondBadRequest(c, "title is required")
		return
	}
	doctrine.ID = ""
	if err := database.DB.Create(&doctrine).Error; err != nil {
		util.RespondInternalError(c, "failed to create doctrine")
		return
	}
	c.JSON(http.StatusCreated, doctrine)
}

// UpdateDoctrine updates a doctrine entry
// PUT /api/v1/admin/doctrines/:id
func (h *Handlers) UpdateDoctrine(c *gin.Context) {
	var doctrine models.Doctrine
	if err := database.DB.First(&doctrine, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "doctrine")
			return
		}
		util.RespondInternalError(c, "failed to load doctrine")
		return
	}

	var updates models.Doctrine
	if err := c.ShouldBindJSON(&updates); err != nil {
		util.RespondBadRequest(c, "invalid doctrine payload")
		return
	}

	doctrine.Title = updates.Title
	doctrine.Body = updates.Body
	doctrine.SortOrder = updates.SortOrder
	if err := database.DB.Save(&doctrine).Error; err != nil {
		util.RespondInternalError(c, "failed to update doctrine")
		return
	}
	c.JSON(http.StatusOK, doctrine)
}

// DeleteDoctrine removes a doctrine entry
// DELETE /api/v1/admin/doctrines/:id
func (h *Handlers) DeleteDoctrine(c *gin.Context) {
	result := database.DB.Delete(&models.Doctrine{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		util.RespondInternalError(c, "failed to delete doctrine")
		return
	}
	if result.RowsAffected == 0 {
		util.RespondNotFound(c, "doctrine")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetSiteSettings returns all settings as a key/value map
// GET /api/v1/admin/settings
func (h *Handlers) GetSiteSettings(c *gin.Context) {
	var settings []models.SiteSetting
	if err := database.DB.Find(&settings).Error; err != nil {
		util.RespondInternalError(c, "failed to load settings")
		return
	}

	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// UpdateSiteSettings upserts the submitted key/value pairs
// PUT /api/v1/admin/settings
func (h *Handlers) UpdateSiteSettings(c *gin.Context) {
	var updates map[string]string
	if err := c.ShouldBindJSON(&updates); err != nil || len(updates) == 0 {
		util.RespondBadRequest(c, "settings payload is required")
		return
	}

	for key, value := range updates {
		var setting models.SiteSetting
		err := database.DB.Where("key = ?", key).First(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			setting = models.SiteSetting{Key: key, Value: value}
			if err := database.DB.Create(&setting).Error; err != nil {
				util.RespondInternalError(c, "failed to save settings")
				return
			}
			continue
		}
		if err != nil {
			util.RespondInternalError(c, "failed to save settings")
			return
		}
		if err := database.DB.Model(&setting).Update("value", value).Error; err != nil {
			util.RespondInternalError(c, "failed to save settings")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(updates)})
}

// ExportEntity streams members or events as CSV or JSON
// GET /api/v1/admin/export/:entity?format=csv|json
func (h *Handlers) ExportEntity(c *gin.Context) {
	entity := c.Param("entity")
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		util.RespondBadRequest(c, "format must be csv or json")
		return
	}

	switch entity {
	case "members":
		var members []models.Member
		if err := database.DB.Order("name ASC").Find(&members).Error; err != nil {
			util.RespondInternalError(c, "failed to export members")
			return
		}
		if format == "json" {
			c.JSON(http.StatusOK, gin.H{"members": members})
			return
		}
		writeCSV(c, "members.csv", memberCSVRows(members))

	case "events":
		var events []models.Event
		if err := database.DB.Order("starts_at ASC").Find(&events).Error; err != nil {
			util.RespondInternalError(c, "failed to export events")
			return
		}
		if format == "json" {
			c.JSON(http.StatusOK, gin.H{"events": events})
			return
		}
		writeCSV(c, "events.csv", eventCSVRows(events))

	default:
		util.RespondBadRequest(c, "entity must be members or events")
	}
}

func memberCSVRows(members []models.Member) [][]string {
	rows := [][]string{{"id", "name", "email", "phone", "role", "active"}}
	for _, m := range members {
		rows = append(rows, []string{
			m.ID, m.Name, m.Email, m.Phone, m.Role, strconv.FormatBool(m.Active),
		})
	}
	return rows
}

func eventCSVRows(events []models.Event) [][]string {
	rows := [][]string{{"id", "title", "location", "starts_at", "ends_at", "recurring"}}
	for _, e := range events {
		endsAt := ""
		if e.EndsAt != nil {
			endsAt = e.EndsAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			e.ID, e.Title, e.Location, e.StartsAt.Format(time.RFC3339), endsAt,
			strconv.FormatBool(e.Recurring),
		})
	}
	return rows
}

func writeCSV(c *gin.Context, filename string, rows [][]string) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return
		}
	}
	w.Flush()
}
