package engagement

import (
	"errors"

	"gorm.io/gorm"

	apierrors "github.com/gracechapel/backend/internal/errors"
	"github.com/gracechapel/backend/internal/models"
)

// ContentRef identifies one content item after slug resolution. Everything
// downstream of ResolveContent carries the ref and never dispatches on the
// content type again.
type ContentRef struct {
	Type models.ContentType
	ID   string
	Slug string
}

// ResolveContent looks up a published content item by type tag and slug.
// Church posts must be published; community posts must be approved.
func ResolveContent(db *gorm.DB, ctype models.ContentType, slug string) (ContentRef, error) {
	switch ctype {
	case models.ContentTypeChurch:
		var post models.Post
		err := db.Where("slug = ? AND published = ?", slug, true).First(&post).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ContentRef{}, apierrors.NotFound("post")
			}
			return ContentRef{}, err
		}
		return ContentRef{Type: ctype, ID: post.ID, Slug: post.Slug}, nil

	case models.ContentTypeCommunity:
		var post models.CommunityPost
		err := db.Where("slug = ? AND status = ?", slug, models.CommunityPostApproved).First(&post).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ContentRef{}, apierrors.NotFound("post")
			}
			return ContentRef{}, err
		}
		return ContentRef{Type: ctype, ID: post.ID, Slug: post.Slug}, nil

	default:
		return ContentRef{}, apierrors.BadRequest("unknown content type")
	}
}
