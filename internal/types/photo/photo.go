package photo

import (
	"time"

	"github.com/google/uuid"
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyFriends Privacy = "friends"
	PrivacyPrivate Privacy = "private"
)

type Photo struct {
	ID                    uuid.UUID `json:"id" db:"id"`
	UserID                uuid.UUID `json:"user_id" db:"user_id"`
	SpeciesID             string    `json:"species_id" db:"species_id"`
	ObjectKey             string    `json:"-" db:"object_key"`
	ThumbObjectKey        *string   `json:"-" db:"thumb_object_key"`
	ContentType           string    `json:"content_type" db:"content_type"`
	Privacy               Privacy   `json:"privacy" db:"privacy"`
	Lat                   *float64  `json:"lat,omitempty" db:"lat"`
	Lng                   *float64  `json:"lng,omitempty" db:"lng"`
	LocationText          *string   `json:"location_text,omitempty" db:"location_text"`
	Description           *string   `json:"description,omitempty" db:"description"`
	HiddenFromFeed        bool      `json:"hidden_from_feed" db:"hidden_from_feed"`
	HiddenFromSpeciesView bool      `json:"hidden_from_species_view" db:"hidden_from_species_view"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`

	// IsTop is a read-only projection of the top_species mapping, never a
	// stored column. URLs are presigned per response and never persisted.
	IsTop        bool   `json:"is_top"`
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// FeedItem is a photo as shown on the activity feed, with the owner attached.
type FeedItem struct {
	Photo
	OwnerDisplayName string  `json:"owner_display_name"`
	OwnerImageURL    *string `json:"owner_image_url,omitempty"`
	CommentCount     int     `json:"comment_count"`
}

type UploadURLRequest struct {
	ContentType   string `json:"contentType"`
	WithThumbnail bool   `json:"withThumbnail"`
}

type UploadURLResponse struct {
	PhotoID            uuid.UUID `json:"photoId"`
	UploadURL          string    `json:"uploadUrl"`
	ThumbnailUploadURL string    `json:"thumbnailUploadUrl,omitempty"`
	ExpiresIn          int       `json:"expiresIn"`
}

type ConfirmUploadRequest struct {
	PhotoID     string   `json:"photoId"`
	SpeciesID   string   `json:"speciesId"`
	Privacy     Privacy  `json:"privacy"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// Nil fields are left untouched.
type VisibilityRequest struct {
	HiddenFromFeed        *bool `json:"hiddenFromFeed,omitempty"`
	HiddenFromSpeciesView *bool `json:"hiddenFromSpeciesView,omitempty"`
}

type ReassignSpeciesRequest struct {
	SpeciesID string `json:"speciesId"`
}

// DeleteResult mirrors the delete_or_hide_photo contract: the call can
// succeed at the transport level and still carry a domain error message,
// so callers must check Message as well.
type DeleteResult struct {
	Hidden  bool   `json:"hidden"`
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
}
