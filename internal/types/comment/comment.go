package comment

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PhotoID   uuid.UUID `json:"photo_id" db:"photo_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	AuthorDisplayName string  `json:"author_display_name"`
	AuthorImageURL    *string `json:"author_image_url,omitempty"`
}

type AddCommentRequest struct {
	Content string `json:"content"`
}
