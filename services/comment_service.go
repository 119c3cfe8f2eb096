package services

import (
	"context"
	"errors"
	"strings"

	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/notification"
	"birdDexAPI/internal/types/comment"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxCommentLen = 1000

type CommentService struct {
	db            *pgxpool.Pool
	notifications *NotificationService
}

func NewCommentService(db *pgxpool.Pool, notifications *NotificationService) *CommentService {
	return &CommentService{db: db, notifications: notifications}
}

// ListComments returns the comments on a photo the caller can see. The
// visibility rule matches PhotoService.GetPhoto.
func (s *CommentService) ListComments(ctx context.Context, clerkID string, photoID string) ([]*comment.Comment, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return nil, apperr.Validation("invalid photo id")
	}

	if err := s.checkPhotoVisible(ctx, userID, pID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.photo_id, c.user_id, c.content, c.created_at,
		       u.display_name, u.image_url
		FROM comments c
		JOIN user_profiles u ON u.id = c.user_id
		WHERE c.photo_id = $1
		ORDER BY c.created_at`, pID)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch comments", err)
	}
	defer rows.Close()

	comments := []*comment.Comment{}
	for rows.Next() {
		c := &comment.Comment{}
		err := rows.Scan(&c.ID, &c.PhotoID, &c.UserID, &c.Content, &c.CreatedAt,
			&c.AuthorDisplayName, &c.AuthorImageURL)
		if err != nil {
			return nil, apperr.Persistence("failed to scan comment row", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// AddComment posts a comment and notifies the photo owner, unless they are
// commenting on their own photo.
func (s *CommentService) AddComment(ctx context.Context, clerkID string, photoID string, req *comment.AddCommentRequest) (*comment.Comment, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return nil, apperr.Validation("invalid photo id")
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.Validation("comment content is required")
	}
	if len(content) > maxCommentLen {
		return nil, apperr.Validation("comment exceeds %d characters", maxCommentLen)
	}

	if err := s.checkPhotoVisible(ctx, userID, pID); err != nil {
		return nil, err
	}

	c := &comment.Comment{ID: uuid.New(), PhotoID: pID, UserID: userID, Content: content}
	err = s.db.QueryRow(ctx, `
		INSERT INTO comments (id, photo_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`,
		c.ID, pID, userID, content).Scan(&c.CreatedAt)
	if err != nil {
		return nil, apperr.Persistence("failed to add comment", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT display_name, image_url FROM user_profiles WHERE id = $1`, userID).
		Scan(&c.AuthorDisplayName, &c.AuthorImageURL)
	if err != nil {
		return nil, apperr.Persistence("failed to load comment author", err)
	}

	var ownerID uuid.UUID
	if err := s.db.QueryRow(ctx,
		`SELECT user_id FROM photos WHERE id = $1`, pID).Scan(&ownerID); err == nil && ownerID != userID {
		s.notifications.Notify(ctx, ownerID, notification.NotificationComment,
			"New comment", c.AuthorDisplayName+" commented on your photo",
			map[string]any{"photo_id": pID.String(), "comment_id": c.ID.String()})
	}
	return c, nil
}

// DeleteComment removes a comment. Allowed for the comment author, the
// photo owner, and admins.
func (s *CommentService) DeleteComment(ctx context.Context, clerkID string, commentID string, isAdmin bool) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	cID, err := uuid.Parse(commentID)
	if err != nil {
		return apperr.Validation("invalid comment id")
	}

	var authorID, photoOwnerID uuid.UUID
	err = s.db.QueryRow(ctx, `
		SELECT c.user_id, p.user_id
		FROM comments c
		JOIN photos p ON p.id = c.photo_id
		WHERE c.id = $1`, cID).Scan(&authorID, &photoOwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("comment not found")
		}
		return apperr.Persistence("failed to fetch comment", err)
	}

	if userID != authorID && userID != photoOwnerID && !isAdmin {
		return apperr.NotFound("comment not found")
	}

	_, err = s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, cID)
	if err != nil {
		return apperr.Persistence("failed to delete comment", err)
	}
	return nil
}

func (s *CommentService) checkPhotoVisible(ctx context.Context, userID, photoID uuid.UUID) error {
	var visible bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM photos p
			WHERE p.id = $1 AND (
				p.user_id = $2
				OR p.privacy = 'public'
				OR (p.privacy = 'friends' AND EXISTS (
					SELECT 1 FROM friendships f
					WHERE f.status = 'accepted'
					  AND ((f.user_id = $2 AND f.friend_id = p.user_id)
					    OR (f.friend_id = $2 AND f.user_id = p.user_id))))))`,
		photoID, userID).Scan(&visible)
	if err != nil {
		return apperr.Persistence("failed to check photo visibility", err)
	}
	if !visible {
		return apperr.NotFound("photo not found")
	}
	return nil
}

func (s *CommentService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM user_profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, apperr.NotFound("user not found for clerk_id %s", clerkID)
	}
	return userID, nil
}
