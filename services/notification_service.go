package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/notification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushProvider delivers a push message to a set of device tokens. The FCM
// client satisfies this; tests plug in a recorder.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	db       *pgxpool.Pool
	provider PushProvider
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

// SetPushProvider wires the push backend after construction. Without one,
// notifications are stored but never pushed.
func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.provider = p
}

// Notify stores a notification and fires a best-effort push. Delivery
// failures are logged, never surfaced: a missed push must not fail the
// action that triggered it.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, typ notification.NotificationType, title, message string, data map[string]any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Printf("NotificationService: failed to marshal data for %s: %v", typ, err)
		dataJSON = []byte("{}")
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, NOW())`,
		uuid.New(), userID, typ, title, message, dataJSON)
	if err != nil {
		log.Printf("NotificationService: failed to store %s for user %s: %v", typ, userID, err)
		return
	}

	if s.provider == nil {
		return
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		log.Printf("NotificationService: failed to load device tokens for %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	pushData := map[string]any{"type": string(typ)}
	for k, v := range data {
		pushData[k] = v
	}
	if err := s.provider.SendPush(ctx, tokens, title, message, pushData); err != nil {
		log.Printf("NotificationService: push delivery failed for user %s: %v", userID, err)
	}
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx,
		`SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []notification.DeviceToken{}
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *NotificationService) List(ctx context.Context, clerkID string, page, pageSize int, unreadOnly bool) (*notification.ListResponse, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := `
		SELECT id, user_id, type, title, message, is_read, data, created_at
		FROM notifications
		WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch notifications", err)
	}
	defer rows.Close()

	notifications := []*notification.Notification{}
	for rows.Next() {
		n := &notification.Notification{}
		var dataJSON []byte
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.IsRead, &dataJSON, &n.CreatedAt)
		if err != nil {
			return nil, apperr.Persistence("failed to scan notification row", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
				log.Printf("NotificationService: bad data payload on %s: %v", n.ID, err)
			}
		}
		notifications = append(notifications, n)
	}

	unread, err := s.UnreadCount(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	return &notification.ListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, clerkID string) (int, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`, userID).
		Scan(&count)
	if err != nil {
		return 0, apperr.Persistence("failed to count unread notifications", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, clerkID string, notificationID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	nID, err := uuid.Parse(notificationID)
	if err != nil {
		return apperr.Validation("invalid notification id")
	}

	result, err := s.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, nID, userID)
	if err != nil {
		return apperr.Persistence("failed to mark notification read", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, clerkID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`, userID)
	if err != nil {
		return apperr.Persistence("failed to mark notifications read", err)
	}
	return nil
}

// RegisterDevice upserts an FCM device token. A token moving between users
// (shared device, re-login) is reassigned to the latest registrant.
func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	if req.Token == "" {
		return apperr.Validation("device token is required")
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token)
		DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, updated_at = EXCLUDED.updated_at`,
		req.Token, userID, req.Platform, time.Now())
	if err != nil {
		return apperr.Persistence("failed to register device token", err)
	}
	return nil
}

func (s *NotificationService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM user_profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, apperr.NotFound("user not found for clerk_id %s", clerkID)
	}
	return userID, nil
}
