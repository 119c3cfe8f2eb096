package services

import (
	"context"
	"errors"
	"log"
	"time"

	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/leaderboard"
	"birdDexAPI/internal/notification"
	"birdDexAPI/internal/types/friendship"
	"birdDexAPI/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserService struct {
	db            *pgxpool.Pool
	notifications *NotificationService
}

func NewUserService(db *pgxpool.Pool, notifications *NotificationService) *UserService {
	return &UserService{db: db, notifications: notifications}
}

const userProfileColumns = `id, clerk_id, email, display_name, image_url, is_admin, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	var imageURL *string
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.DisplayName,
		&imageURL,
		&u.IsAdmin,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if imageURL != nil {
		u.ImageURL = *imageURL
	}
	return u, nil
}

// CreateUser mirrors a Clerk user.created webhook event into user_profiles.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	query := `
	INSERT INTO user_profiles (id, clerk_id, email, display_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + userProfileColumns

	now := time.Now()
	row := s.db.QueryRow(ctx, query,
		uuid.New().String(), req.ClerkID, req.Email, req.DisplayName, req.ImageURL, now, now)
	u, err := scanUser(row)
	if err != nil {
		return nil, apperr.Persistence("failed to create user profile", err)
	}
	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+userProfileColumns+` FROM user_profiles WHERE clerk_id = $1`, clerkID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Persistence("failed to get user", err)
	}
	return u, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	if req.DisplayName == "" && req.ImageURL == "" {
		return nil, apperr.Validation("nothing to update")
	}
	query := `
	UPDATE user_profiles
	SET display_name = COALESCE(NULLIF($2, ''), display_name),
	    image_url    = COALESCE(NULLIF($3, ''), image_url),
	    updated_at   = NOW()
	WHERE clerk_id = $1
	RETURNING ` + userProfileColumns

	row := s.db.QueryRow(ctx, query, clerkID, req.DisplayName, req.ImageURL)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Persistence("failed to update profile", err)
	}
	return u, nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM user_profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return apperr.Persistence("failed to delete user", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE user_profiles SET email_verified = $2, updated_at = NOW() WHERE clerk_id = $1`,
		clerkID, verified)
	if err != nil {
		return apperr.Persistence("failed to update email verification", err)
	}
	return nil
}

// friendshipBetween returns the single row for an unordered pair in either
// direction, or nil when none exists.
func (s *UserService) friendshipBetween(ctx context.Context, a, b uuid.UUID) (*friendship.Friendship, error) {
	f := &friendship.Friendship{}
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, friend_id, status, created_at
		FROM friendships
		WHERE (user_id = $1 AND friend_id = $2)
		   OR (user_id = $2 AND friend_id = $1)`, a, b).
		Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence("failed to check existing friendship", err)
	}
	return f, nil
}

func (s *UserService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM user_profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, apperr.NotFound("user not found for clerk_id %s", clerkID)
	}
	return userID, nil
}

// RequireAdmin resolves the acting user and fails unless is_admin is set.
func (s *UserService) RequireAdmin(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	var isAdmin bool
	err := s.db.QueryRow(ctx,
		`SELECT id, is_admin FROM user_profiles WHERE clerk_id = $1`, clerkID).
		Scan(&userID, &isAdmin)
	if err != nil {
		return uuid.Nil, apperr.NotFound("user not found")
	}
	if !isAdmin {
		return uuid.Nil, apperr.Validation("admin permission required")
	}
	return userID, nil
}

func (s *UserService) SearchUsers(ctx context.Context, clerkID string, query string) ([]*user.User, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+userProfileColumns+`
		FROM user_profiles
		WHERE display_name ILIKE '%' || $2 || '%' AND id != $1
		ORDER BY display_name
		LIMIT 20`, userID, query)
	if err != nil {
		return nil, apperr.Persistence("failed to search users", err)
	}
	defer rows.Close()

	users := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Persistence("failed to scan user row", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// GetFriends returns the accepted friend list, the union over both
// directions of the friendship rows.
func (s *UserService) GetFriends(ctx context.Context, clerkID string) ([]*user.User, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+userProfileColumns+`
		FROM user_profiles u
		JOIN friendships f
		  ON (f.user_id = $1 AND f.friend_id = u.id)
		  OR (f.friend_id = $1 AND f.user_id = u.id)
		WHERE f.status = 'accepted'
		ORDER BY u.display_name`, userID)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch friends", err)
	}
	defer rows.Close()

	friends := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Persistence("failed to scan friend row", err)
		}
		friends = append(friends, u)
	}
	return friends, nil
}

// GetFriendRequests returns pending requests addressed to the user.
func (s *UserService) GetFriendRequests(ctx context.Context, clerkID string) ([]*user.User, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+userProfileColumns+`
		FROM user_profiles u
		JOIN friendships f ON f.user_id = u.id
		WHERE f.friend_id = $1 AND f.status = 'pending'
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch friend requests", err)
	}
	defer rows.Close()

	requesters := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Persistence("failed to scan friend request row", err)
		}
		requesters = append(requesters, u)
	}
	return requesters, nil
}

// AddFriend creates a pending friendship request. At most one row may
// exist per unordered pair, in either direction.
func (s *UserService) AddFriend(ctx context.Context, clerkID string, friendID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	friendUUID, err := uuid.Parse(friendID)
	if err != nil {
		return apperr.Validation("invalid friend id")
	}
	if userID == friendUUID {
		return apperr.Validation("cannot add yourself as a friend")
	}

	var friendExists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_profiles WHERE id = $1)`, friendUUID).Scan(&friendExists)
	if err != nil {
		return apperr.Persistence("failed to look up friend", err)
	}
	if !friendExists {
		return apperr.NotFound("friend user not found")
	}

	existing, err := s.friendshipBetween(ctx, userID, friendUUID)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Status == friendship.FriendshipAccepted {
			return apperr.Duplicate("you are already friends")
		}
		return apperr.Duplicate("a friend request between you already exists")
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO friendships (id, user_id, friend_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), userID, friendUUID, friendship.FriendshipPending)
	if err != nil {
		return apperr.Persistence("failed to create friendship", err)
	}

	s.notifications.Notify(ctx, friendUUID, notification.NotificationFriendRequest,
		"New friend request", "Someone wants to follow your dex",
		map[string]any{"requester_id": userID.String()})
	return nil
}

// AcceptFriend flips a pending request addressed to the user to accepted.
func (s *UserService) AcceptFriend(ctx context.Context, clerkID string, friendID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	friendUUID, err := uuid.Parse(friendID)
	if err != nil {
		return apperr.Validation("invalid friend id")
	}

	result, err := s.db.Exec(ctx, `
		UPDATE friendships SET status = $3
		WHERE user_id = $2 AND friend_id = $1 AND status = $4`,
		userID, friendUUID, friendship.FriendshipAccepted, friendship.FriendshipPending)
	if err != nil {
		return apperr.Persistence("failed to accept friendship", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("no pending friend request from that user")
	}

	s.notifications.Notify(ctx, friendUUID, notification.NotificationFriendAccept,
		"Friend request accepted", "You are now following each other's dex",
		map[string]any{"friend_id": userID.String()})
	return nil
}

// RemoveFriend deletes the friendship row regardless of direction or
// status, so it also withdraws a pending request.
func (s *UserService) RemoveFriend(ctx context.Context, clerkID string, friendID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	friendUUID, err := uuid.Parse(friendID)
	if err != nil {
		return apperr.Validation("invalid friend id")
	}

	result, err := s.db.Exec(ctx, `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2)
		   OR (user_id = $2 AND friend_id = $1)`, userID, friendUUID)
	if err != nil {
		return apperr.Persistence("failed to remove friendship", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("friendship not found")
	}
	return nil
}

// GetLeaderboard fetches a snapshot of profiles and photos and hands the
// ranking to the pure engine. The tie-break policy (unique species, then
// total photos, then profile fetch order) lives there, not in SQL, so it
// stays deterministic and testable. Scope is "global" or "friends".
func (s *UserService) GetLeaderboard(ctx context.Context, clerkID string, scope string) (*leaderboard.Leaderboard, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var profileRows pgx.Rows
	switch scope {
	case "friends":
		profileRows, err = s.db.Query(ctx, `
			SELECT u.id, u.display_name, u.image_url
			FROM user_profiles u
			WHERE u.id = $1
			   OR EXISTS (
				SELECT 1 FROM friendships f
				WHERE f.status = 'accepted'
				  AND ((f.user_id = $1 AND f.friend_id = u.id)
				    OR (f.friend_id = $1 AND f.user_id = u.id)))
			ORDER BY u.created_at, u.id`, userID)
	case "", "global":
		profileRows, err = s.db.Query(ctx, `
			SELECT id, display_name, image_url
			FROM user_profiles
			ORDER BY created_at, id`)
	default:
		return nil, apperr.Validation("unknown leaderboard scope %q", scope)
	}
	if err != nil {
		return nil, apperr.Persistence("failed to fetch leaderboard profiles", err)
	}

	profiles := []leaderboard.Profile{}
	for profileRows.Next() {
		var p leaderboard.Profile
		if err := profileRows.Scan(&p.UserID, &p.DisplayName, &p.ImageURL); err != nil {
			profileRows.Close()
			return nil, apperr.Persistence("failed to scan profile row", err)
		}
		profiles = append(profiles, p)
	}
	profileRows.Close()
	if err := profileRows.Err(); err != nil {
		return nil, apperr.Persistence("failed reading profile rows", err)
	}

	photoRows, err := s.db.Query(ctx, `
		SELECT user_id, species_id, hidden_from_feed
		FROM photos
		WHERE species_id <> ''`)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch leaderboard photos", err)
	}
	defer photoRows.Close()

	photos := []leaderboard.PhotoRecord{}
	for photoRows.Next() {
		var p leaderboard.PhotoRecord
		if err := photoRows.Scan(&p.OwnerID, &p.SpeciesID, &p.HiddenFromFeed); err != nil {
			return nil, apperr.Persistence("failed to scan photo row", err)
		}
		photos = append(photos, p)
	}
	if err := photoRows.Err(); err != nil {
		return nil, apperr.Persistence("failed reading photo rows", err)
	}

	entries := leaderboard.Compute(profiles, photos)

	board := &leaderboard.Leaderboard{
		Entries:    entries,
		TotalUsers: len(entries),
	}
	for _, e := range entries {
		if e.UserID == userID {
			board.UserPosition = e
			break
		}
	}
	log.Printf("Leaderboard: scope=%s users=%d", scope, len(entries))
	return board, nil
}
