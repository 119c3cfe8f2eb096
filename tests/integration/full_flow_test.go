package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdDexAPI/handlers"
	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/dex"
	"birdDexAPI/internal/storage"
	modelUser "birdDexAPI/internal/user"
	"birdDexAPI/middleware"
	"birdDexAPI/services"
	"birdDexAPI/tests/helpers"
)

// testStorage builds a storage client with static dummy credentials.
// Presigning is pure local computation, so no bucket has to exist.
func testStorage(t *testing.T) *storage.Storage {
	st, err := storage.New(context.Background(), storage.Config{
		Region:    "us-east-1",
		Bucket:    "birddex-test",
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return st
}

func createTestUser(t *testing.T, userService *services.UserService, tag string) *modelUser.User {
	clerkID := fmt.Sprintf("user_test_%s_%d", tag, time.Now().UnixNano())
	u, err := userService.CreateUser(context.Background(), &modelUser.CreateUserRequest{
		ClerkID:     clerkID,
		Email:       fmt.Sprintf("test+%s@example.com", tag),
		DisplayName: tag,
	})
	require.NoError(t, err)
	return u
}

func insertTestPhoto(t *testing.T, pool *pgxpool.Pool, userID string, species string) uuid.UUID {
	photoID := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO photos (id, user_id, species_id, object_key, content_type,
			privacy, hidden_from_feed, hidden_from_species_view, created_at)
		VALUES ($1, $2, $3, $4, 'image/jpeg', 'public', false, false, NOW())`,
		photoID, userID, species, userID+"/"+photoID.String())
	require.NoError(t, err)
	return photoID
}

func authedRequest(method, target string, clerkID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	return req.WithContext(ctx)
}

func TestFriendshipAndLeaderboardFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	userService := services.NewUserService(pool, notificationService)
	userHandler := handlers.NewUserHandler(userService)

	ann := createTestUser(t, userService, "ann")
	bo := createTestUser(t, userService, "bo")
	ctx := context.Background()

	// Ann requests, Bo accepts.
	require.NoError(t, userService.AddFriend(ctx, ann.ClerkID, bo.ID))

	// A second request in either direction is a duplicate.
	err := userService.AddFriend(ctx, bo.ClerkID, ann.ID)
	var de *apperr.DuplicateActionError
	require.ErrorAs(t, err, &de)

	pending, err := userService.GetFriendRequests(ctx, bo.ClerkID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ann.ID, pending[0].ID)

	require.NoError(t, userService.AcceptFriend(ctx, bo.ClerkID, ann.ID))

	friends, err := userService.GetFriends(ctx, ann.ClerkID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bo.ID, friends[0].ID)

	// Ann: 2 species / 2 photos. Bo: 1 species / 3 photos. Ann ranks first.
	insertTestPhoto(t, pool, ann.ID, "test_robin")
	insertTestPhoto(t, pool, ann.ID, "test_blue_jay")
	insertTestPhoto(t, pool, bo.ID, "test_robin")
	insertTestPhoto(t, pool, bo.ID, "test_robin")
	insertTestPhoto(t, pool, bo.ID, "test_robin")

	req := authedRequest(http.MethodGet, "/api/v1/user/leaderboard?scope=friends", ann.ClerkID)
	rr := httptest.NewRecorder()
	userHandler.GetLeaderboard(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var board struct {
		Entries []struct {
			UserID             string `json:"user_id"`
			UniqueSpeciesCount int    `json:"unique_species_count"`
			Rank               int    `json:"rank"`
		} `json:"entries"`
		TotalUsers int `json:"total_users"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &board))
	require.Equal(t, 2, board.TotalUsers)
	assert.Equal(t, ann.ID, board.Entries[0].UserID)
	assert.Equal(t, 2, board.Entries[0].UniqueSpeciesCount)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 2, board.Entries[1].Rank)

	// Removing the friendship shrinks the friends scope back to one.
	require.NoError(t, userService.RemoveFriend(ctx, ann.ClerkID, bo.ID))
	solo, err := userService.GetLeaderboard(ctx, ann.ClerkID, "friends")
	require.NoError(t, err)
	assert.Equal(t, 1, solo.TotalUsers)
}

func TestTopPhotoHiddenInvariant(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	userService := services.NewUserService(pool, notificationService)
	dexService := services.NewDexService(pool, testStorage(t))

	ann := createTestUser(t, userService, "dexann")
	ctx := context.Background()

	photoID := insertTestPhoto(t, pool, ann.ID, "test_heron")

	require.NoError(t, dexService.SetTopPhoto(ctx, ann.ClerkID, &dex.SetTopPhotoRequest{
		SpeciesID: "test_heron",
		PhotoID:   photoID.String(),
	}))

	entries, err := dexService.GetDex(ctx, ann.ClerkID, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].TopPhotoID)
	assert.Equal(t, photoID, *entries[0].TopPhotoID)
	assert.NotEmpty(t, entries[0].TopPhotoURL)

	// Hiding clears the designation first, then flags the photo.
	require.NoError(t, dexService.HideFromSpeciesView(ctx, ann.ClerkID, photoID.String()))

	entries, err = dexService.GetDex(ctx, ann.ClerkID, "")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A hidden photo can never become the top photo again.
	err = dexService.SetTopPhoto(ctx, ann.ClerkID, &dex.SetTopPhotoRequest{
		SpeciesID: "test_heron",
		PhotoID:   photoID.String(),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.MsgHiddenTopPhoto, err.Error())

	// Unhiding restores the grid cell but not the designation.
	require.NoError(t, dexService.UnhideFromSpeciesView(ctx, ann.ClerkID, photoID.String()))
	entries, err = dexService.GetDex(ctx, ann.ClerkID, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].TopPhotoID)
}
