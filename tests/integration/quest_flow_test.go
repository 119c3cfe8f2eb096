package integration

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/quest"
	"birdDexAPI/services"
	"birdDexAPI/tests/helpers"
)

func insertTestQuest(t *testing.T, pool *pgxpool.Pool, start, end time.Time) uuid.UUID {
	questID := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO quests (id, name, description, start_time, end_time, created_at)
		VALUES ($1, 'Test Quest', '', $2, $3, NOW())`,
		questID, start, end)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM quests WHERE id = $1`, questID)
	})
	return questID
}

func TestQuestEntryAndVotingFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	userService := services.NewUserService(pool, notificationService)
	questService := services.NewQuestService(pool, testStorage(t), notificationService)

	ann := createTestUser(t, userService, "questann")
	bo := createTestUser(t, userService, "questbo")
	ctx := context.Background()

	now := time.Now()
	questID := insertTestQuest(t, pool, now.Add(-time.Hour), now.Add(time.Hour))

	annPhoto := insertTestPhoto(t, pool, ann.ID, "test_owl")
	boPhoto := insertTestPhoto(t, pool, bo.ID, "test_owl")

	// Ann cannot enter Bo's photo.
	_, err := questService.SubmitEntry(ctx, ann.ClerkID, questID.String(),
		&quest.SubmitEntryRequest{PhotoID: boPhoto.String()})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	annEntry, err := questService.SubmitEntry(ctx, ann.ClerkID, questID.String(),
		&quest.SubmitEntryRequest{PhotoID: annPhoto.String()})
	require.NoError(t, err)

	// A second entry from the same user is a duplicate, even with a
	// different photo.
	other := insertTestPhoto(t, pool, ann.ID, "test_owl")
	_, err = questService.SubmitEntry(ctx, ann.ClerkID, questID.String(),
		&quest.SubmitEntryRequest{PhotoID: other.String()})
	var de *apperr.DuplicateActionError
	require.ErrorAs(t, err, &de)

	boEntry, err := questService.SubmitEntry(ctx, bo.ClerkID, questID.String(),
		&quest.SubmitEntryRequest{PhotoID: boPhoto.String()})
	require.NoError(t, err)

	// Bo votes for ann, then changes to their own entry. One vote per
	// voter per quest: the second vote overwrites the first.
	require.NoError(t, questService.CastVote(ctx, bo.ClerkID, questID.String(),
		&quest.CastVoteRequest{EntryID: annEntry.ID.String()}))
	require.NoError(t, questService.CastVote(ctx, bo.ClerkID, questID.String(),
		&quest.CastVoteRequest{EntryID: boEntry.ID.String()}))

	detail, err := questService.GetQuest(ctx, bo.ClerkID, questID.String())
	require.NoError(t, err)
	assert.Equal(t, quest.PhaseActive, detail.Quest.Phase)
	assert.Equal(t, 1, detail.TotalVotes)
	require.NotNil(t, detail.MyVote)
	assert.Equal(t, boEntry.ID, *detail.MyVote)

	counts := map[uuid.UUID]int{}
	for _, e := range detail.Entries {
		counts[e.ID] = e.VoteCount
		assert.NotEmpty(t, e.PhotoURL)
	}
	assert.Equal(t, 0, counts[annEntry.ID])
	assert.Equal(t, 1, counts[boEntry.ID])

	// Winner cannot be set while the quest is active.
	err = questService.SetWinner(ctx, questID.String(), &quest.SetWinnerRequest{
		EntryID: boEntry.ID.String(),
	})
	require.ErrorAs(t, err, &ve)
}

func TestQuestWinnerIsExternallySet(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	userService := services.NewUserService(pool, notificationService)
	questService := services.NewQuestService(pool, testStorage(t), notificationService)

	ann := createTestUser(t, userService, "winann")
	ctx := context.Background()

	// Already-ended quest with one entry inserted directly.
	now := time.Now()
	questID := insertTestQuest(t, pool, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	photoID := insertTestPhoto(t, pool, ann.ID, "test_crane")

	entryID := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO quest_entries (id, quest_id, user_id, photo_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		entryID, questID, ann.ID, photoID)
	require.NoError(t, err)

	// Entries cannot be added and votes cannot be cast after the end.
	_, err = questService.SubmitEntry(ctx, ann.ClerkID, questID.String(),
		&quest.SubmitEntryRequest{PhotoID: photoID.String()})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	err = questService.CastVote(ctx, ann.ClerkID, questID.String(),
		&quest.CastVoteRequest{EntryID: entryID.String()})
	require.ErrorAs(t, err, &ve)

	// The winner is whatever the admin designates, votes or no votes.
	require.NoError(t, questService.SetWinner(ctx, questID.String(),
		&quest.SetWinnerRequest{EntryID: entryID.String()}))

	detail, err := questService.GetQuest(ctx, ann.ClerkID, questID.String())
	require.NoError(t, err)
	assert.Equal(t, quest.PhaseEnded, detail.Quest.Phase)
	require.NotNil(t, detail.Quest.WinnerEntryID)
	assert.Equal(t, entryID, *detail.Quest.WinnerEntryID)
	require.Len(t, detail.Entries, 1)
	assert.True(t, detail.Entries[0].IsWinner)

	// Entries from a foreign quest are rejected.
	otherQuest := insertTestQuest(t, pool, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	err = questService.SetWinner(ctx, otherQuest.String(),
		&quest.SetWinnerRequest{EntryID: entryID.String()})
	var ne *apperr.NotFoundError
	require.ErrorAs(t, err, &ne)
}

func TestQuestShareQR(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	questService := services.NewQuestService(pool, testStorage(t), notificationService)
	ctx := context.Background()

	now := time.Now()
	questID := insertTestQuest(t, pool, now, now.Add(time.Hour))

	qr, err := questService.GenerateShareQR(ctx, questID.String())
	require.NoError(t, err)

	png, err := base64.StdEncoding.DecodeString(qr)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = questService.GenerateShareQR(ctx, uuid.New().String())
	var ne *apperr.NotFoundError
	require.ErrorAs(t, err, &ne)
}
