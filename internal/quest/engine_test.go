package quest

import (
	"testing"
	"time"

	"birdDexAPI/internal/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	questStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	questEnd   = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
)

func testQuest() *Quest {
	return &Quest{
		ID:        uuid.New(),
		Name:      "Winter Raptors",
		StartTime: questStart,
		EndTime:   questEnd,
	}
}

func TestClassifyBoundaries(t *testing.T) {
	q := testQuest()

	tests := []struct {
		name string
		now  time.Time
		want Phase
	}{
		{"before start", questStart.Add(-time.Second), PhaseUpcoming},
		{"exactly at start", questStart, PhaseActive},
		{"mid window", questStart.Add(72 * time.Hour), PhaseActive},
		{"just before end", questEnd.Add(-time.Nanosecond), PhaseActive},
		{"exactly at end", questEnd, PhaseEnded},
		{"after end", questEnd.Add(time.Hour), PhaseEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(q, tt.now))
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	// A degenerate window still classifies without a fourth state.
	q := &Quest{StartTime: questStart, EndTime: questStart}
	assert.Equal(t, PhaseUpcoming, Classify(q, questStart.Add(-time.Second)))
	assert.Equal(t, PhaseEnded, Classify(q, questStart))
}

func TestTally(t *testing.T) {
	entryA := uuid.New()
	entryB := uuid.New()

	votes := []Vote{
		{VoterID: uuid.New(), EntryID: entryA},
		{VoterID: uuid.New(), EntryID: entryA},
		{VoterID: uuid.New(), EntryID: entryB},
	}

	counts := Tally(votes)
	assert.Equal(t, 2, counts[entryA])
	assert.Equal(t, 1, counts[entryB])
	assert.Equal(t, 0, counts[uuid.New()])

	// Re-tallying the same votes gives the same counts.
	assert.Equal(t, counts, Tally(votes))
	assert.Empty(t, Tally(nil))
}

func TestValidateSubmission(t *testing.T) {
	q := testQuest()
	userID := uuid.New()
	active := questStart.Add(time.Hour)

	t.Run("ok during active window", func(t *testing.T) {
		assert.NoError(t, ValidateSubmission(q, active, false, userID, userID))
	})

	t.Run("rejected before start", func(t *testing.T) {
		err := ValidateSubmission(q, questStart.Add(-time.Hour), false, userID, userID)
		require.Error(t, err)
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("rejected at end instant", func(t *testing.T) {
		err := ValidateSubmission(q, questEnd, false, userID, userID)
		require.Error(t, err)
	})

	t.Run("rejected for foreign photo", func(t *testing.T) {
		err := ValidateSubmission(q, active, false, uuid.New(), userID)
		require.Error(t, err)
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("second entry is a duplicate", func(t *testing.T) {
		err := ValidateSubmission(q, active, true, userID, userID)
		require.Error(t, err)
		var de *apperr.DuplicateActionError
		assert.ErrorAs(t, err, &de)
	})
}

func TestValidateVote(t *testing.T) {
	q := testQuest()

	assert.NoError(t, ValidateVote(q, questStart))
	assert.NoError(t, ValidateVote(q, questEnd.Add(-time.Second)))

	err := ValidateVote(q, questStart.Add(-time.Minute))
	require.Error(t, err)

	err = ValidateVote(q, questEnd)
	require.Error(t, err)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestValidateCreate(t *testing.T) {
	valid := &CreateQuestRequest{Name: "Spring Warblers", StartTime: questStart, EndTime: questEnd}
	assert.NoError(t, ValidateCreate(valid))

	noName := &CreateQuestRequest{StartTime: questStart, EndTime: questEnd}
	assert.Error(t, ValidateCreate(noName))

	inverted := &CreateQuestRequest{Name: "x", StartTime: questEnd, EndTime: questStart}
	assert.Error(t, ValidateCreate(inverted))

	empty := &CreateQuestRequest{Name: "x", StartTime: questStart, EndTime: questStart}
	assert.Error(t, ValidateCreate(empty))
}
