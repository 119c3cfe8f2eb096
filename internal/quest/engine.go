package quest

import (
	"time"

	"birdDexAPI/internal/apperr"

	"github.com/google/uuid"
)

// Classify derives the quest phase from the clock. Total over any input:
// start_time is inclusive-active, end_time is exclusive-active, so
// now == start_time means Active and now == end_time means Ended.
func Classify(q *Quest, now time.Time) Phase {
	if now.Before(q.StartTime) {
		return PhaseUpcoming
	}
	if now.Before(q.EndTime) {
		return PhaseActive
	}
	return PhaseEnded
}

// Tally groups votes by entry. Ties stay unresolved here: the winner is an
// externally supplied designation, never derived from counts.
func Tally(votes []Vote) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int, len(votes))
	for _, v := range votes {
		counts[v.EntryID]++
	}
	return counts
}

// ValidateSubmission checks every entry precondition before any write.
// The (quest_id, user_id) unique constraint in the datastore is the
// backstop; the existence check here keeps the error typed instead of a
// raw constraint violation.
func ValidateSubmission(q *Quest, now time.Time, hasExistingEntry bool, photoOwnerID, userID uuid.UUID) error {
	switch Classify(q, now) {
	case PhaseUpcoming:
		return apperr.Validation("quest %q has not started yet", q.Name)
	case PhaseEnded:
		return apperr.Validation("quest %q has ended", q.Name)
	}
	if photoOwnerID != userID {
		return apperr.Validation("entry photo must belong to the submitting user")
	}
	if hasExistingEntry {
		return apperr.Duplicate("you already have an entry in this quest")
	}
	return nil
}

// ValidateVote permits voting only while the quest is active. Voting for
// one's own entry is allowed; a repeat vote overwrites the previous one
// at the persistence layer.
func ValidateVote(q *Quest, now time.Time) error {
	switch Classify(q, now) {
	case PhaseUpcoming:
		return apperr.Validation("voting opens when the quest starts")
	case PhaseEnded:
		return apperr.Validation("voting has closed for this quest")
	}
	return nil
}

// ValidateCreate rejects an impossible time window before any write.
func ValidateCreate(req *CreateQuestRequest) error {
	if req.Name == "" {
		return apperr.Validation("quest name is required")
	}
	if !req.EndTime.After(req.StartTime) {
		return apperr.Validation("quest end time must be after its start time")
	}
	return nil
}
