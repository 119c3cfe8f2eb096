package quest

import (
	"time"

	"github.com/google/uuid"
)

// Phase is derived from the clock at read time; it is never stored and
// only ever moves forward.
type Phase string

const (
	PhaseUpcoming Phase = "upcoming"
	PhaseActive   Phase = "active"
	PhaseEnded    Phase = "ended"
)

type Quest struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	Name                  string     `json:"name" db:"name"`
	Description           string     `json:"description" db:"description"`
	StartTime             time.Time  `json:"start_time" db:"start_time"`
	EndTime               time.Time  `json:"end_time" db:"end_time"`
	ParticipationAwardURL *string    `json:"participation_award_url,omitempty" db:"participation_award_url"`
	Top10AwardURL         *string    `json:"top10_award_url,omitempty" db:"top10_award_url"`
	WinnerEntryID         *uuid.UUID `json:"winner_entry_id,omitempty" db:"winner_entry_id"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`

	Phase Phase `json:"phase"`
}

type Entry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	QuestID   uuid.UUID `json:"quest_id" db:"quest_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	PhotoID   uuid.UUID `json:"photo_id" db:"photo_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	VoteCount   int    `json:"vote_count"`
	IsWinner    bool   `json:"is_winner"`
}

type Vote struct {
	VoterID   uuid.UUID `json:"voter_id" db:"voter_id"`
	QuestID   uuid.UUID `json:"quest_id" db:"quest_id"`
	EntryID   uuid.UUID `json:"entry_id" db:"entry_id"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CreateQuestRequest struct {
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	StartTime             time.Time `json:"startTime"`
	EndTime               time.Time `json:"endTime"`
	ParticipationAwardURL *string   `json:"participationAwardUrl,omitempty"`
	Top10AwardURL         *string   `json:"top10AwardUrl,omitempty"`
}

type SubmitEntryRequest struct {
	PhotoID string `json:"photoId"`
}

type CastVoteRequest struct {
	EntryID string `json:"entryId"`
}

type SetWinnerRequest struct {
	EntryID string `json:"entryId"`
}
