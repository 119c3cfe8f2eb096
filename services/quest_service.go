package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/notification"
	"birdDexAPI/internal/quest"
	"birdDexAPI/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skip2/go-qrcode"
)

type QuestService struct {
	db            *pgxpool.Pool
	storage       *storage.Storage
	notifications *NotificationService
}

func NewQuestService(db *pgxpool.Pool, st *storage.Storage, notifications *NotificationService) *QuestService {
	return &QuestService{db: db, storage: st, notifications: notifications}
}

const questColumns = `id, name, description, start_time, end_time,
	participation_award_url, top10_award_url, winner_entry_id, created_at`

func scanQuest(row pgx.Row) (*quest.Quest, error) {
	q := &quest.Quest{}
	err := row.Scan(&q.ID, &q.Name, &q.Description, &q.StartTime, &q.EndTime,
		&q.ParticipationAwardURL, &q.Top10AwardURL, &q.WinnerEntryID, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// QuestDetail is a quest with its entries, vote tallies and the caller's
// own vote attached.
type QuestDetail struct {
	Quest      *quest.Quest   `json:"quest"`
	Entries    []*quest.Entry `json:"entries"`
	MyEntryID  *uuid.UUID     `json:"my_entry_id,omitempty"`
	MyVote     *uuid.UUID     `json:"my_vote,omitempty"`
	TotalVotes int            `json:"total_votes"`
}

// ListQuests returns all quests with their derived phase, soonest-ending
// active quests first, then upcoming, then ended.
func (s *QuestService) ListQuests(ctx context.Context) ([]*quest.Quest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+questColumns+` FROM quests ORDER BY end_time DESC`)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch quests", err)
	}
	defer rows.Close()

	now := time.Now()
	quests := []*quest.Quest{}
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, apperr.Persistence("failed to scan quest row", err)
		}
		q.Phase = quest.Classify(q, now)
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

// GetQuest loads one quest with its entries. Tallies are computed from the
// vote rows in memory; vote counts are display data, never the source of
// the winner, which is only ever the stored winner_entry_id.
func (s *QuestService) GetQuest(ctx context.Context, clerkID string, questID string) (*QuestDetail, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	qID, err := uuid.Parse(questID)
	if err != nil {
		return nil, apperr.Validation("invalid quest id")
	}

	q, err := scanQuest(s.db.QueryRow(ctx,
		`SELECT `+questColumns+` FROM quests WHERE id = $1`, qID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("quest not found")
		}
		return nil, apperr.Persistence("failed to fetch quest", err)
	}
	q.Phase = quest.Classify(q, time.Now())

	entryRows, err := s.db.Query(ctx, `
		SELECT e.id, e.quest_id, e.user_id, e.photo_id, e.created_at,
		       u.display_name, p.object_key
		FROM quest_entries e
		JOIN user_profiles u ON u.id = e.user_id
		JOIN photos p ON p.id = e.photo_id
		WHERE e.quest_id = $1
		ORDER BY e.created_at`, qID)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch quest entries", err)
	}
	defer entryRows.Close()

	detail := &QuestDetail{Quest: q, Entries: []*quest.Entry{}}
	for entryRows.Next() {
		e := &quest.Entry{}
		var objectKey string
		err := entryRows.Scan(&e.ID, &e.QuestID, &e.UserID, &e.PhotoID, &e.CreatedAt,
			&e.DisplayName, &objectKey)
		if err != nil {
			return nil, apperr.Persistence("failed to scan entry row", err)
		}
		if url, err := s.storage.PresignDownload(ctx, objectKey); err == nil {
			e.PhotoURL = url
		} else {
			log.Printf("QuestService: failed to presign %s: %v", objectKey, err)
		}
		if q.WinnerEntryID != nil && *q.WinnerEntryID == e.ID {
			e.IsWinner = true
		}
		if e.UserID == userID {
			id := e.ID
			detail.MyEntryID = &id
		}
		detail.Entries = append(detail.Entries, e)
	}
	if err := entryRows.Err(); err != nil {
		return nil, apperr.Persistence("failed reading entry rows", err)
	}

	voteRows, err := s.db.Query(ctx,
		`SELECT voter_id, quest_id, entry_id, updated_at FROM quest_votes WHERE quest_id = $1`, qID)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch quest votes", err)
	}
	defer voteRows.Close()

	votes := []quest.Vote{}
	for voteRows.Next() {
		var v quest.Vote
		if err := voteRows.Scan(&v.VoterID, &v.QuestID, &v.EntryID, &v.UpdatedAt); err != nil {
			return nil, apperr.Persistence("failed to scan vote row", err)
		}
		if v.VoterID == userID {
			id := v.EntryID
			detail.MyVote = &id
		}
		votes = append(votes, v)
	}
	if err := voteRows.Err(); err != nil {
		return nil, apperr.Persistence("failed reading vote rows", err)
	}

	counts := quest.Tally(votes)
	for _, e := range detail.Entries {
		e.VoteCount = counts[e.ID]
	}
	detail.TotalVotes = len(votes)
	return detail, nil
}

// CreateQuest is admin-only; the admin check happens in the handler via
// UserService.RequireAdmin.
func (s *QuestService) CreateQuest(ctx context.Context, req *quest.CreateQuestRequest) (*quest.Quest, error) {
	if err := quest.ValidateCreate(req); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO quests (id, name, description, start_time, end_time,
			participation_award_url, top10_award_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING `+questColumns,
		uuid.New(), req.Name, req.Description, req.StartTime, req.EndTime,
		req.ParticipationAwardURL, req.Top10AwardURL)
	q, err := scanQuest(row)
	if err != nil {
		return nil, apperr.Persistence("failed to create quest", err)
	}
	q.Phase = quest.Classify(q, time.Now())
	log.Printf("QuestService: created quest %s (%s)", q.ID, q.Name)
	return q, nil
}

// SubmitEntry enters one of the caller's photos into an active quest. One
// entry per user per quest; the unique constraint on (quest_id, user_id)
// backstops the existence check against concurrent submissions.
func (s *QuestService) SubmitEntry(ctx context.Context, clerkID string, questID string, req *quest.SubmitEntryRequest) (*quest.Entry, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	qID, err := uuid.Parse(questID)
	if err != nil {
		return nil, apperr.Validation("invalid quest id")
	}
	photoID, err := uuid.Parse(req.PhotoID)
	if err != nil {
		return nil, apperr.Validation("invalid photo id")
	}

	q, err := scanQuest(s.db.QueryRow(ctx,
		`SELECT `+questColumns+` FROM quests WHERE id = $1`, qID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("quest not found")
		}
		return nil, apperr.Persistence("failed to fetch quest", err)
	}

	var photoOwnerID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT user_id FROM photos WHERE id = $1`, photoID).Scan(&photoOwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("photo not found")
		}
		return nil, apperr.Persistence("failed to fetch photo", err)
	}

	var hasEntry bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM quest_entries WHERE quest_id = $1 AND user_id = $2)`,
		qID, userID).Scan(&hasEntry)
	if err != nil {
		return nil, apperr.Persistence("failed to check existing entry", err)
	}

	if err := quest.ValidateSubmission(q, time.Now(), hasEntry, photoOwnerID, userID); err != nil {
		return nil, err
	}

	e := &quest.Entry{ID: uuid.New(), QuestID: qID, UserID: userID, PhotoID: photoID}
	err = s.db.QueryRow(ctx, `
		INSERT INTO quest_entries (id, quest_id, user_id, photo_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`,
		e.ID, qID, userID, photoID).Scan(&e.CreatedAt)
	if err != nil {
		// Concurrent duplicate slips past the existence check and lands
		// on the unique constraint.
		return nil, apperr.Duplicate("you already have an entry in this quest")
	}
	return e, nil
}

// CastVote records the caller's vote for an entry. One vote per voter per
// quest: a repeat vote overwrites the previous one via upsert on
// (voter_id, quest_id).
func (s *QuestService) CastVote(ctx context.Context, clerkID string, questID string, req *quest.CastVoteRequest) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	qID, err := uuid.Parse(questID)
	if err != nil {
		return apperr.Validation("invalid quest id")
	}
	entryID, err := uuid.Parse(req.EntryID)
	if err != nil {
		return apperr.Validation("invalid entry id")
	}

	q, err := scanQuest(s.db.QueryRow(ctx,
		`SELECT `+questColumns+` FROM quests WHERE id = $1`, qID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("quest not found")
		}
		return apperr.Persistence("failed to fetch quest", err)
	}

	if err := quest.ValidateVote(q, time.Now()); err != nil {
		return err
	}

	var entryInQuest bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM quest_entries WHERE id = $1 AND quest_id = $2)`,
		entryID, qID).Scan(&entryInQuest)
	if err != nil {
		return apperr.Persistence("failed to check entry", err)
	}
	if !entryInQuest {
		return apperr.NotFound("entry not found in this quest")
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO quest_votes (voter_id, quest_id, entry_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (voter_id, quest_id)
		DO UPDATE SET entry_id = EXCLUDED.entry_id, updated_at = EXCLUDED.updated_at`,
		userID, qID, entryID)
	if err != nil {
		return apperr.Persistence("failed to cast vote", err)
	}
	return nil
}

// SetWinner stores the externally chosen winner on an ended quest. Vote
// tallies inform the choice but never make it; admins settle ties and
// disqualifications out of band.
func (s *QuestService) SetWinner(ctx context.Context, questID string, req *quest.SetWinnerRequest) error {
	qID, err := uuid.Parse(questID)
	if err != nil {
		return apperr.Validation("invalid quest id")
	}
	entryID, err := uuid.Parse(req.EntryID)
	if err != nil {
		return apperr.Validation("invalid entry id")
	}

	q, err := scanQuest(s.db.QueryRow(ctx,
		`SELECT `+questColumns+` FROM quests WHERE id = $1`, qID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("quest not found")
		}
		return apperr.Persistence("failed to fetch quest", err)
	}
	if quest.Classify(q, time.Now()) != quest.PhaseEnded {
		return apperr.Validation("winner can only be set after the quest ends")
	}

	var winnerUserID uuid.UUID
	err = s.db.QueryRow(ctx,
		`SELECT user_id FROM quest_entries WHERE id = $1 AND quest_id = $2`,
		entryID, qID).Scan(&winnerUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("entry not found in this quest")
		}
		return apperr.Persistence("failed to fetch entry", err)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE quests SET winner_entry_id = $2 WHERE id = $1`, qID, entryID)
	if err != nil {
		return apperr.Persistence("failed to set winner", err)
	}

	s.notifications.Notify(ctx, winnerUserID, notification.NotificationQuestWinner,
		"You won a quest!", fmt.Sprintf("Your photo won %q", q.Name),
		map[string]any{"quest_id": qID.String(), "entry_id": entryID.String()})
	return nil
}

// GenerateShareQR renders a deep-link QR code for a quest as base64 PNG.
func (s *QuestService) GenerateShareQR(ctx context.Context, questID string) (string, error) {
	qID, err := uuid.Parse(questID)
	if err != nil {
		return "", apperr.Validation("invalid quest id")
	}

	var exists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM quests WHERE id = $1)`, qID).Scan(&exists)
	if err != nil {
		return "", apperr.Persistence("failed to check quest", err)
	}
	if !exists {
		return "", apperr.NotFound("quest not found")
	}

	deepLink := fmt.Sprintf("birddex://quest/join/%s", qID)
	png, err := qrcode.Encode(deepLink, qrcode.Medium, 256)
	if err != nil {
		return "", apperr.Persistence("failed to generate QR code", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

func (s *QuestService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM user_profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, apperr.NotFound("user not found for clerk_id %s", clerkID)
	}
	return userID, nil
}
