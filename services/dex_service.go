package services

import (
	"context"
	"errors"
	"log"

	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/dex"
	"birdDexAPI/internal/storage"
	"birdDexAPI/internal/types/photo"
	"birdDexAPI/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DexService struct {
	db      *pgxpool.Pool
	storage *storage.Storage
}

func NewDexService(db *pgxpool.Pool, st *storage.Storage) *DexService {
	return &DexService{db: db, storage: st}
}

// GetDex returns the collection grid: one entry per species the user has a
// visible photo of, with its designated top photo when one is set.
func (s *DexService) GetDex(ctx context.Context, clerkID string, ownerID string) ([]*dex.DexEntry, error) {
	callerID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	// Default to the caller's own dex; a friend's dex needs an accepted
	// friendship.
	targetID := callerID
	if ownerID != "" {
		targetID, err = uuid.Parse(ownerID)
		if err != nil {
			return nil, apperr.Validation("invalid user id")
		}
		if targetID != callerID {
			var friends bool
			err = s.db.QueryRow(ctx, `
				SELECT EXISTS(
					SELECT 1 FROM friendships f
					WHERE f.status = 'accepted'
					  AND ((f.user_id = $1 AND f.friend_id = $2)
					    OR (f.friend_id = $1 AND f.user_id = $2)))`,
				callerID, targetID).Scan(&friends)
			if err != nil {
				return nil, apperr.Persistence("failed to check friendship", err)
			}
			if !friends {
				return nil, apperr.NotFound("user not found")
			}
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.species_id,
		       COUNT(*) AS photo_count,
		       MIN(p.created_at) AS first_collected_at,
		       MAX(p.created_at) AS latest_collected_at,
		       ts.photo_id,
		       tp.object_key,
		       tp.thumb_object_key
		FROM photos p
		LEFT JOIN top_species ts ON ts.user_id = p.user_id AND ts.species_id = p.species_id
		LEFT JOIN photos tp ON tp.id = ts.photo_id
		WHERE p.user_id = $1
		  AND p.species_id <> ''
		  AND p.hidden_from_species_view = false
		GROUP BY p.species_id, ts.photo_id, tp.object_key, tp.thumb_object_key
		ORDER BY p.species_id`, targetID)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch dex", err)
	}
	defer rows.Close()

	entries := []*dex.DexEntry{}
	for rows.Next() {
		e := &dex.DexEntry{}
		var topKey, topThumbKey *string
		err := rows.Scan(&e.SpeciesID, &e.PhotoCount, &e.FirstCollectedAt, &e.LatestCollectedAt,
			&e.TopPhotoID, &topKey, &topThumbKey)
		if err != nil {
			return nil, apperr.Persistence("failed to scan dex row", err)
		}
		if topKey != nil {
			if url, err := s.storage.PresignDownload(ctx, *topKey); err == nil {
				e.TopPhotoURL = url
			} else {
				log.Printf("DexService: failed to presign %s: %v", *topKey, err)
			}
		}
		if topThumbKey != nil {
			if url, err := s.storage.PresignDownload(ctx, *topThumbKey); err == nil {
				e.TopPhotoThumbURL = url
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetTopPhoto designates the photo shown for a species on the dex grid.
// The mapping is keyed on (user_id, species_id), so setting it replaces
// any previous designation for that species.
func (s *DexService) SetTopPhoto(ctx context.Context, clerkID string, req *dex.SetTopPhotoRequest) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	photoID, err := uuid.Parse(req.PhotoID)
	if err != nil {
		return apperr.Validation("invalid photo id")
	}
	species := utils.NormalizeSpeciesCode(req.SpeciesID)

	var photoSpecies string
	var hidden bool
	err = s.db.QueryRow(ctx,
		`SELECT species_id, hidden_from_species_view FROM photos WHERE id = $1 AND user_id = $2`,
		photoID, userID).Scan(&photoSpecies, &hidden)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("photo not found")
		}
		return apperr.Persistence("failed to fetch photo", err)
	}

	if err := dex.CheckTopPhotoCandidate(hidden, species, photoSpecies); err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO top_species (user_id, species_id, photo_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, species_id)
		DO UPDATE SET photo_id = EXCLUDED.photo_id, updated_at = EXCLUDED.updated_at`,
		userID, species, photoID)
	if err != nil {
		return apperr.Persistence("failed to set top photo", err)
	}
	return nil
}

// HideFromSpeciesView hides a photo from the dex grid. The operation is
// ordered: the top-photo designation is cleared before the hidden flag is
// set, so a hidden photo is never simultaneously a top photo.
func (s *DexService) HideFromSpeciesView(ctx context.Context, clerkID string, photoID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return apperr.Validation("invalid photo id")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.Persistence("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM top_species WHERE user_id = $1 AND photo_id = $2`, userID, pID)
	if err != nil {
		return apperr.Persistence("failed to clear top photo mapping", err)
	}

	result, err := tx.Exec(ctx,
		`UPDATE photos SET hidden_from_species_view = true WHERE id = $1 AND user_id = $2`,
		pID, userID)
	if err != nil {
		return apperr.Persistence("failed to hide photo", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("photo not found")
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Persistence("failed to commit hide", err)
	}
	return nil
}

// UnhideFromSpeciesView puts a photo back on the grid. It does not restore
// any top-photo designation the hide cleared.
func (s *DexService) UnhideFromSpeciesView(ctx context.Context, clerkID string, photoID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return apperr.Validation("invalid photo id")
	}

	result, err := s.db.Exec(ctx,
		`UPDATE photos SET hidden_from_species_view = false WHERE id = $1 AND user_id = $2`,
		pID, userID)
	if err != nil {
		return apperr.Persistence("failed to unhide photo", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("photo not found")
	}
	return nil
}

// ReassignSpecies retags a photo. Any top-photo designation under the old
// species is dropped; the photo does not become top of the new species.
func (s *DexService) ReassignSpecies(ctx context.Context, clerkID string, photoID string, req *photo.ReassignSpeciesRequest) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return apperr.Validation("invalid photo id")
	}
	species := utils.NormalizeSpeciesCode(req.SpeciesID)
	if !utils.IsValidSpeciesCode(species) {
		return apperr.Validation("invalid species code %q", req.SpeciesID)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.Persistence("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM top_species WHERE user_id = $1 AND photo_id = $2`, userID, pID)
	if err != nil {
		return apperr.Persistence("failed to clear top photo mapping", err)
	}

	result, err := tx.Exec(ctx,
		`UPDATE photos SET species_id = $3 WHERE id = $1 AND user_id = $2`,
		pID, userID, species)
	if err != nil {
		return apperr.Persistence("failed to reassign species", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("photo not found")
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Persistence("failed to commit species reassignment", err)
	}
	return nil
}

func (s *DexService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM user_profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, apperr.NotFound("user not found for clerk_id %s", clerkID)
	}
	return userID, nil
}
