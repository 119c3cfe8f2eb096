package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"birdDexAPI/internal/apperr"
	"birdDexAPI/internal/geocode"
	"birdDexAPI/internal/storage"
	"birdDexAPI/internal/types/photo"
	"birdDexAPI/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PhotoService struct {
	db       *pgxpool.Pool
	storage  *storage.Storage
	geocoder *geocode.Client
}

func NewPhotoService(db *pgxpool.Pool, st *storage.Storage, geocoder *geocode.Client) *PhotoService {
	return &PhotoService{db: db, storage: st, geocoder: geocoder}
}

const photoColumns = `id, user_id, species_id, object_key, thumb_object_key, content_type, privacy,
	lat, lng, location_text, description, hidden_from_feed, hidden_from_species_view, created_at`

// photoColumnsP is the same list qualified for queries that join photos p
// against other tables.
const photoColumnsP = `p.id, p.user_id, p.species_id, p.object_key, p.thumb_object_key, p.content_type, p.privacy,
	p.lat, p.lng, p.location_text, p.description, p.hidden_from_feed, p.hidden_from_species_view, p.created_at`

func scanPhoto(row pgx.Row) (*photo.Photo, error) {
	p := &photo.Photo{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.SpeciesID, &p.ObjectKey, &p.ThumbObjectKey, &p.ContentType,
		&p.Privacy, &p.Lat, &p.Lng, &p.LocationText, &p.Description,
		&p.HiddenFromFeed, &p.HiddenFromSpeciesView, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateUploadURL reserves a photo row and returns presigned PUT URLs. The
// row is created with an empty species and both visibility flags set, so it
// is invisible everywhere until ConfirmUpload tags it.
func (s *PhotoService) CreateUploadURL(ctx context.Context, clerkID string, req *photo.UploadURLRequest) (*photo.UploadURLResponse, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, apperr.Validation("content type must be an image, got %q", req.ContentType)
	}

	photoID := uuid.New()
	key := storage.ObjectKey(userID.String(), photoID.String())

	uploadURL, err := s.storage.PresignUpload(ctx, key, req.ContentType)
	if err != nil {
		return nil, apperr.Persistence("failed to presign upload", err)
	}

	resp := &photo.UploadURLResponse{
		PhotoID:   photoID,
		UploadURL: uploadURL,
		ExpiresIn: int(storage.UploadTTL.Seconds()),
	}

	var thumbKey *string
	if req.WithThumbnail {
		tk := storage.ThumbObjectKey(userID.String(), photoID.String())
		thumbURL, err := s.storage.PresignUpload(ctx, tk, req.ContentType)
		if err != nil {
			return nil, apperr.Persistence("failed to presign thumbnail upload", err)
		}
		resp.ThumbnailUploadURL = thumbURL
		thumbKey = &tk
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO photos (id, user_id, species_id, object_key, thumb_object_key, content_type,
			privacy, hidden_from_feed, hidden_from_species_view, created_at)
		VALUES ($1, $2, '', $3, $4, $5, 'private', true, true, NOW())`,
		photoID, userID, key, thumbKey, req.ContentType)
	if err != nil {
		return nil, apperr.Persistence("failed to reserve photo", err)
	}

	return resp, nil
}

// ConfirmUpload tags a reserved photo with its species and metadata and
// makes it visible. Reverse geocoding is best-effort: a failure still
// confirms the photo, with location_text left empty.
func (s *PhotoService) ConfirmUpload(ctx context.Context, clerkID string, req *photo.ConfirmUploadRequest) (*photo.Photo, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	photoID, err := uuid.Parse(req.PhotoID)
	if err != nil {
		return nil, apperr.Validation("invalid photo id")
	}

	species := utils.NormalizeSpeciesCode(req.SpeciesID)
	if !utils.IsValidSpeciesCode(species) {
		return nil, apperr.Validation("invalid species code %q", req.SpeciesID)
	}

	privacy := req.Privacy
	switch privacy {
	case "":
		privacy = photo.PrivacyPublic
	case photo.PrivacyPublic, photo.PrivacyFriends, photo.PrivacyPrivate:
	default:
		return nil, apperr.Validation("unknown privacy setting %q", privacy)
	}

	var locationText *string
	if req.Lat != nil && req.Lng != nil && s.geocoder != nil {
		if text := s.geocoder.Reverse(ctx, *req.Lat, *req.Lng); text != geocode.UnknownLocation {
			locationText = &text
		}
	}

	row := s.db.QueryRow(ctx, `
		UPDATE photos
		SET species_id = $3, privacy = $4, lat = $5, lng = $6,
		    location_text = $7, description = $8,
		    hidden_from_feed = false, hidden_from_species_view = false
		WHERE id = $1 AND user_id = $2
		RETURNING `+photoColumns,
		photoID, userID, species, privacy, req.Lat, req.Lng, locationText, req.Description)

	p, err := scanPhoto(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("photo not found")
		}
		return nil, apperr.Persistence("failed to confirm upload", err)
	}

	s.attachURLs(ctx, p)
	log.Printf("PhotoService: confirmed photo %s species=%s", p.ID, p.SpeciesID)
	return p, nil
}

// ListPhotos returns the caller's own photos, optionally filtered by
// species, with signed URLs and the is_top projection attached.
func (s *PhotoService) ListPhotos(ctx context.Context, clerkID string, speciesID string, limit, offset int) ([]*photo.Photo, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	// An empty species filter matches every tagged photo, so one query
	// covers both the filtered and unfiltered list.
	species := ""
	if speciesID != "" {
		species = utils.NormalizeSpeciesCode(speciesID)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+photoColumnsP+`, ts.photo_id IS NOT NULL AS is_top
		FROM photos p
		LEFT JOIN top_species ts
		  ON ts.user_id = p.user_id AND ts.species_id = p.species_id AND ts.photo_id = p.id
		WHERE p.user_id = $1 AND p.species_id <> ''
		  AND ($2 = '' OR p.species_id = $2)
		ORDER BY p.created_at DESC
		LIMIT $3 OFFSET $4`, userID, species, limit, offset)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch photos", err)
	}
	defer rows.Close()

	photos := []*photo.Photo{}
	for rows.Next() {
		p := &photo.Photo{}
		err := rows.Scan(
			&p.ID, &p.UserID, &p.SpeciesID, &p.ObjectKey, &p.ThumbObjectKey, &p.ContentType,
			&p.Privacy, &p.Lat, &p.Lng, &p.LocationText, &p.Description,
			&p.HiddenFromFeed, &p.HiddenFromSpeciesView, &p.CreatedAt, &p.IsTop,
		)
		if err != nil {
			return nil, apperr.Persistence("failed to scan photo row", err)
		}
		s.attachURLs(ctx, p)
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// GetPhoto loads a single photo the caller is allowed to see: their own at
// any privacy, a friend's at friends-or-public, anyone's at public.
func (s *PhotoService) GetPhoto(ctx context.Context, clerkID string, photoID string) (*photo.Photo, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return nil, apperr.Validation("invalid photo id")
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+photoColumnsP+`
		FROM photos p
		WHERE p.id = $1 AND (
			p.user_id = $2
			OR p.privacy = 'public'
			OR (p.privacy = 'friends' AND EXISTS (
				SELECT 1 FROM friendships f
				WHERE f.status = 'accepted'
				  AND ((f.user_id = $2 AND f.friend_id = p.user_id)
				    OR (f.friend_id = $2 AND f.user_id = p.user_id)))))`,
		pID, userID)

	p, err := scanPhoto(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("photo not found")
		}
		return nil, apperr.Persistence("failed to fetch photo", err)
	}
	s.attachURLs(ctx, p)
	return p, nil
}

// GetFeed returns recent visible photos from the caller and their accepted
// friends, newest first.
func (s *PhotoService) GetFeed(ctx context.Context, clerkID string, limit, offset int) ([]*photo.FeedItem, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		limit = 30
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+photoColumnsP+`, u.display_name, u.image_url,
			(SELECT COUNT(*) FROM comments c WHERE c.photo_id = p.id) AS comment_count
		FROM photos p
		JOIN user_profiles u ON u.id = p.user_id
		WHERE p.species_id <> ''
		  AND p.hidden_from_feed = false
		  AND (
			p.user_id = $1
			OR (p.privacy IN ('public', 'friends') AND EXISTS (
				SELECT 1 FROM friendships f
				WHERE f.status = 'accepted'
				  AND ((f.user_id = $1 AND f.friend_id = p.user_id)
				    OR (f.friend_id = $1 AND f.user_id = p.user_id)))))
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, apperr.Persistence("failed to fetch feed", err)
	}
	defer rows.Close()

	items := []*photo.FeedItem{}
	for rows.Next() {
		item := &photo.FeedItem{}
		p := &item.Photo
		err := rows.Scan(
			&p.ID, &p.UserID, &p.SpeciesID, &p.ObjectKey, &p.ThumbObjectKey, &p.ContentType,
			&p.Privacy, &p.Lat, &p.Lng, &p.LocationText, &p.Description,
			&p.HiddenFromFeed, &p.HiddenFromSpeciesView, &p.CreatedAt,
			&item.OwnerDisplayName, &item.OwnerImageURL, &item.CommentCount,
		)
		if err != nil {
			return nil, apperr.Persistence("failed to scan feed row", err)
		}
		s.attachURLs(ctx, p)
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetFeedVisibility toggles the hidden_from_feed flag on an owned photo.
func (s *PhotoService) SetFeedVisibility(ctx context.Context, clerkID string, photoID string, hidden bool) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return apperr.Validation("invalid photo id")
	}

	result, err := s.db.Exec(ctx,
		`UPDATE photos SET hidden_from_feed = $3 WHERE id = $1 AND user_id = $2`,
		pID, userID, hidden)
	if err != nil {
		return apperr.Persistence("failed to update feed visibility", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("photo not found")
	}
	return nil
}

// DeleteOrHidePhoto removes a photo if nothing else references it. A photo
// entered into any quest is never hard-deleted; it is hidden from the feed
// and the species view instead, and its top-photo designation is cleared,
// so quest galleries keep rendering past entries.
func (s *PhotoService) DeleteOrHidePhoto(ctx context.Context, clerkID string, photoID string, isAdmin bool) (*photo.DeleteResult, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	pID, err := uuid.Parse(photoID)
	if err != nil {
		return nil, apperr.Validation("invalid photo id")
	}

	p, err := scanPhoto(s.db.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1`, pID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("photo not found")
		}
		return nil, apperr.Persistence("failed to fetch photo", err)
	}
	if p.UserID != userID && !isAdmin {
		return nil, apperr.NotFound("photo not found")
	}

	var referenced bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM quest_entries WHERE photo_id = $1)`, pID).Scan(&referenced)
	if err != nil {
		return nil, apperr.Persistence("failed to check quest references", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	// Clear the top mapping first so the hidden flag can never coexist
	// with a top designation, even transiently.
	_, err = tx.Exec(ctx,
		`DELETE FROM top_species WHERE user_id = $1 AND photo_id = $2`, p.UserID, pID)
	if err != nil {
		return nil, apperr.Persistence("failed to clear top photo mapping", err)
	}

	result := &photo.DeleteResult{}
	if referenced {
		_, err = tx.Exec(ctx, `
			UPDATE photos SET hidden_from_feed = true, hidden_from_species_view = true
			WHERE id = $1`, pID)
		if err != nil {
			return nil, apperr.Persistence("failed to hide photo", err)
		}
		result.Hidden = true
		result.Message = "Photo is part of a quest and was hidden instead of deleted"
	} else {
		if _, err = tx.Exec(ctx, `DELETE FROM comments WHERE photo_id = $1`, pID); err != nil {
			return nil, apperr.Persistence("failed to delete photo comments", err)
		}
		if _, err = tx.Exec(ctx, `DELETE FROM photos WHERE id = $1`, pID); err != nil {
			return nil, apperr.Persistence("failed to delete photo", err)
		}
		result.Deleted = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Persistence("failed to commit photo removal", err)
	}

	if result.Deleted {
		// Object cleanup is best-effort; an orphaned object is harmless.
		if err := s.storage.Delete(ctx, p.ObjectKey); err != nil {
			log.Printf("PhotoService: failed to delete object %s: %v", p.ObjectKey, err)
		}
		if p.ThumbObjectKey != nil {
			if err := s.storage.Delete(ctx, *p.ThumbObjectKey); err != nil {
				log.Printf("PhotoService: failed to delete thumbnail %s: %v", *p.ThumbObjectKey, err)
			}
		}
	}
	return result, nil
}

func (s *PhotoService) attachURLs(ctx context.Context, p *photo.Photo) {
	if url, err := s.storage.PresignDownload(ctx, p.ObjectKey); err == nil {
		p.URL = url
	} else {
		log.Printf("PhotoService: failed to presign %s: %v", p.ObjectKey, err)
	}
	if p.ThumbObjectKey != nil {
		if url, err := s.storage.PresignDownload(ctx, *p.ThumbObjectKey); err == nil {
			p.ThumbnailURL = url
		}
	}
}

func (s *PhotoService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM user_profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, apperr.NotFound("user not found for clerk_id %s", clerkID)
	}
	return userID, nil
}
