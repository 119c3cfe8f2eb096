// Package dex holds the per-species collection view: which photos count
// toward a species and which single photo represents it.
package dex

import (
	"time"

	"birdDexAPI/internal/apperr"

	"github.com/google/uuid"
)

// TopSpeciesEntry maps (user, species) to its designated top photo.
// This mapping is the single authority; the legacy per-photo is_top flag
// is only ever derived from it.
type TopSpeciesEntry struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	SpeciesID string    `json:"species_id" db:"species_id"`
	PhotoID   uuid.UUID `json:"photo_id" db:"photo_id"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DexEntry is one cell of the collection grid.
type DexEntry struct {
	SpeciesID         string     `json:"species_id"`
	PhotoCount        int        `json:"photo_count"`
	TopPhotoID        *uuid.UUID `json:"top_photo_id,omitempty"`
	TopPhotoURL       string     `json:"top_photo_url,omitempty"`
	TopPhotoThumbURL  string     `json:"top_photo_thumbnail_url,omitempty"`
	FirstCollectedAt  time.Time  `json:"first_collected_at"`
	LatestCollectedAt time.Time  `json:"latest_collected_at"`
}

type SetTopPhotoRequest struct {
	SpeciesID string `json:"speciesId"`
	PhotoID   string `json:"photoId"`
}

// CheckTopPhotoCandidate guards the invariant that a photo hidden from the
// species view can never be the top photo. The datastore enforces the same
// rule; checking here keeps the message a domain error instead of a
// constraint violation.
func CheckTopPhotoCandidate(hiddenFromSpeciesView bool, speciesID, photoSpeciesID string) error {
	if hiddenFromSpeciesView {
		return apperr.Validation("%s", apperr.MsgHiddenTopPhoto)
	}
	if speciesID != photoSpeciesID {
		return apperr.Validation("photo is not tagged with species %q", speciesID)
	}
	return nil
}
