package leaderboard

import (
	"sort"

	"github.com/google/uuid"
)

type LeaderboardEntry struct {
	UserID             uuid.UUID `json:"user_id" db:"user_id"`
	DisplayName        string    `json:"display_name" db:"display_name"`
	ImageURL           *string   `json:"image_url" db:"image_url"`
	UniqueSpeciesCount int       `json:"unique_species_count"`
	TotalPhotosCount   int       `json:"total_photos_count"`
	Rank               int       `json:"rank"`
}

type Leaderboard struct {
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position"`
	TotalUsers   int                 `json:"total_users"`
}

// Profile is the slice of a user_profiles row the ranking needs.
type Profile struct {
	UserID      uuid.UUID
	DisplayName string
	ImageURL    *string
}

// PhotoRecord is the slice of a photos row the ranking needs.
type PhotoRecord struct {
	OwnerID        uuid.UUID
	SpeciesID      string
	HiddenFromFeed bool
}

// Compute builds the leaderboard from a snapshot of profiles and photos.
// Photos hidden from the feed do not score. Photos whose owner has no
// profile row are ignored.
//
// Ordering: unique species count descending, then total photos descending;
// remaining ties keep the profile input order (stable sort). Ranks are
// dense 1..N with no tie-sharing: equal scores still get strictly
// increasing ranks. Pure function, safe to re-run on the same snapshot.
func Compute(profiles []Profile, photos []PhotoRecord) []*LeaderboardEntry {
	index := make(map[uuid.UUID]int, len(profiles))
	entries := make([]*LeaderboardEntry, 0, len(profiles))
	species := make([]map[string]struct{}, 0, len(profiles))

	for _, p := range profiles {
		index[p.UserID] = len(entries)
		entries = append(entries, &LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			ImageURL:    p.ImageURL,
		})
		species = append(species, make(map[string]struct{}))
	}

	for _, ph := range photos {
		if ph.HiddenFromFeed {
			continue
		}
		i, ok := index[ph.OwnerID]
		if !ok {
			continue
		}
		species[i][ph.SpeciesID] = struct{}{}
		entries[i].TotalPhotosCount++
	}
	for i, set := range species {
		entries[i].UniqueSpeciesCount = len(set)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].UniqueSpeciesCount != entries[b].UniqueSpeciesCount {
			return entries[a].UniqueSpeciesCount > entries[b].UniqueSpeciesCount
		}
		return entries[a].TotalPhotosCount > entries[b].TotalPhotosCount
	})

	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries
}
