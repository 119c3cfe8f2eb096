package leaderboard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(name string) Profile {
	return Profile{UserID: uuid.New(), DisplayName: name}
}

func photosFor(owner uuid.UUID, species ...string) []PhotoRecord {
	records := make([]PhotoRecord, 0, len(species))
	for _, s := range species {
		records = append(records, PhotoRecord{OwnerID: owner, SpeciesID: s})
	}
	return records
}

func TestComputeOrdersBySpeciesThenPhotos(t *testing.T) {
	ann := profile("ann")
	bo := profile("bo")
	cam := profile("cam")

	// ann: 2 species / 2 photos, bo: 2 species / 3 photos,
	// cam: 3 species / 3 photos.
	photos := photosFor(ann.UserID, "robin", "blue_jay")
	photos = append(photos, photosFor(bo.UserID, "robin", "robin", "crow")...)
	photos = append(photos, photosFor(cam.UserID, "robin", "crow", "heron")...)

	entries := Compute([]Profile{ann, bo, cam}, photos)
	require.Len(t, entries, 3)

	assert.Equal(t, cam.UserID, entries[0].UserID)
	assert.Equal(t, bo.UserID, entries[1].UserID)
	assert.Equal(t, ann.UserID, entries[2].UserID)

	assert.Equal(t, 3, entries[0].UniqueSpeciesCount)
	assert.Equal(t, 3, entries[1].TotalPhotosCount)
}

func TestComputeTiesKeepInputOrder(t *testing.T) {
	ann := profile("ann")
	bo := profile("bo")

	// Identical scores both ways: 1 species, 1 photo each. Ann was
	// fetched first, so ann stays first.
	photos := append(photosFor(ann.UserID, "robin"), photosFor(bo.UserID, "crow")...)

	entries := Compute([]Profile{ann, bo}, photos)
	require.Len(t, entries, 2)
	assert.Equal(t, ann.UserID, entries[0].UserID)
	assert.Equal(t, bo.UserID, entries[1].UserID)

	// Same snapshot, same result.
	again := Compute([]Profile{ann, bo}, photos)
	assert.Equal(t, entries[0].UserID, again[0].UserID)
	assert.Equal(t, entries[1].UserID, again[1].UserID)
}

func TestComputeRanksAreDense(t *testing.T) {
	profiles := []Profile{profile("a"), profile("b"), profile("c"), profile("d")}

	// b and c tie on everything; ranks must still be 1,2,3,4.
	photos := photosFor(profiles[0].UserID, "robin", "crow")
	photos = append(photos, photosFor(profiles[1].UserID, "robin")...)
	photos = append(photos, photosFor(profiles[2].UserID, "crow")...)

	entries := Compute(profiles, photos)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestComputeSkipsHiddenAndUnknownOwners(t *testing.T) {
	ann := profile("ann")

	photos := []PhotoRecord{
		{OwnerID: ann.UserID, SpeciesID: "robin"},
		{OwnerID: ann.UserID, SpeciesID: "crow", HiddenFromFeed: true},
		{OwnerID: uuid.New(), SpeciesID: "heron"},
	}

	entries := Compute([]Profile{ann}, photos)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].UniqueSpeciesCount)
	assert.Equal(t, 1, entries[0].TotalPhotosCount)
}

func TestComputeDuplicateSpeciesCountOnce(t *testing.T) {
	ann := profile("ann")

	entries := Compute([]Profile{ann}, photosFor(ann.UserID, "robin", "robin", "robin"))
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].UniqueSpeciesCount)
	assert.Equal(t, 3, entries[0].TotalPhotosCount)
	assert.Equal(t, 1, entries[0].Rank)
}

func TestComputeEmptyInput(t *testing.T) {
	assert.Empty(t, Compute(nil, nil))

	// Profiles with no photos still appear, at zero.
	ann := profile("ann")
	entries := Compute([]Profile{ann}, nil)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].UniqueSpeciesCount)
	assert.Equal(t, 1, entries[0].Rank)
}
