package dex

import (
	"testing"

	"birdDexAPI/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTopPhotoCandidate(t *testing.T) {
	t.Run("visible matching photo is allowed", func(t *testing.T) {
		assert.NoError(t, CheckTopPhotoCandidate(false, "robin", "robin"))
	})

	t.Run("hidden photo is rejected with the domain message", func(t *testing.T) {
		err := CheckTopPhotoCandidate(true, "robin", "robin")
		require.Error(t, err)
		assert.Equal(t, apperr.MsgHiddenTopPhoto, err.Error())

		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("species mismatch is rejected", func(t *testing.T) {
		err := CheckTopPhotoCandidate(false, "robin", "crow")
		require.Error(t, err)
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("hidden wins over mismatch", func(t *testing.T) {
		// Both violations at once: report the invariant, not the mismatch.
		err := CheckTopPhotoCandidate(true, "robin", "crow")
		require.Error(t, err)
		assert.Equal(t, apperr.MsgHiddenTopPhoto, err.Error())
	})
}

func TestHiddenTopPhotoMessageTranslates(t *testing.T) {
	err := CheckTopPhotoCandidate(true, "robin", "robin")
	require.Error(t, err)
	assert.Equal(t,
		"Set a different top photo before removing the photo",
		apperr.Translate(err.Error()))
}
