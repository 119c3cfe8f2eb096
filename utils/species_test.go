package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSpeciesCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Robin", "robin"},
		{"  Blue Jay ", "blue_jay"},
		{"great-horned-owl", "great_horned_owl"},
		{"CROW", "crow"},
		{"blue_jay", "blue_jay"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSpeciesCode(tt.in), "input %q", tt.in)
	}
}

func TestIsValidSpeciesCode(t *testing.T) {
	assert.True(t, IsValidSpeciesCode("robin"))
	assert.True(t, IsValidSpeciesCode("blue_jay"))
	assert.True(t, IsValidSpeciesCode("sparrow2"))

	assert.False(t, IsValidSpeciesCode(""))
	assert.False(t, IsValidSpeciesCode("x"))
	assert.False(t, IsValidSpeciesCode("_robin"))
	assert.False(t, IsValidSpeciesCode("robin_"))
	assert.False(t, IsValidSpeciesCode("Blue Jay"))
	assert.False(t, IsValidSpeciesCode("robin!"))
	assert.False(t, IsValidSpeciesCode(strings.Repeat("a", 65)))
}
