package utils

import "strings"

// Species codes are short snake_case identifiers ("robin", "blue_jay",
// "great_horned_owl") chosen by the client's species picker.
const maxSpeciesCodeLen = 64

// NormalizeSpeciesCode lowercases and trims a species code and collapses
// spaces and dashes to underscores.
func NormalizeSpeciesCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "_")
	code = strings.ReplaceAll(code, "-", "_")
	return code
}

// IsValidSpeciesCode reports whether a normalized code is usable as a
// species tag.
func IsValidSpeciesCode(code string) bool {
	if len(code) < 2 || len(code) > maxSpeciesCodeLen {
		return false
	}
	for i, c := range code {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' && i > 0 && i < len(code)-1:
		default:
			return false
		}
	}
	return true
}
