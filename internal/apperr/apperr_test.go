package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"duplicate", Duplicate("already voted"), http.StatusConflict},
		{"not found", NotFound("no such photo"), http.StatusNotFound},
		{"persistence", Persistence("insert failed", errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("anything"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestStatusCodeSeesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("while hiding photo: %w", Validation("%s", MsgHiddenTopPhoto))
	assert.Equal(t, http.StatusBadRequest, StatusCode(wrapped))
}

func TestPersistenceUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("query failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "query failed")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestTranslate(t *testing.T) {
	// The hidden-top-photo message is rewritten verbatim for display.
	assert.Equal(t,
		"Set a different top photo before removing the photo",
		Translate(MsgHiddenTopPhoto))

	// Everything else passes through untouched.
	assert.Equal(t, "some other error", Translate("some other error"))
	assert.Equal(t, "", Translate(""))
}
