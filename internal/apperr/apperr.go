// Package apperr is the error taxonomy shared by services and handlers.
// Validation and duplicate-action errors are raised before any write is
// attempted; persistence errors carry the datastore message verbatim and
// are never retried.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type DuplicateActionError struct {
	Msg string
}

func (e *DuplicateActionError) Error() string { return e.Msg }

func Duplicate(format string, args ...any) error {
	return &DuplicateActionError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NotFound(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

type PersistenceError struct {
	Msg string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(msg string, err error) error {
	return &PersistenceError{Msg: msg, Err: err}
}

// StatusCode maps a taxonomy error to the HTTP status the handlers use.
func StatusCode(err error) int {
	var ve *ValidationError
	var de *DuplicateActionError
	var ne *NotFoundError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return http.StatusConflict
	case errors.As(err, &ne):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// MsgHiddenTopPhoto is the domain error raised when a hidden photo would
// become (or remain) the top photo for a species.
const MsgHiddenTopPhoto = "A hidden photo cannot be the top photo for a species"

// translations rewrites known domain error strings to friendlier display
// text. Unmatched messages pass through unchanged.
var translations = map[string]string{
	MsgHiddenTopPhoto: "Set a different top photo before removing the photo",
}

func Translate(msg string) string {
	if friendly, ok := translations[msg]; ok {
		return friendly
	}
	return msg
}
