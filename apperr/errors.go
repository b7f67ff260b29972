// Package apperr defines the error taxonomy shared by the store, blob, identity
// and form packages, and maps errors to the messages shown to visitors.
package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrValidation           = errors.New("validation failed")
	ErrOperationFailed      = errors.New("operation failed")
	ErrUploadFailed         = errors.New("upload failed")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSubmitInFlight       = errors.New("submit already in progress")
)

// ValidationError carries per-field messages. Keys use dotted paths for
// nested fields, e.g. "links.code".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Message returns the string shown to the user for err.
func Message(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "Please fix the following: " + ve.Error()
	case errors.Is(err, ErrNotFound):
		return "Not found."
	case errors.Is(err, ErrConflict):
		return "That slug is already in use."
	case errors.Is(err, ErrUploadFailed):
		return "Image upload failed. Your changes were not saved."
	case errors.Is(err, ErrConfigurationMissing):
		return "Content is unavailable: the site is not fully configured."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrSubmitInFlight):
		return "A save is already in progress."
	default:
		return "Something went wrong. Please try again."
	}
}

// Status maps err to an HTTP status code for JSON responses.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUploadFailed), errors.Is(err, ErrOperationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
