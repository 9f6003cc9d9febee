package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every error leaving a core package wraps exactly one of these so
// callers can classify it with errors.Is.
var (
	ErrAuth        = errors.New("unauthorized")
	ErrValidation  = errors.New("validation error")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited") // retry later
	ErrStore       = errors.New("store error")
)

// Wrap tags err with kind and an "op: message" detail. A nil kind is treated
// as ErrStore.
func Wrap(kind error, op, message string, err error) error {
	if kind == nil {
		kind = ErrStore
	}
	detail := buildDetail(op, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", kind, detail, err)
	}
	return fmt.Errorf("%w: %s", kind, detail)
}

func Validation(op, message string) error { return Wrap(ErrValidation, op, message, nil) }
func Forbidden(op, message string) error  { return Wrap(ErrForbidden, op, message, nil) }
func NotFound(op, message string) error   { return Wrap(ErrNotFound, op, message, nil) }
func Conflict(op, message string) error   { return Wrap(ErrConflict, op, message, nil) }
func Auth(op, message string) error       { return Wrap(ErrAuth, op, message, nil) }
func RateLimited(op, message string) error {
	return Wrap(ErrRateLimited, op, message, nil)
}

// Store wraps a backend failure.
func Store(op string, err error) error {
	return Wrap(ErrStore, op, "", err)
}

// HTTPStatus maps an error to the response code the API returns for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus is the inverse of HTTPStatus, used by the API client.
func FromStatus(status int, op, message string) error {
	var kind error
	switch status {
	case http.StatusUnauthorized:
		kind = ErrAuth
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		kind = ErrValidation
	case http.StatusForbidden:
		kind = ErrForbidden
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusConflict:
		kind = ErrConflict
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = ErrStore
	}
	return Wrap(kind, op, message, nil)
}

// Message returns the text after the kind prefix, suitable for a response body.
// Internal errors collapse to a generic message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Internal Server Error"
	}
	msg := err.Error()
	for _, kind := range []error{ErrAuth, ErrValidation, ErrForbidden, ErrNotFound, ErrConflict, ErrRateLimited} {
		if rest, ok := strings.CutPrefix(msg, kind.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

func buildDetail(op, message string) string {
	parts := make([]string, 0, 2)
	if op = strings.TrimSpace(op); op != "" {
		parts = append(parts, op)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
