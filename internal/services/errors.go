package services

import (
	"errors"
	"strings"
)

var (
	ErrTransport       = errors.New("transport failure")
	ErrApplication     = errors.New("application error")
	ErrPrecondition    = errors.New("precondition failed")
	ErrExhausted       = errors.New("retries exhausted")
	ErrUnauthenticated = errors.New("not signed in")
	ErrBusy            = errors.New("another task is in progress")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
)

// UserMessenger is implemented by errors that carry a short, user-facing
// description separate from their diagnostic text.
type UserMessenger interface {
	UserMessage() string
}

type wrappedError struct {
	marker  error
	detail  string
	message string
	err     error
}

func (e *wrappedError) Error() string {
	if e.err != nil {
		return e.marker.Error() + ": " + e.detail + ": " + e.err.Error()
	}
	return e.marker.Error() + ": " + e.detail
}

func (e *wrappedError) Unwrap() []error {
	if e.err == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.err}
}

func (e *wrappedError) UserMessage() string {
	var inner UserMessenger
	if e.err != nil && errors.As(e.err, &inner) {
		if msg := inner.UserMessage(); msg != "" {
			return msg
		}
	}
	if e.message != "" {
		return e.message
	}
	if e.err != nil {
		return e.err.Error()
	}
	return e.marker.Error()
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrApplication
	}
	return &wrappedError{
		marker:  marker,
		detail:  buildDetail(stage, operation, message),
		message: strings.TrimSpace(message),
		err:     err,
	}
}

// Message returns the text that should be surfaced to the user for err. Server
// supplied messages win over local descriptions.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessenger
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// IsRetryable reports whether a failure may succeed when repeated unchanged.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration), errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrBusy):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
