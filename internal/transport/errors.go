package transport

import (
	"errors"
	"fmt"
	"strings"

	"reelcraft/internal/services"
)

// Kind classifies a failed request.
type Kind string

const (
	// KindTransport covers unreachable servers and non-2xx responses without a
	// readable error body.
	KindTransport Kind = "transport"
	// KindApplication covers well-formed responses that signal failure.
	KindApplication Kind = "application"
)

// Error is the uniform failure returned by Client.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Method     string
	Path       string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Method != "" || e.Path != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(e.Method + " " + e.Path))
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps the failure kind onto the shared service markers so callers can
// classify with errors.Is(err, services.ErrTransport).
func (e *Error) Is(target error) bool {
	switch target {
	case services.ErrTransport:
		return e.Kind == KindTransport
	case services.ErrApplication:
		return e.Kind == KindApplication
	case services.ErrUnauthenticated:
		return e.StatusCode == 401
	case services.ErrNotFound:
		return e.StatusCode == 404
	}
	return false
}

// UserMessage returns the server supplied text, or the synthesized fallback.
func (e *Error) UserMessage() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Retryable reports whether repeating the identical request may succeed.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.Kind == KindTransport {
		return e.StatusCode == 0 || e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
	}
	return false
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
