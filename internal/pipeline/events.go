package pipeline

import (
	"context"
	"time"
)

// EventKind classifies a pipeline event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event describes one stage lifecycle change.
type Event struct {
	JobID   string
	Title   string
	Stage   Stage
	Kind    EventKind
	Step    Step
	Message string
	// Locator is the final render location for completed final-fetch stages.
	Locator string
	Err     error
	At      time.Time
}

// Observer receives pipeline events. Observe is called synchronously from
// the transition goroutine and must not call back into the Machine.
type Observer interface {
	Observe(ctx context.Context, evt Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, evt Event)

func (f ObserverFunc) Observe(ctx context.Context, evt Event) {
	f(ctx, evt)
}
