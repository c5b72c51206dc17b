package notifications

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"reelcraft/internal/locator"
	"reelcraft/internal/logging"
	"reelcraft/internal/pipeline"
	"reelcraft/internal/services"
)

// Observer forwards pipeline outcomes to a Service. Started events and
// completions without a final render are ignored.
type Observer struct {
	service Service
	logger  *slog.Logger
}

// NewObserver adapts service to pipeline.Observer.
func NewObserver(service Service, logger *slog.Logger) *Observer {
	if service == nil {
		service = noopService{}
	}
	return &Observer{service: service, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Observe implements pipeline.Observer.
func (o *Observer) Observe(ctx context.Context, evt pipeline.Event) {
	var (
		event   Event
		payload Payload
	)
	switch {
	case evt.Kind == pipeline.EventCompleted && evt.Locator != "":
		event = EventRenderReady
		payload = Payload{"title": evt.Title, "file": finalFile(evt.Locator)}
	case evt.Kind == pipeline.EventFailed:
		event = EventStageFailed
		payload = Payload{"title": evt.Title, "stage": string(evt.Stage), "error": evt.Message}
	default:
		return
	}
	o.publish(context.WithoutCancel(ctx), event, payload, evt.JobID)
}

// GaveUpHook returns a callback for retry.WithGaveUp that reports mutations
// which exhausted their attempts.
func (o *Observer) GaveUpHook() func(key string, err error) {
	return func(key string, err error) {
		item := key
		if _, rest, ok := strings.Cut(key, ":"); ok {
			item = rest
		}
		o.publish(context.Background(), EventGalleryGaveUp, Payload{"item": item, "error": services.Message(err)}, "")
	}
}

func (o *Observer) publish(ctx context.Context, event Event, payload Payload, jobID string) {
	if err := o.service.Publish(ctx, event, payload); err != nil {
		attrs := []logging.Attr{
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
		}
		if jobID != "" {
			attrs = append(attrs, logging.String(logging.FieldJobID, jobID))
		}
		logging.WarnWithContext(o.logger, "notification delivery failed", "notification_failed", attrs...)
	}
}

// finalFile extracts the rendered file name from a final video locator.
func finalFile(loc string) string {
	if parsed, err := url.Parse(loc); err == nil {
		if file := parsed.Query().Get("file"); file != "" {
			return file
		}
	}
	return path.Base(locator.StripQuery(loc))
}

var _ pipeline.Observer = (*Observer)(nil)
