package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelcraft/internal/config"
)

const userAgent = "reelcraft/0.1.0"

// Event identifies a notification category.
type Event string

const (
	EventRenderReady   Event = "render_ready"
	EventStageFailed   Event = "stage_failed"
	EventGalleryGaveUp Event = "gallery_gave_up"
	EventTest          Event = "test"
)

// Payload carries the event fields used to render a message.
type Payload map[string]any

// Service defines the notification surface exposed to other components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRenderReady:   cfg.Notifications.RenderReady,
			EventStageFailed:   cfg.Notifications.StageFailures,
			EventGalleryGaveUp: cfg.Notifications.Gallery,
			EventTest:          true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRenderReady:
		title := payloadString(payload, "title")
		body := fmt.Sprintf("🎬 Video ready: %s", title)
		if file := payloadString(payload, "file"); file != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, file)
		}
		return message{
			title:    "Reelcraft - Render Ready",
			body:     body,
			tags:     []string{"reelcraft", "render", "completed"},
			priority: "high",
		}, true
	case EventStageFailed:
		var b strings.Builder
		b.WriteString("❌ ")
		if stage := payloadString(payload, "stage"); stage != "" {
			b.WriteString(stage)
			b.WriteString(" failed")
		} else {
			b.WriteString("Stage failed")
		}
		if title := payloadString(payload, "title"); title != "" {
			b.WriteString(" for ")
			b.WriteString(title)
		}
		b.WriteString(": ")
		if errText := payloadString(payload, "error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Reelcraft - Stage Failed",
			body:     b.String(),
			tags:     []string{"reelcraft", "error", "alert"},
			priority: "high",
		}, true
	case EventGalleryGaveUp:
		body := fmt.Sprintf("Gallery change reverted: %s", payloadString(payload, "item"))
		if errText := payloadString(payload, "error"); errText != "" {
			body = fmt.Sprintf("%s\n%s", body, errText)
		}
		return message{
			title: "Reelcraft - Gallery",
			body:  body,
			tags:  []string{"reelcraft", "gallery", "rollback"},
		}, true
	case EventTest:
		return message{
			title:    "Reelcraft - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"reelcraft", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
