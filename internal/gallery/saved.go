package gallery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelcraft/internal/locator"
	"reelcraft/internal/services"
	"reelcraft/internal/transport"
	"reelcraft/internal/videoapi"
)

// AuthDoer issues bearer-authenticated requests against the auth service.
// session.Manager satisfies it and fails without a request when signed out.
type AuthDoer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Envelope, error)
}

// SavedAsset is a saved-video record.
type SavedAsset struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Path        string    `json:"path"`
	Locator     string    `json:"locator"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	DurationSec *int      `json:"duration_sec,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveRequest is the body of POST /gallery.
type SaveRequest struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title"`
	Path        string         `json:"path"`
	Thumbnail   string         `json:"thumbnail,omitempty"`
	DurationSec *int           `json:"duration_sec,omitempty"`
	JobID       string         `json:"job_id,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

type savedWire struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Path        string  `json:"path"`
	Thumbnail   *string `json:"thumbnail"`
	DurationSec *int    `json:"duration_sec"`
	CreatedAt   string  `json:"created_at"`
}

// Saved manages the saved-video records.
type Saved struct {
	auth   AuthDoer
	assets *locator.Resolver
}

// NewSaved constructs a Saved client.
func NewSaved(auth AuthDoer, assets *locator.Resolver) *Saved {
	if assets == nil {
		assets = locator.New("")
	}
	return &Saved{auth: auth, assets: assets}
}

// List returns the user's saved videos.
func (s *Saved) List(ctx context.Context) ([]SavedAsset, error) {
	env, err := s.auth.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/gallery"})
	if err != nil {
		return nil, services.Wrap(markerFor(err), "saved", "list", "Could not load saved videos", err)
	}
	var out struct {
		Assets []savedWire `json:"assets"`
	}
	if err := env.Decode(&out); err != nil {
		return nil, fmt.Errorf("saved gallery response: %w", err)
	}
	assets := make([]SavedAsset, 0, len(out.Assets))
	for _, w := range out.Assets {
		assets = append(assets, s.fromWire(w))
	}
	return assets, nil
}

// Add records a saved video.
func (s *Saved) Add(ctx context.Context, req SaveRequest) (SavedAsset, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Path = strings.TrimSpace(req.Path)
	if req.Title == "" || req.Path == "" {
		return SavedAsset{}, services.Wrap(services.ErrValidation, "saved", "add", "Title and path are required", nil)
	}
	env, err := s.auth.Do(ctx, transport.Request{Method: http.MethodPost, Path: "/gallery", JSON: req})
	if err != nil {
		return SavedAsset{}, services.Wrap(markerFor(err), "saved", "add", "Could not save video", err)
	}
	var out struct {
		Asset savedWire `json:"asset"`
	}
	if err := env.Decode(&out); err != nil {
		return SavedAsset{}, fmt.Errorf("saved gallery response: %w", err)
	}
	return s.fromWire(out.Asset), nil
}

// Delete removes a saved video record.
func (s *Saved) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrValidation, "saved", "delete", "An id is required", nil)
	}
	if _, err := s.auth.Do(ctx, transport.Request{Method: http.MethodDelete, Path: "/gallery/" + url.PathEscape(id)}); err != nil {
		return services.Wrap(markerFor(err), "saved", "delete", "Could not delete saved video", err)
	}
	return nil
}

func (s *Saved) fromWire(w savedWire) SavedAsset {
	out := SavedAsset{
		ID:          w.ID,
		Title:       w.Title,
		Path:        w.Path,
		Locator:     s.assets.Resolve(w.Path),
		DurationSec: w.DurationSec,
		CreatedAt:   videoapi.ParseTimestamp(w.CreatedAt),
	}
	if w.Thumbnail != nil {
		out.Thumbnail = s.assets.Resolve(*w.Thumbnail)
	}
	return out
}
