package videoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"reelcraft/internal/transport"
)

// GalleryItem is one rendered file in a user's gallery.
type GalleryItem struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Modified  string `json:"modified"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// Renamed is the server's answer to a rename.
type Renamed struct {
	Old string `json:"old"`
	New string `json:"new"`
}

func galleryPath(userID string, parts ...string) string {
	p := "/user/" + url.PathEscape(userID) + "/gallery"
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// ListGallery returns the user's rendered files, newest name first.
func (c *Client) ListGallery(ctx context.Context, userID string) ([]GalleryItem, error) {
	env, err := c.http.Do(ctx, transport.Request{Method: http.MethodGet, Path: galleryPath(userID)})
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []GalleryItem `json:"items"`
	}
	if err := env.Decode(&out); err != nil {
		return nil, fmt.Errorf("gallery response: %w", err)
	}
	return out.Items, nil
}

// RenameGalleryItem renames name to newBase. The service sanitizes newBase
// and keeps the original extension.
func (c *Client) RenameGalleryItem(ctx context.Context, userID, name, newBase string) (Renamed, error) {
	body := struct {
		NewName string `json:"new_name"`
	}{NewName: newBase}
	env, err := c.http.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   galleryPath(userID, "rename", name),
		JSON:   body,
	})
	if err != nil {
		return Renamed{}, err
	}
	var out Renamed
	if err := env.Decode(&out); err != nil {
		return Renamed{}, fmt.Errorf("rename response: %w", err)
	}
	return out, nil
}

// DeleteGalleryItem removes a rendered file and its thumbnail.
func (c *Client) DeleteGalleryItem(ctx context.Context, userID, name string) error {
	_, err := c.http.Do(ctx, transport.Request{Method: http.MethodDelete, Path: galleryPath(userID, "file", name)})
	return err
}
