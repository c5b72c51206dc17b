package videoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelcraft/internal/transport"
)

// Doer is the subset of transport.Client used here.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Envelope, error)
	Probe(ctx context.Context, path string, query url.Values) error
	BaseURL() string
}

// Client issues generation service requests.
type Client struct {
	http Doer
}

// New wraps a transport client bound to the video API base URL.
func New(doer Doer) *Client {
	return &Client{http: doer}
}

// BaseURL returns the video API base URL.
func (c *Client) BaseURL() string {
	return c.http.BaseURL()
}

// ContentRequest is the body of POST /content.
type ContentRequest struct {
	Title       string `json:"title"`
	VideoMode   bool   `json:"video_mode"`
	ChannelType string `json:"channel_type,omitempty"`
}

// ScriptsRequest is the body of POST /scripts.
type ScriptsRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	VideoMode   bool   `json:"video_mode"`
	ChannelType string `json:"channel_type,omitempty"`
}

// VoicesRequest is the body of POST /voices.
type VoicesRequest struct {
	Sentences []string `json:"sentences"`
	Voice     string   `json:"voice,omitempty"`
	OwnVoice  bool     `json:"own_voice"`
	VideoMode bool     `json:"video_mode"`
}

type videoModeBody struct {
	VideoMode bool `json:"video_mode"`
}

// SetVideoMode syncs the service-wide orientation flag.
func (c *Client) SetVideoMode(ctx context.Context, tall bool) error {
	_, err := c.post(ctx, "/set-video-mode", videoModeBody{VideoMode: tall})
	return err
}

// GenerateContent runs the content stage.
func (c *Client) GenerateContent(ctx context.Context, req ContentRequest) (string, error) {
	env, err := c.post(ctx, "/content", req)
	if err != nil {
		return "", err
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := env.Decode(&out); err != nil {
		return "", fmt.Errorf("content response: %w", err)
	}
	return out.Content, nil
}

// GenerateScripts runs the scripts stage.
func (c *Client) GenerateScripts(ctx context.Context, req ScriptsRequest) (Scripts, error) {
	env, err := c.post(ctx, "/scripts", req)
	if err != nil {
		return Scripts{}, err
	}
	var out Scripts
	if err := env.Decode(&out); err != nil {
		return Scripts{}, err
	}
	return out, nil
}

// GenerateImages runs the images stage and returns relative image paths.
func (c *Client) GenerateImages(ctx context.Context, prompts []string, tall bool) ([]string, error) {
	body := struct {
		Prompts   []string `json:"prompts"`
		VideoMode bool     `json:"video_mode"`
	}{Prompts: prompts, VideoMode: tall}
	env, err := c.post(ctx, "/images", body)
	if err != nil {
		return nil, err
	}
	var out struct {
		ImagePaths []string `json:"image_paths"`
	}
	if err := env.Decode(&out); err != nil {
		return nil, fmt.Errorf("images response: %w", err)
	}
	return out.ImagePaths, nil
}

// ModifyImage regenerates one image in place on the server.
func (c *Client) ModifyImage(ctx context.Context, relPath, prompt string, tall bool) error {
	body := struct {
		ImagePath string `json:"image_path"`
		Prompt    string `json:"prompt"`
		VideoMode bool   `json:"video_mode"`
	}{ImagePath: relPath, Prompt: prompt, VideoMode: tall}
	_, err := c.post(ctx, "/modify-image", body)
	return err
}

// UploadCustomVoice sends a voice sample used instead of a named voice.
func (c *Client) UploadCustomVoice(ctx context.Context, upload *Upload) (string, error) {
	env, err := c.upload(ctx, "/custom-voice", "voice_file", upload)
	if err != nil {
		return "", err
	}
	raw, ok := env.Field("voice_path")
	if !ok {
		return "", nil
	}
	var voicePath string
	if err := json.Unmarshal(raw, &voicePath); err != nil {
		return "", fmt.Errorf("custom voice response: %w", err)
	}
	return voicePath, nil
}

// GenerateVoices runs the voice stage.
func (c *Client) GenerateVoices(ctx context.Context, req VoicesRequest) (VoicePaths, error) {
	env, err := c.post(ctx, "/voices", req)
	if err != nil {
		return VoicePaths{}, err
	}
	return decodeVoicePaths(env.Raw)
}

// Edit assembles images and voices into a video.
func (c *Client) Edit(ctx context.Context, tall bool) error {
	_, err := c.post(ctx, "/edit", videoModeBody{VideoMode: tall})
	return err
}

// UploadMusic uploads a background track and returns its server path.
func (c *Client) UploadMusic(ctx context.Context, upload *Upload) (string, error) {
	env, err := c.upload(ctx, "/upload-music", "music_file", upload)
	if err != nil {
		return "", err
	}
	var out struct {
		MusicPath string `json:"music_path"`
	}
	if err := env.Decode(&out); err != nil {
		return "", fmt.Errorf("upload music response: %w", err)
	}
	if strings.TrimSpace(out.MusicPath) == "" {
		return "", &transport.Error{Kind: transport.KindApplication, Message: "music upload returned no path", Method: http.MethodPost, Path: "/upload-music"}
	}
	return out.MusicPath, nil
}

// AddMusic mixes an uploaded track into the assembled video.
func (c *Client) AddMusic(ctx context.Context, musicPath string, tall bool) error {
	body := struct {
		MusicPath string `json:"music_path"`
		VideoMode bool   `json:"video_mode"`
	}{MusicPath: musicPath, VideoMode: tall}
	_, err := c.post(ctx, "/bgmusic", body)
	return err
}

// AddCaptions burns captions into the video.
func (c *Client) AddCaptions(ctx context.Context, tall bool) error {
	_, err := c.post(ctx, "/captions", videoModeBody{VideoMode: tall})
	return err
}

// FinalVideoURL returns the fetch locator for a rendered file.
func (c *Client) FinalVideoURL(file string, token int64) string {
	return c.http.BaseURL() + "/video?" + finalQuery(file, token).Encode()
}

// ProbeFinalVideo validates that the rendered file is available.
func (c *Client) ProbeFinalVideo(ctx context.Context, file string, token int64) error {
	return c.http.Probe(ctx, "/video", finalQuery(file, token))
}

func finalQuery(file string, token int64) url.Values {
	return url.Values{"file": {file}, "t": {strconv.FormatInt(token, 10)}}
}

// Voices lists the named voices the service offers.
type Voices struct {
	Available []string `json:"available_voices"`
	Default   string   `json:"default_voice"`
}

// ListVoices fetches the voice catalogue.
func (c *Client) ListVoices(ctx context.Context) (Voices, error) {
	env, err := c.http.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/voices/list"})
	if err != nil {
		return Voices{}, err
	}
	var out Voices
	if err := env.Decode(&out); err != nil {
		return Voices{}, fmt.Errorf("voices list response: %w", err)
	}
	return out, nil
}

// JobSummary is one server-side job record.
type JobSummary struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	VideoMode  bool       `json:"video_mode"`
}

// UnmarshalJSON tolerates timestamps without a zone offset.
func (j *JobSummary) UnmarshalJSON(data []byte) error {
	var w struct {
		ID         string  `json:"id"`
		Title      string  `json:"title"`
		Status     string  `json:"status"`
		StartedAt  string  `json:"started_at"`
		FinishedAt *string `json:"finished_at"`
		VideoMode  bool    `json:"video_mode"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*j = JobSummary{ID: w.ID, Title: w.Title, Status: w.Status, VideoMode: w.VideoMode}
	j.StartedAt = ParseTimestamp(w.StartedAt)
	if w.FinishedAt != nil {
		if ts := ParseTimestamp(*w.FinishedAt); !ts.IsZero() {
			j.FinishedAt = &ts
		}
	}
	return nil
}

// UserJobs lists the most recent server-side jobs for a user.
func (c *Client) UserJobs(ctx context.Context, userID string, limit int) ([]JobSummary, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	env, err := c.http.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/user/" + url.PathEscape(userID) + "/jobs",
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Jobs []JobSummary `json:"jobs"`
	}
	if err := env.Decode(&out); err != nil {
		return nil, fmt.Errorf("jobs response: %w", err)
	}
	return out.Jobs, nil
}

// JobManifest fetches the raw manifest of one job.
func (c *Client) JobManifest(ctx context.Context, jobID string) (json.RawMessage, error) {
	env, err := c.http.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/jobs/" + url.PathEscape(jobID)})
	if err != nil {
		return nil, err
	}
	raw, ok := env.Field("manifest")
	if !ok {
		return nil, fmt.Errorf("job %s: response has no manifest", jobID)
	}
	return raw, nil
}

// UploadAvatar replaces the user's profile picture and returns its locator.
func (c *Client) UploadAvatar(ctx context.Context, userID string, upload *Upload) (string, error) {
	env, err := c.upload(ctx, "/user/"+url.PathEscape(userID)+"/avatar", "file", upload)
	if err != nil {
		return "", err
	}
	var out struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := env.Decode(&out); err != nil {
		return "", fmt.Errorf("avatar response: %w", err)
	}
	return out.AvatarURL, nil
}

// ParseTimestamp accepts RFC 3339 and the zone-less ISO form the service
// emits. Unparseable input yields the zero time.
func ParseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func (c *Client) post(ctx context.Context, path string, body any) (*transport.Envelope, error) {
	return c.http.Do(ctx, transport.Request{Method: http.MethodPost, Path: path, JSON: body})
}

func (c *Client) upload(ctx context.Context, path, field string, upload *Upload) (*transport.Envelope, error) {
	if upload == nil || upload.Open == nil {
		return nil, fmt.Errorf("%s: no file supplied", path)
	}
	rc, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", path, upload.Name, err)
	}
	defer rc.Close()
	form := transport.NewForm().File(field, upload.Name, rc)
	return c.http.Do(ctx, transport.Request{Method: http.MethodPost, Path: path, Form: form})
}
