package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"reelcraft/internal/videoapi"
)

// fakeAPI records calls and returns canned results. Hooks override the
// default success responses.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	content     func(context.Context, videoapi.ContentRequest) (string, error)
	scripts     func(context.Context, videoapi.ScriptsRequest) (videoapi.Scripts, error)
	images      func(context.Context, []string, bool) ([]string, error)
	modify      func(context.Context, string, string, bool) error
	voices      func(context.Context, videoapi.VoicesRequest) (videoapi.VoicePaths, error)
	probe       func(context.Context, string, int64) error
	setMode     func(context.Context, bool) error
	lastVoices  videoapi.VoicesRequest
	lastProbe   string
	lastModify  string
	uploadNames []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) SetVideoMode(ctx context.Context, tall bool) error {
	f.record("set-video-mode")
	if f.setMode != nil {
		return f.setMode(ctx, tall)
	}
	return nil
}

func (f *fakeAPI) GenerateContent(ctx context.Context, req videoapi.ContentRequest) (string, error) {
	f.record("content")
	if f.content != nil {
		return f.content(ctx, req)
	}
	return "Content about " + req.Title, nil
}

func (f *fakeAPI) GenerateScripts(ctx context.Context, req videoapi.ScriptsRequest) (videoapi.Scripts, error) {
	f.record("scripts")
	if f.scripts != nil {
		return f.scripts(ctx, req)
	}
	return videoapi.Scripts{
		Script:       "Full script",
		VoiceScripts: []string{"line one", "line two"},
		Prompts:      videoapi.PromptSet{Flat: []string{"a whale", "a reef"}},
	}, nil
}

func (f *fakeAPI) GenerateImages(ctx context.Context, prompts []string, tall bool) ([]string, error) {
	f.record("images")
	if f.images != nil {
		return f.images(ctx, prompts, tall)
	}
	out := make([]string, len(prompts))
	for i := range prompts {
		out[i] = "outputs/images/img_" + strconv.Itoa(i) + ".png"
	}
	return out, nil
}

func (f *fakeAPI) ModifyImage(ctx context.Context, relPath, prompt string, tall bool) error {
	f.record("modify-image")
	f.mu.Lock()
	f.lastModify = relPath
	f.mu.Unlock()
	if f.modify != nil {
		return f.modify(ctx, relPath, prompt, tall)
	}
	return nil
}

func (f *fakeAPI) UploadCustomVoice(_ context.Context, upload *videoapi.Upload) (string, error) {
	f.record("custom-voice")
	f.mu.Lock()
	f.uploadNames = append(f.uploadNames, upload.Name)
	f.mu.Unlock()
	return "uploads/" + upload.Name, nil
}

func (f *fakeAPI) GenerateVoices(ctx context.Context, req videoapi.VoicesRequest) (videoapi.VoicePaths, error) {
	f.record("voices")
	f.mu.Lock()
	f.lastVoices = req
	f.mu.Unlock()
	if f.voices != nil {
		return f.voices(ctx, req)
	}
	return videoapi.VoicesFromPrefix("outputs/voices"), nil
}

func (f *fakeAPI) Edit(context.Context, bool) error {
	f.record("edit")
	return nil
}

func (f *fakeAPI) UploadMusic(_ context.Context, upload *videoapi.Upload) (string, error) {
	f.record("upload-music")
	f.mu.Lock()
	f.uploadNames = append(f.uploadNames, upload.Name)
	f.mu.Unlock()
	return "uploads/" + upload.Name, nil
}

func (f *fakeAPI) AddMusic(context.Context, string, bool) error {
	f.record("bgmusic")
	return nil
}

func (f *fakeAPI) AddCaptions(context.Context, bool) error {
	f.record("captions")
	return nil
}

func (f *fakeAPI) FinalVideoURL(file string, token int64) string {
	return fmt.Sprintf("http://api.test/api/video/video?file=%s&t=%d", file, token)
}

func (f *fakeAPI) ProbeFinalVideo(ctx context.Context, file string, token int64) error {
	f.record("video")
	f.mu.Lock()
	f.lastProbe = file
	f.mu.Unlock()
	if f.probe != nil {
		return f.probe(ctx, file, token)
	}
	return nil
}
