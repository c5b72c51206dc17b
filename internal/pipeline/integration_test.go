package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"reelcraft/internal/locator"
	"reelcraft/internal/pipeline"
	"reelcraft/internal/transport"
	"reelcraft/internal/videoapi"
)

func TestOceanDocumentaryAgainstService(t *testing.T) {
	var contentBody map[string]any
	var probed string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/video/content", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&contentBody)
		_, _ = w.Write([]byte(`{"content":"The ocean covers most of the planet."}`))
	})
	mux.HandleFunc("POST /api/video/scripts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"script":"s","voice_scripts":["v1","v2"],"image_prompts_detailed":[{"prompt":"a whale"},{"description":"a reef"}]}`))
	})
	mux.HandleFunc("POST /api/video/images", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"image_paths":["outputs/images/img_0.png","outputs/images/img_1.png"]}`))
	})
	mux.HandleFunc("POST /api/video/voices", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"voice_paths":["outputs\\voices\\a.wav","outputs/voices/b.wav"]}`))
	})
	mux.HandleFunc("POST /api/video/edit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("GET /api/video/video", func(w http.ResponseWriter, r *http.Request) {
		probed = r.URL.Query().Get("file")
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	api := videoapi.New(transport.New(server.URL + "/api/video"))
	m := pipeline.New(api, locator.New(server.URL))
	t.Cleanup(m.Close)
	ctx := context.Background()

	m.SetTitle("Ocean Documentary")
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.GenerateContent(ctx); err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	want := map[string]any{"title": "Ocean Documentary", "video_mode": true}
	if !reflect.DeepEqual(contentBody, want) {
		t.Fatalf("unexpected content body %v", contentBody)
	}
	if got := m.Snapshot().Step; got != pipeline.StepContent {
		t.Fatalf("expected step 2, got %d", got)
	}

	if err := m.GenerateScripts(ctx); err != nil {
		t.Fatalf("GenerateScripts: %v", err)
	}
	if got := m.Snapshot().Scripts.ImagePrompts; !reflect.DeepEqual(got, []string{"a whale", "a reef"}) {
		t.Fatalf("unexpected prompts %v", got)
	}

	for _, step := range []func(context.Context) error{m.GenerateImages, m.GenerateVoices, m.Continue, m.Assemble} {
		if err := step(ctx); err != nil {
			t.Fatalf("stage failed: %v", err)
		}
	}
	snap := m.Snapshot()
	if locator.StripQuery(snap.Voices[0]) != server.URL+"/outputs/voices/a.wav" {
		t.Fatalf("unexpected voice locator %q", snap.Voices[0])
	}

	if err := m.AddMusic(ctx, pipeline.MusicOptions{}); err != nil {
		t.Fatalf("AddMusic: %v", err)
	}
	snap = m.Snapshot()
	if probed != "youtube_shorts.mp4" {
		t.Fatalf("unexpected probed file %q", probed)
	}
	if !strings.HasPrefix(snap.FinalVideo, server.URL+"/api/video/video?file=youtube_shorts.mp4&t=") {
		t.Fatalf("unexpected final video %q", snap.FinalVideo)
	}
}

func TestServiceErrorEnvelopeSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"Title too long"}`))
	}))
	t.Cleanup(server.Close)

	m := pipeline.New(videoapi.New(transport.New(server.URL)), locator.New(server.URL))
	t.Cleanup(m.Close)
	ctx := context.Background()
	m.SetTitle(strings.Repeat("x", 500))
	_ = m.Start(ctx)
	if err := m.GenerateContent(ctx); err == nil {
		t.Fatal("expected error")
	}
	snap := m.Snapshot()
	if snap.Error != "Title too long" || snap.Step != pipeline.StepCreate {
		t.Fatalf("unexpected state %+v", snap)
	}
}
