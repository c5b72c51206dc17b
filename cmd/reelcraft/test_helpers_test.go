package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const testToken = "tok-cli"

// fakeService stands in for the auth and video services on one origin.
type fakeService struct {
	t      *testing.T
	server *httptest.Server
	mux    *http.ServeMux

	mu            sync.Mutex
	galleryItems  []map[string]any
	deleteFails   int
	deleteCalls   int
	contentBodies []map[string]any
	savedKeys     map[string]string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{t: t, mux: http.NewServeMux()}
	f.galleryItems = []map[string]any{
		{"name": "ocean_final.mp4", "size": 2048, "modified": "2026-03-01T10:00:00", "url": "/outputs/u-1/ocean_final.mp4"},
		{"name": "clip.mp4", "size": 1024, "modified": "2026-03-02T10:00:00", "url": "/outputs/u-1/clip.mp4"},
	}

	f.mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		fmt.Fprintf(w, `{"token":%q,"user":{"id":"u-1","email":%q,"display_name":"Ada"}}`, testToken, body["email"])
	})
	f.mux.HandleFunc("GET /api/video/voices/list", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"available_voices":["af_heart","am_adam"],"default_voice":"af_heart"}`))
	}))
	f.mux.HandleFunc("POST /api/video/content", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.contentBodies = append(f.contentBodies, body)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"content":"The ocean covers most of the planet."}`))
	}))
	f.mux.HandleFunc("POST /api/video/scripts", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"script":"s","voice_scripts":["v1","v2"],"image_prompts":["a whale","a reef"]}`))
	}))
	f.mux.HandleFunc("POST /api/video/images", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"image_paths":["outputs/images/img_0.png","outputs/images/img_1.png"]}`))
	}))
	f.mux.HandleFunc("POST /api/video/voices", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"voice_paths":["outputs/voices/a.wav","outputs/voices/b.wav"]}`))
	}))
	f.mux.HandleFunc("POST /api/video/edit", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	f.mux.HandleFunc("POST /api/video/captions", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	f.mux.HandleFunc("GET /api/video/video", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4-bytes"))
	})
	f.mux.HandleFunc("GET /api/video/user/u-1/gallery", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"items": f.galleryItems})
	}))
	f.mux.HandleFunc("DELETE /api/video/user/u-1/gallery/file/{name}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deleteCalls++
		if f.deleteCalls <= f.deleteFails {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))

	f.handleAPIKeys()

	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeService) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		next(w, r)
	}
}

type cliTestEnv struct {
	service    *fakeService
	configPath string
	stateDir   string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{"REELCRAFT_API_BASE", "REELCRAFT_AUTH_BASE", "REELCRAFT_SESSION_PATH", "REELCRAFT_NTFY_TOPIC", "REELCRAFT_BRIDGE_TOKEN", "REELCRAFT_PASSWORD"} {
		t.Setenv(key, "")
	}

	service := newFakeService(t)
	env := &cliTestEnv{
		service:    service,
		configPath: filepath.Join(base, "config.toml"),
		stateDir:   filepath.Join(base, "state"),
		baseDir:    base,
	}
	writeTestConfig(t, env)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	url := env.service.server.URL
	content := fmt.Sprintf(`[api]
video_url = %q
auth_url = %q
asset_base = %q
timeout_seconds = 5

[retry]
max_attempts = 3
base_delay_ms = 0
backoff_factor = 1.6

[session]
path = %q

[paths]
state_dir = %q
log_dir = %q

[logging]
level = "error"
`,
		url+"/api/video",
		url+"/api/auth",
		url,
		filepath.Join(env.baseDir, "session", "session.json"),
		env.stateDir,
		filepath.Join(env.baseDir, "logs"),
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func login(t *testing.T, env *cliTestEnv) {
	t.Helper()
	if _, _, err := runCLI(t, env, "login", "--email", "ada@example.com", "--password", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func (f *fakeService) handleAPIKeys() {
	presence := map[string]bool{"gemini": true, "groq1": false, "groq2": false, "groq3": false}
	f.mux.HandleFunc("GET /api/auth/api-keys", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(presence)
	}))
	f.mux.HandleFunc("PUT /api/auth/api-keys", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.savedKeys = body
		for provider := range body {
			presence[provider] = true
		}
		_ = json.NewEncoder(w).Encode(presence)
	}))
}
