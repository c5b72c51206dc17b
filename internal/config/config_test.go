package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelcraft/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "reelcraft")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.Session.Path != filepath.Join(runtimeDir, "reelcraft", "session.json") {
		t.Fatalf("unexpected session path: %q", cfg.Session.Path)
	}
	if cfg.API.VideoURL != "http://localhost:8000/api/video" {
		t.Fatalf("unexpected video url: %q", cfg.API.VideoURL)
	}
	if cfg.API.AuthURL != "http://localhost:8000/api/auth" {
		t.Fatalf("unexpected auth url: %q", cfg.API.AuthURL)
	}
	if cfg.API.AssetBase != "http://localhost:8000" {
		t.Fatalf("unexpected asset base: %q", cfg.API.AssetBase)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelayMS != 500 || cfg.Retry.BackoffFactor != 1.6 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Bridge.Bind != "127.0.0.1:7488" {
		t.Fatalf("unexpected bridge bind: %q", cfg.Bridge.Bind)
	}
}

func TestEnvironmentOverridesEndpoints(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REELCRAFT_API_BASE", "https://render.example.com/api/video/")
	t.Setenv("REELCRAFT_AUTH_BASE", "https://render.example.com/api/auth")
	t.Setenv("REELCRAFT_ASSET_BASE", "")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.VideoURL != "https://render.example.com/api/video" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.API.VideoURL)
	}
	if cfg.API.AuthURL != "https://render.example.com/api/auth" {
		t.Fatalf("unexpected auth url: %q", cfg.API.AuthURL)
	}
	if cfg.API.AssetBase != "" {
		t.Fatalf("expected empty asset base to be respected, got %q", cfg.API.AssetBase)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"api": map[string]any{
			"video_url":       "http://studio.lan:9000/api/video",
			"timeout_seconds": 30,
		},
		"retry": map[string]any{
			"max_attempts":  5,
			"base_delay_ms": 100,
		},
		"paths": map[string]any{
			"state_dir": "~/reels",
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "DEBUG",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config file to be found at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.API.VideoURL != "http://studio.lan:9000/api/video" {
		t.Fatalf("unexpected video url: %q", cfg.API.VideoURL)
	}
	if cfg.RequestTimeout().Seconds() != 30 {
		t.Fatalf("unexpected request timeout: %s", cfg.RequestTimeout())
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.RetryBaseDelay().Milliseconds() != 100 {
		t.Fatalf("unexpected retry config: %+v", cfg.Retry)
	}
	if cfg.Retry.BackoffFactor != 1.6 {
		t.Fatalf("expected default backoff factor, got %v", cfg.Retry.BackoffFactor)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "reels") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"video url scheme", func(c *config.Config) { c.API.VideoURL = "ftp://host/api" }, "api.video_url"},
		{"auth url missing", func(c *config.Config) { c.API.AuthURL = "" }, "api.auth_url"},
		{"asset base without host", func(c *config.Config) { c.API.AssetBase = "http://" }, "api.asset_base"},
		{"retry attempts", func(c *config.Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"retry factor", func(c *config.Config) { c.Retry.BackoffFactor = 0.5 }, "retry.backoff_factor"},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"timeout", func(c *config.Config) { c.API.TimeoutSeconds = -1 }, "api.timeout_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateAllowsEmptyAssetBase(t *testing.T) {
	cfg := config.Default()
	cfg.API.AssetBase = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected empty asset base to be valid, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.API.VideoURL != config.Default().API.VideoURL {
		t.Fatalf("sample video url drifted from defaults: %q", cfg.API.VideoURL)
	}
}

func TestEnsureDirectoriesCreatesStateAndLogDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "state", "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}
