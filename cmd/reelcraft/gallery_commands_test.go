package main

import (
	"encoding/json"
	"testing"
)

func TestGalleryListShowsItems(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)

	out, _, err := runCLI(t, env, "gallery", "list")
	if err != nil {
		t.Fatalf("gallery list: %v", err)
	}
	requireContains(t, out, "ocean_final.mp4")
	requireContains(t, out, "clip.mp4")
	requireContains(t, out, "2.0 kB")

	out, _, err = runCLI(t, env, "--json", "gallery", "list")
	if err != nil {
		t.Fatalf("gallery list json: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode items: %v (%s)", err, out)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0]["locator"] != env.service.server.URL+"/outputs/u-1/ocean_final.mp4" {
		t.Fatalf("unexpected locator %v", items[0]["locator"])
	}
}

func TestGalleryRequiresSignIn(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "gallery", "list")
	if err == nil {
		t.Fatal("expected sign-in error")
	}
	requireContains(t, err.Error(), "login")
}

func TestGalleryDeleteRetriesTransientFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.deleteFails = 1
	login(t, env)

	out, _, err := runCLI(t, env, "gallery", "delete", "clip.mp4")
	if err != nil {
		t.Fatalf("gallery delete: %v", err)
	}
	requireContains(t, out, "Deleted clip.mp4")

	env.service.mu.Lock()
	defer env.service.mu.Unlock()
	if env.service.deleteCalls != 2 {
		t.Fatalf("expected 2 delete attempts, got %d", env.service.deleteCalls)
	}
}

func TestGalleryDeleteReportsRollback(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.deleteFails = 100
	login(t, env)

	_, _, err := runCLI(t, env, "gallery", "delete", "clip.mp4")
	if err == nil {
		t.Fatal("expected rollback error")
	}
	requireContains(t, err.Error(), "reverted")

	env.service.mu.Lock()
	defer env.service.mu.Unlock()
	if env.service.deleteCalls != 3 {
		t.Fatalf("expected 3 delete attempts, got %d", env.service.deleteCalls)
	}
}

func TestGalleryDeleteUnknownItem(t *testing.T) {
	env := setupCLITestEnv(t)
	login(t, env)

	_, _, err := runCLI(t, env, "gallery", "delete", "missing.mp4")
	if err == nil {
		t.Fatal("expected not found error")
	}
	requireContains(t, err.Error(), "File not found")
}
