package main

import (
	"context"
	"testing"
	"time"

	"reelcraft/internal/config"
	"reelcraft/internal/history"
	"reelcraft/internal/pipeline"
)

func seedHistory(t *testing.T, env *cliTestEnv, events ...pipeline.Event) {
	t.Helper()
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	for _, evt := range events {
		if err := store.Record(context.Background(), evt); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
}

func TestHistoryListsAndClears(t *testing.T) {
	env := setupCLITestEnv(t)
	now := time.Now()
	seedHistory(t, env,
		pipeline.Event{JobID: "job-a", Title: "Whales", Stage: pipeline.StageContent, Kind: pipeline.EventFailed, Step: pipeline.StepCreate, Message: "Title too long", At: now.Add(-time.Minute)},
		pipeline.Event{JobID: "job-b", Title: "Reefs", Stage: pipeline.StageContent, Kind: pipeline.EventCompleted, Step: pipeline.StepContent, At: now},
	)

	out, _, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "job-a")
	requireContains(t, out, "Reefs")
	requireContains(t, out, "Title too long")

	out, _, err = runCLI(t, env, "history", "show", "job-a")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "Whales (job-a)")
	requireContains(t, out, "Title too long")

	if _, _, err := runCLI(t, env, "history", "show", "nope"); err == nil {
		t.Fatal("expected unknown job error")
	}

	out, _, err = runCLI(t, env, "history", "clear")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Removed 2 runs")

	out, _, err = runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestHistoryPruneRemovesStaleRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	seedHistory(t, env,
		pipeline.Event{JobID: "old", Title: "Old", Stage: pipeline.StageStart, Kind: pipeline.EventCompleted, Step: pipeline.StepCreate, At: time.Now().Add(-72 * time.Hour)},
		pipeline.Event{JobID: "new", Title: "New", Stage: pipeline.StageStart, Kind: pipeline.EventCompleted, Step: pipeline.StepCreate, At: time.Now()},
	)

	out, _, err := runCLI(t, env, "history", "prune", "--older-than", "24h")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Removed 1 runs")
}
