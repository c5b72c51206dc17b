package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reelcraft/internal/config"
	"reelcraft/internal/history"
	"reelcraft/internal/pipeline"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenPath(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func at(minute int) time.Time {
	return time.Date(2026, 3, 1, 10, minute, 0, 0, time.UTC)
}

func TestRecordTracksJobLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	events := []pipeline.Event{
		{JobID: "job-1", Title: "Ocean Documentary", Stage: pipeline.StageContent, Kind: pipeline.EventStarted, Step: pipeline.StepCreate, At: at(0)},
		{JobID: "job-1", Stage: pipeline.StageContent, Kind: pipeline.EventCompleted, Step: pipeline.StepContent, At: at(1)},
		{JobID: "job-1", Stage: pipeline.StageScripts, Kind: pipeline.EventFailed, Step: pipeline.StepContent, Message: "Script generation failed", At: at(2)},
	}
	for _, evt := range events {
		if err := store.Record(ctx, evt); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	job, err := store.Job(ctx, "job-1")
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}
	if job == nil {
		t.Fatal("expected job row")
	}
	if job.Title != "Ocean Documentary" {
		t.Fatalf("title should survive events without one, got %q", job.Title)
	}
	if job.Status != history.StatusFailed || job.ErrorMessage != "Script generation failed" {
		t.Fatalf("unexpected failure state: %#v", job)
	}
	if !job.StartedAt.Equal(at(0)) || !job.UpdatedAt.Equal(at(2)) {
		t.Fatalf("unexpected timestamps: started %v updated %v", job.StartedAt, job.UpdatedAt)
	}

	if err := store.Record(ctx, pipeline.Event{JobID: "job-1", Stage: pipeline.StageScripts, Kind: pipeline.EventCompleted, Step: pipeline.StepScripts, At: at(3)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	job, _ = store.Job(ctx, "job-1")
	if job.Status != history.StatusActive || job.ErrorMessage != "" {
		t.Fatalf("retry success should clear the error, got %#v", job)
	}

	recorded, err := store.Events(ctx, "job-1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(recorded) != 4 {
		t.Fatalf("expected 4 events, got %d", len(recorded))
	}
	if recorded[2].Kind != string(pipeline.EventFailed) || recorded[2].Message != "Script generation failed" {
		t.Fatalf("unexpected third event: %#v", recorded[2])
	}
}

func TestRecordFinalVideo(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	final := "http://api.test/video?file=ocean_documentary_final.mp4&t=1"
	if err := store.Record(ctx, pipeline.Event{JobID: "job-2", Title: "Ocean", Stage: pipeline.StageMusic, Kind: pipeline.EventCompleted, Step: pipeline.StepFinal, Locator: final, At: at(0)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	job, _ := store.Job(ctx, "job-2")
	if job.Status != history.StatusRendered || job.FinalVideo != final {
		t.Fatalf("unexpected rendered job: %#v", job)
	}

	// A later stage without a locator keeps the render.
	if err := store.Record(ctx, pipeline.Event{JobID: "job-2", Stage: pipeline.StageFinal, Kind: pipeline.EventStarted, Step: pipeline.StepFinal, At: at(1)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	job, _ = store.Job(ctx, "job-2")
	if job.FinalVideo != final {
		t.Fatalf("final video dropped: %#v", job)
	}

	// Re-assembling invalidates it.
	if err := store.Record(ctx, pipeline.Event{JobID: "job-2", Stage: pipeline.StageAssemble, Kind: pipeline.EventCompleted, Step: pipeline.StepMusic, At: at(2)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	job, _ = store.Job(ctx, "job-2")
	if job.FinalVideo != "" {
		t.Fatalf("expected final video cleared after assemble, got %q", job.FinalVideo)
	}
}

func TestRecordRequiresJobID(t *testing.T) {
	store := openStore(t)
	if err := store.Record(context.Background(), pipeline.Event{Stage: pipeline.StageContent}); err == nil {
		t.Fatal("expected error without job id")
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i, id := range []string{"job-a", "job-b", "job-c"} {
		evt := pipeline.Event{JobID: id, Title: id, Stage: pipeline.StageContent, Kind: pipeline.EventStarted, At: at(i)}
		if err := store.Record(ctx, evt); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	// Sub-second timestamps must still sort after whole seconds.
	late := at(2).Add(500 * time.Millisecond)
	if err := store.Record(ctx, pipeline.Event{JobID: "job-a", Stage: pipeline.StageContent, Kind: pipeline.EventCompleted, At: late}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	jobs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-a" || jobs[1].ID != "job-c" {
		t.Fatalf("unexpected order: %#v", jobs)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[history.StatusActive] != 3 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestPruneAndClear(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_ = store.Record(ctx, pipeline.Event{JobID: "old", Stage: pipeline.StageContent, Kind: pipeline.EventStarted, At: at(0)})
	_ = store.Record(ctx, pipeline.Event{JobID: "new", Stage: pipeline.StageContent, Kind: pipeline.EventStarted, At: at(30)})

	removed, err := store.Prune(ctx, at(10))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned job, got %d", removed)
	}
	events, _ := store.Events(ctx, "old")
	if len(events) != 0 {
		t.Fatalf("expected events to cascade, got %d", len(events))
	}

	removed, err = store.Clear(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("Clear = %d, %v", removed, err)
	}
	if job, _ := store.Job(ctx, "new"); job != nil {
		t.Fatalf("expected no job after clear, got %#v", job)
	}
}

func TestObserveSurvivesCancelledContext(t *testing.T) {
	store := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store.Observe(ctx, pipeline.Event{JobID: "job-x", Stage: pipeline.StageImages, Kind: pipeline.EventFailed, Message: "boom", At: at(0)})

	job, err := store.Job(context.Background(), "job-x")
	if err != nil || job == nil {
		t.Fatalf("expected job recorded, got %#v, %v", job, err)
	}
}

func TestOpenFromConfigUsesStateDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	store, err := history.Open(&cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	if store.Path() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected path %q", store.Path())
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	_ = first.Record(context.Background(), pipeline.Event{JobID: "job-1", Stage: pipeline.StageContent, Kind: pipeline.EventStarted, At: at(0)})
	_ = first.Close()

	second, err := history.OpenPath(path)
	if err != nil {
		if errors.Is(err, history.ErrSchemaMismatch) {
			t.Fatalf("unexpected schema mismatch: %v", err)
		}
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	if job, _ := second.Job(context.Background(), "job-1"); job == nil {
		t.Fatal("expected job to persist across reopen")
	}
}
