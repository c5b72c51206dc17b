package gallery

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"reelcraft/internal/locator"
	"reelcraft/internal/retry"
	"reelcraft/internal/services"
	"reelcraft/internal/transport"
	"reelcraft/internal/videoapi"
)

type staticUser struct{ id string }

func (s staticUser) Credentials() (transport.Credentials, bool) {
	if s.id == "" {
		return transport.Credentials{}, false
	}
	return transport.Credentials{Token: "tok", UserID: s.id}, true
}

type fakeGalleryAPI struct {
	mu      sync.Mutex
	items   []videoapi.GalleryItem
	deletes int
	renames int
	onList  func()

	deleteFn func(attempt int, name string) error
	renameFn func(attempt int, name, newBase string) (videoapi.Renamed, error)
}

func (f *fakeGalleryAPI) ListGallery(_ context.Context, userID string) ([]videoapi.GalleryItem, error) {
	if f.onList != nil {
		f.onList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items), nil
}

func (f *fakeGalleryAPI) RenameGalleryItem(_ context.Context, _ string, name, newBase string) (videoapi.Renamed, error) {
	f.mu.Lock()
	f.renames++
	attempt := f.renames
	f.mu.Unlock()
	if f.renameFn != nil {
		return f.renameFn(attempt, name, newBase)
	}
	return videoapi.Renamed{Old: name, New: newBase + ".mp4"}, nil
}

func (f *fakeGalleryAPI) DeleteGalleryItem(_ context.Context, _ string, name string) error {
	f.mu.Lock()
	f.deletes++
	attempt := f.deletes
	f.mu.Unlock()
	if f.deleteFn != nil {
		return f.deleteFn(attempt, name)
	}
	return nil
}

func sampleItems() []videoapi.GalleryItem {
	return []videoapi.GalleryItem{
		{Name: "intro.mp4", Size: 10, Modified: "2025-05-01T10:00:00", URL: "/api/video/user/u1/gallery/file/intro.mp4", Thumbnail: "/api/video/user/u1/gallery/thumb/intro.mp4.jpg"},
		{Name: "clip.mp4", Size: 20, Modified: "2025-05-02T10:00:00", URL: "/api/video/user/u1/gallery/file/clip.mp4"},
		{Name: "outro.mp4", Size: 30, Modified: "2025-05-03T10:00:00", URL: "/api/video/user/u1/gallery/file/outro.mp4"},
	}
}

type gaveUpRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (g *gaveUpRecorder) hook(key string, _ error) {
	g.mu.Lock()
	g.keys = append(g.keys, key)
	g.mu.Unlock()
}

func (g *gaveUpRecorder) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}

func newTestCache(t *testing.T, api *fakeGalleryAPI, notices *[]Notice) (*Cache, *gaveUpRecorder) {
	t.Helper()
	recorder := &gaveUpRecorder{}
	exec := retry.New(context.Background(),
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		retry.WithGaveUp(recorder.hook),
	)
	t.Cleanup(exec.Close)
	var mu sync.Mutex
	cache := New(api, staticUser{id: "u1"}, exec,
		WithResolver(locator.New("http://localhost:8000")),
		WithNotify(func(n Notice) {
			if notices == nil {
				return
			}
			mu.Lock()
			*notices = append(*notices, n)
			mu.Unlock()
		}),
	)
	if _, err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return cache, recorder
}

func names(items []Asset) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func TestRefreshResolvesLocators(t *testing.T) {
	api := &fakeGalleryAPI{items: sampleItems()}
	cache, _ := newTestCache(t, api, nil)
	items := cache.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Locator != "http://localhost:8000/api/video/user/u1/gallery/file/intro.mp4" {
		t.Fatalf("unexpected locator %q", items[0].Locator)
	}
	if items[0].Thumbnail != "http://localhost:8000/api/video/user/u1/gallery/thumb/intro.mp4.jpg" {
		t.Fatalf("unexpected thumbnail %q", items[0].Thumbnail)
	}
	if items[1].Thumbnail != "" {
		t.Fatalf("missing thumbnail should stay empty, got %q", items[1].Thumbnail)
	}
	if items[0].Modified.IsZero() {
		t.Fatal("expected modified time")
	}
}

func TestDeleteFailingTwiceThenSucceedingNeverReappears(t *testing.T) {
	var cache *Cache
	var sawItem bool
	var mu sync.Mutex
	api := &fakeGalleryAPI{items: sampleItems()}
	api.deleteFn = func(attempt int, name string) error {
		if slices.Contains(names(cache.Items()), name) {
			mu.Lock()
			sawItem = true
			mu.Unlock()
		}
		if attempt < 3 {
			return &transport.Error{Kind: transport.KindTransport, StatusCode: http.StatusBadGateway, Message: "request failed with status 502"}
		}
		return nil
	}
	var notices []Notice
	cache, gaveUp := newTestCache(t, api, &notices)

	if err := cache.Delete(context.Background(), "clip.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if slices.Contains(names(cache.Items()), "clip.mp4") {
		t.Fatal("item should disappear immediately")
	}
	cache.Wait()

	mu.Lock()
	defer mu.Unlock()
	if sawItem {
		t.Fatal("item reappeared between attempts")
	}
	if got := names(cache.Items()); !slices.Equal(got, []string{"intro.mp4", "outro.mp4"}) {
		t.Fatalf("unexpected items %v", got)
	}
	if gaveUp.count() != 0 {
		t.Fatal("no give-up notice expected")
	}
	if api.deletes != 3 {
		t.Fatalf("expected 3 attempts, got %d", api.deletes)
	}
	if len(notices) != 1 || notices[0].Kind != NoticeDeleted {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestDeleteExhaustedRollsBackToOriginalIndex(t *testing.T) {
	api := &fakeGalleryAPI{items: sampleItems()}
	api.deleteFn = func(int, string) error { return errors.New("offline") }
	var notices []Notice
	cache, gaveUp := newTestCache(t, api, &notices)

	if err := cache.Delete(context.Background(), "clip.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cache.Wait()

	if got := names(cache.Items()); !slices.Equal(got, []string{"intro.mp4", "clip.mp4", "outro.mp4"}) {
		t.Fatalf("expected rollback to original order, got %v", got)
	}
	if gaveUp.count() != 1 {
		t.Fatalf("expected one give-up, got %d", gaveUp.count())
	}
	if len(notices) != 1 || notices[0].Kind != NoticeRolledBack || !errors.Is(notices[0].Err, services.ErrExhausted) {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestRenameAppliesSanitizedNameOptimistically(t *testing.T) {
	release := make(chan struct{})
	api := &fakeGalleryAPI{items: sampleItems()}
	api.renameFn = func(_ int, name, newBase string) (videoapi.Renamed, error) {
		<-release
		if name != "intro.mp4" || newBase != "Caf\u00e9final" {
			t.Errorf("unexpected rename %s -> %s", name, newBase)
		}
		return videoapi.Renamed{Old: name, New: newBase + ".mp4"}, nil
	}
	var notices []Notice
	cache, _ := newTestCache(t, api, &notices)

	target, err := cache.Rename(context.Background(), "intro.mp4", "Cafe\u0301 final!.mp4")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if target != "Caf\u00e9final.mp4" {
		t.Fatalf("unexpected target %q", target)
	}
	items := cache.Items()
	if items[0].Name != target {
		t.Fatalf("rename should apply immediately, got %q", items[0].Name)
	}
	if items[0].Thumbnail != "http://localhost:8000/api/video/user/u1/gallery/thumb/"+target+".jpg" {
		t.Fatalf("thumbnail not renamed: %q", items[0].Thumbnail)
	}

	if _, err := cache.Rename(context.Background(), target, "again"); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy while pending, got %v", err)
	}

	close(release)
	cache.Wait()
	if len(notices) != 1 || notices[0].Kind != NoticeRenamed {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestRenameRollsBackOnExhaustion(t *testing.T) {
	api := &fakeGalleryAPI{items: sampleItems()}
	api.renameFn = func(int, string, string) (videoapi.Renamed, error) {
		return videoapi.Renamed{}, &transport.Error{Kind: transport.KindApplication, StatusCode: 400, Message: "Target name exists"}
	}
	cache, gaveUp := newTestCache(t, api, nil)

	if _, err := cache.Rename(context.Background(), "outro.mp4", "ending"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	cache.Wait()
	if got := names(cache.Items()); !slices.Equal(got, []string{"intro.mp4", "clip.mp4", "outro.mp4"}) {
		t.Fatalf("expected original names, got %v", got)
	}
	if gaveUp.count() != 1 {
		t.Fatalf("expected give-up, got %d", gaveUp.count())
	}
}

func TestRefreshKeepsPendingDeleteHidden(t *testing.T) {
	release := make(chan struct{})
	api := &fakeGalleryAPI{items: sampleItems()}
	api.deleteFn = func(int, string) error {
		<-release
		return nil
	}
	cache, _ := newTestCache(t, api, nil)
	if err := cache.Delete(context.Background(), "clip.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items, err := cache.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if slices.Contains(names(items), "clip.mp4") {
		t.Fatal("pending delete reappeared after refresh")
	}
	close(release)
	cache.Wait()
}

func TestMutationsRequireSignIn(t *testing.T) {
	exec := retry.New(context.Background())
	t.Cleanup(exec.Close)
	cache := New(&fakeGalleryAPI{}, staticUser{}, exec)
	if _, err := cache.Refresh(context.Background()); !errors.Is(err, services.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if err := cache.Delete(context.Background(), "x.mp4"); !errors.Is(err, services.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestRenameValidation(t *testing.T) {
	api := &fakeGalleryAPI{items: sampleItems()}
	cache, _ := newTestCache(t, api, nil)
	ctx := context.Background()
	if _, err := cache.Rename(ctx, "intro.mp4", "!!!"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := cache.Rename(ctx, "intro.mp4", "clip"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected target exists, got %v", err)
	}
	if _, err := cache.Rename(ctx, "missing.mp4", "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if api.renames != 0 {
		t.Fatal("validation failures must not reach the service")
	}
}
