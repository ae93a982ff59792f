package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"presenced/internal/cache"
	"presenced/internal/session"
)

// fakeFetcher is a scriptable Fetcher for tests
type fakeFetcher struct {
	rec   session.MetadataRecord
	err   error
	calls int
}

func (f *fakeFetcher) FetchTrack(ctx context.Context, id session.TrackIdentity, title string) (session.MetadataRecord, error) {
	f.calls++
	if f.err != nil {
		return session.MetadataRecord{}, f.err
	}
	return f.rec, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(f *fakeFetcher, c *cache.LRU) *Resolver {
	return New(f, c, time.Second, testLogger())
}

func obs(title string, mode session.Mode, elapsed time.Duration) session.RawObservation {
	return session.RawObservation{
		Mode:       mode,
		TrackTitle: title,
		Elapsed:    elapsed,
		ObservedAt: time.Now(),
	}
}

func TestResolveNoSession(t *testing.T) {
	f := &fakeFetcher{}
	r := newResolver(f, cache.New(4))

	got := r.Resolve(context.Background(), session.RawObservation{}, false)
	if !got.IsIdle() {
		t.Error("Expected idle sentinel for no session")
	}
	if f.calls != 0 {
		t.Error("Expected no fetch for no session")
	}
}

func TestResolveRemoteSuccess(t *testing.T) {
	f := &fakeFetcher{rec: session.MetadataRecord{
		DisplayName:  "Deep Work",
		Genre:        "Ambient",
		NeuralEffect: "High Neural Effect",
		ArtworkURL:   "https://img/x.webp",
		FetchedAt:    time.Now(),
	}}
	c := cache.New(4)
	r := newResolver(f, c)

	got := r.Resolve(context.Background(), obs("Deep Work", session.ModeFocus, 30*time.Second), true)

	if got.Source != session.SourceRemote {
		t.Errorf("Expected SourceRemote, got %v", got.Source)
	}
	if got.Mode != session.ModeFocus {
		t.Errorf("Expected ModeFocus, got %v", got.Mode)
	}
	if got.Elapsed != 30*time.Second {
		t.Errorf("Expected elapsed 30s, got %v", got.Elapsed)
	}
	if got.Metadata == nil || got.Metadata.Genre != "Ambient" {
		t.Error("Expected remote metadata on the resolved session")
	}

	// The fetch must have populated the cache for this identity.
	if cached, hit := c.Get(got.Identity); !hit {
		t.Error("Expected cache entry after remote success")
	} else if cached.Genre != "Ambient" {
		t.Errorf("Expected cached genre Ambient, got %q", cached.Genre)
	}
}

func TestResolveFallsBackToCache(t *testing.T) {
	f := &fakeFetcher{rec: session.MetadataRecord{
		DisplayName:  "Deep Work",
		Genre:        "Ambient",
		NeuralEffect: "High Neural Effect",
	}}
	c := cache.New(4)
	r := newResolver(f, c)

	// First cycle: remote succeeds, cache learns the record.
	first := r.Resolve(context.Background(), obs("Deep Work", session.ModeFocus, 30*time.Second), true)

	// Second cycle 5s later: remote now failing.
	f.err = errors.New("timeout")
	second := r.Resolve(context.Background(), obs("Deep Work", session.ModeFocus, 35*time.Second), true)

	if second.Source != session.SourceCache {
		t.Errorf("Expected SourceCache, got %v", second.Source)
	}
	if second.Elapsed != 35*time.Second {
		t.Errorf("Expected fresh elapsed 35s, got %v", second.Elapsed)
	}
	if second.Metadata == nil {
		t.Fatal("Expected cached metadata")
	}
	if second.Metadata.Genre != first.Metadata.Genre ||
		second.Metadata.NeuralEffect != first.Metadata.NeuralEffect {
		t.Error("Expected descriptive fields unchanged from the cached record")
	}
}

func TestResolveRemoteFailCacheMiss(t *testing.T) {
	f := &fakeFetcher{err: errors.New("network down")}
	r := newResolver(f, cache.New(4))

	got := r.Resolve(context.Background(), obs("Unseen Track", session.ModeRelax, 10*time.Second), true)

	if got.Source != session.SourceNone {
		t.Errorf("Expected SourceNone, got %v", got.Source)
	}
	if got.Metadata != nil {
		t.Error("Expected no metadata on cache miss")
	}
	// Best-effort partial presence still carries the observed fields.
	if got.Mode != session.ModeRelax || got.Elapsed != 10*time.Second {
		t.Error("Expected mode/elapsed from the raw observation")
	}
	if got.IsIdle() {
		t.Error("Partial session must not be the idle sentinel")
	}
}

func TestResolveRemoteFillsUnknownMode(t *testing.T) {
	f := &fakeFetcher{rec: session.MetadataRecord{
		DisplayName: "Blooming",
		MentalState: "Sleep",
	}}
	r := newResolver(f, cache.New(4))

	got := r.Resolve(context.Background(), obs("Blooming", session.ModeUnknown, 0), true)
	if got.Mode != session.ModeSleep {
		t.Errorf("Expected remote mental state to fill unknown mode, got %v", got.Mode)
	}
}

func TestResolveLocalModeWins(t *testing.T) {
	f := &fakeFetcher{rec: session.MetadataRecord{
		DisplayName: "Blooming",
		MentalState: "Sleep",
	}}
	r := newResolver(f, cache.New(4))

	got := r.Resolve(context.Background(), obs("Blooming", session.ModeRelax, 0), true)
	if got.Mode != session.ModeRelax {
		t.Errorf("Expected local mode to win over remote, got %v", got.Mode)
	}
}
