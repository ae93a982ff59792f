// Package resolve reconciles local observations with remote metadata.
// The local source wins for real-time fields (mode, elapsed time); the
// remote source wins for descriptive fields (name, genre, neural
// effect, artwork). When the remote is unreachable the resolver falls
// back to previously learned metadata from the cache.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"presenced/internal/cache"
	"presenced/internal/session"
)

// Fetcher looks up track metadata from the remote service
type Fetcher interface {
	FetchTrack(ctx context.Context, id session.TrackIdentity, title string) (session.MetadataRecord, error)
}

// Resolver builds the best-available session description each cycle.
// A remote failure is never fatal and never retried inline; the next
// cycle is the retry.
type Resolver struct {
	fetch   Fetcher
	cache   *cache.LRU
	timeout time.Duration
	log     *slog.Logger
}

// New creates a resolver. The timeout bounds a single remote fetch so
// a slow API cannot stall the whole cycle.
func New(fetch Fetcher, c *cache.LRU, timeout time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		fetch:   fetch,
		cache:   c,
		timeout: timeout,
		log:     log,
	}
}

// Resolve turns a raw observation into a resolved session. ok is the
// source's "session present" flag; when false the idle sentinel is
// returned and no lookups happen.
func (r *Resolver) Resolve(ctx context.Context, obs session.RawObservation, ok bool) session.ResolvedSession {
	if !ok || obs.TrackTitle == "" {
		return session.IdleSession()
	}

	id := session.DeriveIdentity("", obs.TrackTitle, obs.Mode)
	resolved := session.ResolvedSession{
		Identity: id,
		Mode:     obs.Mode,
		Elapsed:  obs.Elapsed,
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := r.fetch.FetchTrack(fetchCtx, id, obs.TrackTitle)
	if err == nil {
		rec.Identity = id
		r.cache.Put(id, rec)
		resolved.Metadata = &rec
		resolved.Source = session.SourceRemote
		return r.fillMode(resolved)
	}
	r.log.Debug("remote metadata fetch failed", "track", obs.TrackTitle, "error", err)

	// Descriptive fields come from the cached record as-is; only the
	// real-time fields above reflect this cycle's observation.
	if cached, hit := r.cache.Get(id); hit {
		resolved.Metadata = &cached
		resolved.Source = session.SourceCache
		return r.fillMode(resolved)
	}

	resolved.Source = session.SourceNone
	return resolved
}

// fillMode lets remote metadata supply the mode only when the local
// observation could not determine one.
func (r *Resolver) fillMode(s session.ResolvedSession) session.ResolvedSession {
	if s.Mode == session.ModeUnknown && s.Metadata != nil {
		if mode := session.ParseMode(s.Metadata.MentalState); mode != session.ModeUnknown {
			s.Mode = mode
		}
	}
	return s
}
