// Package engine drives the fixed-interval sync cycle: poll the local
// source, resolve against remote metadata, publish presence. The loop
// is the single owner of cycle cadence, and every cycle is isolated so
// one bad cycle can never take the daemon down.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"presenced/internal/metrics"
	"presenced/internal/presence"
	"presenced/internal/resolve"
	"presenced/internal/session"
	"presenced/internal/source"
)

// Loop ties the source, resolver, and publisher into one sequential
// cycle. Cycles never overlap, so a slow cycle's result is never
// published after a newer one.
type Loop struct {
	src      source.Source
	resolver *resolve.Resolver
	pub      *presence.Publisher
	interval time.Duration
	log      *slog.Logger
	met      *metrics.Metrics

	mu        sync.RWMutex
	last      session.ResolvedSession
	updatedAt time.Time
	cycles    uint64
	errors    uint64
}

// New creates a sync loop. met may be nil in tests.
func New(src source.Source, r *resolve.Resolver, pub *presence.Publisher, interval time.Duration, met *metrics.Metrics, log *slog.Logger) *Loop {
	return &Loop{
		src:      src,
		resolver: r,
		pub:      pub,
		interval: interval,
		log:      log,
		met:      met,
	}
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately rather than waiting a full interval.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("sync loop stopped")
			return
		case <-ticker.C:
			l.cycle(ctx)
		}
	}
}

// cycle runs one poll → resolve → publish pass. Panics from any stage
// are absorbed here; the next tick runs regardless.
func (l *Loop) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("sync cycle failed", "panic", r)
			l.mu.Lock()
			l.errors++
			l.mu.Unlock()
			if l.met != nil {
				l.met.IncCycleErrors()
			}
		}
	}()

	obs, ok := l.src.Poll(ctx)
	resolved := l.resolver.Resolve(ctx, obs, ok)
	l.pub.Publish(resolved)

	l.mu.Lock()
	l.last = resolved
	l.updatedAt = time.Now()
	l.cycles++
	l.mu.Unlock()

	if l.met != nil {
		l.met.IncCycles()
		if resolved.IsIdle() {
			l.met.IncResolutions("idle")
		} else {
			l.met.IncResolutions(resolved.Source.String())
			// A non-remote source on an active session means the fetch
			// failed this cycle.
			if resolved.Source == session.SourceRemote {
				l.met.IncFetches("ok")
			} else {
				l.met.IncFetches("error")
			}
		}
	}
}

// Status is the read-only snapshot exposed to the surrounding shell
type Status struct {
	Playing   bool                `json:"playing"`
	Track     string              `json:"track,omitempty"`
	Mode      string              `json:"mode,omitempty"`
	Genre     string              `json:"genre,omitempty"`
	ElapsedS  int64               `json:"elapsedSeconds"`
	Source    string              `json:"metadataSource"`
	UpdatedAt time.Time           `json:"updatedAt,omitzero"`
	Cycles    uint64              `json:"cycles"`
	Errors    uint64              `json:"cycleErrors"`
	Channel   presence.ConnStatus `json:"channel"`
}

// Status returns the current snapshot. Safe to call from any
// goroutine; the loop updates the underlying state atomically per
// cycle.
func (l *Loop) Status() Status {
	l.mu.RLock()
	last := l.last
	updatedAt := l.updatedAt
	cycles := l.cycles
	errs := l.errors
	l.mu.RUnlock()

	st := Status{
		Playing:   !last.IsIdle(),
		ElapsedS:  int64(last.Elapsed / time.Second),
		Source:    last.Source.String(),
		UpdatedAt: updatedAt,
		Cycles:    cycles,
		Errors:    errs,
		Channel:   l.pub.Snapshot(),
	}
	if !last.IsIdle() {
		st.Mode = last.Mode.String()
		if last.Metadata != nil {
			st.Track = last.Metadata.DisplayName
			st.Genre = last.Metadata.Genre
		}
	}
	return st
}
