// Package source provides the local playback state source.
// A source is a pure sensor: it reports what the player exposes right
// now, or reports absence, and never escalates its own unavailability
// as an error.
package source

import (
	"context"

	"presenced/internal/session"
)

// Source is the interface for local playback state probes
type Source interface {
	// Poll returns the current observation. The second result is false
	// when there is no active session, including when the player is not
	// running or the probe failed or timed out.
	Poll(ctx context.Context) (session.RawObservation, bool)

	// Close releases resources
	Close() error
}

// NoOpSource is a source that always reports no session.
// Used on platforms without a probe and in tests.
type NoOpSource struct{}

// NewNoOpSource creates a new no-op source
func NewNoOpSource() *NoOpSource {
	return &NoOpSource{}
}

func (s *NoOpSource) Poll(ctx context.Context) (session.RawObservation, bool) {
	return session.RawObservation{}, false
}

func (s *NoOpSource) Close() error {
	return nil
}
