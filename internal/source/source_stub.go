//go:build !linux

package source

import (
	"errors"
	"log/slog"
	"time"
)

// New is not available without a session D-Bus. Callers fall back to
// NewNoOpSource, matching how the daemon degrades when the probe is
// unavailable at runtime.
func New(player string, timeout time.Duration, log *slog.Logger) (Source, error) {
	return nil, errors.New("MPRIS source is only available on linux")
}
