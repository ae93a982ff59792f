// Package status exposes the daemon's read-only state over a local
// HTTP endpoint, for the tray shell or a curl-wielding user.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presenced/internal/engine"
	"presenced/internal/metrics"
	"presenced/internal/presence"
)

// NewServer builds the local status server. It serves the current
// snapshot on /status, liveness on /healthz, and Prometheus metrics on
// /metrics.
func NewServer(addr string, loop *engine.Loop, met *metrics.Metrics, log *slog.Logger) *http.Server {
	r := chi.NewRouter()

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(loop.Status()); err != nil {
			log.Warn("failed to encode status", "error", err)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Refresh the connection gauges right before each scrape.
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		st := loop.Status()
		met.SetConnected(st.Channel.State == presence.StateConnected)
		met.SetDegraded(st.Channel.Degraded)
		met.Handler().ServeHTTP(w, req)
	})

	return &http.Server{Addr: addr, Handler: r}
}
