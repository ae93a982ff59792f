// Package main is the entry point for the presenced daemon.
// presenced is a headless daemon that mirrors the local Brain.fm
// playback session to Discord Rich Presence, enriching it with
// metadata from the Brain.fm API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presenced/internal/brainfm"
	"presenced/internal/cache"
	"presenced/internal/config"
	"presenced/internal/discord"
	"presenced/internal/engine"
	"presenced/internal/logger"
	"presenced/internal/metrics"
	"presenced/internal/presence"
	"presenced/internal/resolve"
	"presenced/internal/source"
	"presenced/internal/status"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		envFile     = flag.String("env", "", "Path to .env file (default: ./.env)")
		statusAddr  = flag.String("status-addr", "", "Status server listen address (overrides STATUS_ADDR)")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("presenced %s\n", Version)
		return
	}

	if *envFile != "" {
		_ = config.Load(*envFile)
	} else {
		_ = config.Load()
	}

	cfg := config.FromEnv()
	if *statusAddr != "" {
		cfg.StatusAddr = *statusAddr
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("presenced starting",
		"version", Version,
		"poll_interval", cfg.PollInterval,
		"player", cfg.PlayerName,
		"status_addr", cfg.StatusAddr,
	)

	// Cancel on interrupt signals.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx, cancel, cfg, log, sigCh); err != nil {
		log.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, log *slog.Logger, sigCh chan os.Signal) error {
	// Local state source, degrading to no-op when the probe is
	// unavailable. The daemon keeps running and reports idle.
	src, err := source.New(cfg.PlayerName, cfg.SourceTimeout, log)
	if err != nil {
		log.Warn("local state source unavailable, reporting idle", "error", err)
		src = source.NewNoOpSource()
	}
	defer src.Close()

	met := metrics.New()
	lru := cache.New(cfg.CacheSize)
	api := brainfm.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.APITimeout, log)
	resolver := resolve.New(api, lru, cfg.APITimeout, log)

	channel := discord.NewClient(cfg.DiscordAppID, log)
	pub := presence.New(channel, presence.Options{
		InitialDelay:  cfg.ReconnectInitial,
		MaxDelay:      cfg.ReconnectMax,
		DegradedAfter: cfg.DegradedAfter,
	}, met, log)

	loop := engine.New(src, resolver, pub, cfg.PollInterval, met, log)

	go pub.Run(ctx)
	go loop.Run(ctx)

	srv := status.NewServer(cfg.StatusAddr, loop, met, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server error", "error", err)
			cancel()
		}
	}()

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}

	log.Info("presenced stopped")
	return nil
}
