package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wavecall/signal-relay/internal/config"
	"github.com/wavecall/signal-relay/internal/httpserver"
	"github.com/wavecall/signal-relay/internal/metrics"
	"github.com/wavecall/signal-relay/internal/relay"
	"github.com/wavecall/signal-relay/internal/signaling"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	// Optional .env for local development; a missing file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting signal-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"ws_idle_timeout", cfg.WSIdleTimeout,
		"ws_ping_interval", cfg.WSPingInterval,
		"max_message_bytes", cfg.MaxMessageBytes,
		"max_messages_per_second", cfg.MaxMessagesPerSecond,
		"ice_servers", len(cfg.ICEServers),
		"turn_rest", cfg.TURNRest.Enabled(),
	)

	if err := cfg.ICEConfigError(); err != nil {
		logger.Warn("ice configuration invalid; /rtc/ice will report unavailable", "err", err)
	}

	logStartupSecurityWarnings(logger, cfg)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	srv := httpserver.New(cfg, logger, resolveBuildInfo(buildCommit, buildTime))

	events := metrics.New()
	rooms := relay.NewRegistry(logger, events)

	sig := signaling.NewServer(signaling.Config{
		Rooms:  rooms,
		Logger: logger,
		Events: events,

		IdleTimeout:  cfg.WSIdleTimeout,
		PingInterval: cfg.WSPingInterval,

		MaxMessageBytes:      cfg.MaxMessageBytes,
		MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
	})
	// The upgrader accepts all origins; policy is enforced here, before the
	// upgrade, so rejected browsers get a plain 403 instead of a failed
	// handshake mid-upgrade.
	srv.Mux().HandleFunc("GET /rtc", srv.OriginPolicy(sig.ServeSignal))

	// Expose internal counters in Prometheus' text format.
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(events))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		sig.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	sig.Close()
	rooms.CloseAll()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, buildTime string) httpserver.BuildInfo {
	// Prefer ldflags-injected values (production builds) but fall back to the Go
	// build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return httpserver.BuildInfo{Commit: commit, BuildTime: buildTime}
}
