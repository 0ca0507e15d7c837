package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dreschagin/corsfileserver/internal/cors"
	"github.com/dreschagin/corsfileserver/internal/httpx"
	fsmetrics "github.com/dreschagin/corsfileserver/internal/metrics"
	"github.com/dreschagin/corsfileserver/internal/ratelimit"
	"github.com/dreschagin/corsfileserver/internal/server"
	"github.com/dreschagin/corsfileserver/internal/static"
	"github.com/dreschagin/corsfileserver/internal/workdir"
	"github.com/dreschagin/corsfileserver/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	root, err := workdir.Enter(cfg.ServeDir)
	if err != nil {
		logger.Error("failed to resolve serve root", "error", err)
		os.Exit(1)
	}

	files, err := static.New(root)
	if err != nil {
		logger.Error("failed to open serve root", "error", err)
		os.Exit(1)
	}
	defer files.Close()

	metricsRegistry := prometheus.NewRegistry()
	metrics := fsmetrics.New(metricsRegistry)

	srv := server.New(server.Config{
		Addr:            cfg.Addr(),
		AdminAddr:       cfg.MetricsAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Banner:          os.Stdout,
		Root:            root,
	}, buildHandler(cfg, files, metrics, logger), metricsRegistry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("file server failed", "error", err)
		stop()
		_ = files.Close()
		os.Exit(1)
	}
}

// buildHandler wraps the file handler. CORS sits outside the limiter so
// every response, 429 included, carries the CORS headers.
func buildHandler(cfg *config.Config, files http.Handler, metrics *fsmetrics.Metrics, logger *slog.Logger) http.Handler {
	handler := files
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		handler = limiter.Middleware(metrics, handler)
	}
	handler = cors.Middleware(handler)
	handler = metrics.Middleware(handler)
	handler = httpx.WithRequestID(handler)
	handler = httpx.WithLogging(logger, handler)
	return handler
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	return slog.New(handler)
}
