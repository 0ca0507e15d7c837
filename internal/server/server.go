package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultShutdownTimeout = 5 * time.Second

// Config describes the listeners owned by a Server.
type Config struct {
	// Addr is the file listener address, e.g. ":8080".
	Addr string
	// AdminAddr enables the /healthz, /readyz and /metrics listener.
	AdminAddr       string
	ShutdownTimeout time.Duration
	// Banner receives the human-readable startup and shutdown lines.
	Banner io.Writer
	// Root is only used for the banner.
	Root string
}

// Server owns the file listener and the optional admin listener.
type Server struct {
	cfg    Config
	logger *slog.Logger

	httpServer  *http.Server
	adminServer *http.Server

	listener      net.Listener
	adminListener net.Listener

	ready atomic.Bool
}

func New(cfg Config, handler http.Handler, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if cfg.Banner == nil {
		cfg.Banner = io.Discard
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:     cfg.Addr,
			Handler:  handler,
			ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelDebug),

			// "OPTIONS *" must reach the handler so it gets the CORS headers.
			DisableGeneralOptionsHandler: true,
		},
	}

	if cfg.AdminAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
			if !s.ready.Load() {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

		s.adminServer = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return s
}

// Listen binds every configured listener. Bind failures are returned here
// so a port already in use stops startup.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	if s.adminServer != nil {
		adminLn, err := net.Listen("tcp", s.cfg.AdminAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on admin %s: %w", s.cfg.AdminAddr, err)
		}
		s.adminListener = adminLn
	}

	return nil
}

// Addr returns the bound file listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// AdminAddr returns the bound admin listener address, or nil when disabled.
func (s *Server) AdminAddr() net.Addr {
	if s.adminListener == nil {
		return nil
	}
	return s.adminListener.Addr()
}

// URL is the local address printed in the banner.
func (s *Server) URL() string {
	port := ""
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(tcp.Port)
	}
	return "http://localhost:" + port
}

// Run binds the listeners and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections on listeners bound by Listen. Cancelling ctx
// stops accepting, drains in-flight requests for up to ShutdownTimeout and
// returns nil.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}

	errCh := make(chan error, 2)

	go func() {
		errCh <- serve(s.httpServer, s.listener)
	}()
	if s.adminServer != nil {
		go func() {
			errCh <- serve(s.adminServer, s.adminListener)
		}()
		s.logger.Info("admin server started", "addr", s.AdminAddr().String())
	}

	s.ready.Store(true)
	s.logger.Info("file server started", "addr", s.Addr().String(), "root", s.cfg.Root)
	fmt.Fprintf(s.cfg.Banner, "Serving %s at %s\n", s.cfg.Root, s.URL())
	fmt.Fprintln(s.cfg.Banner, "Press Ctrl+C to stop")

	var serveErr error
	select {
	case <-ctx.Done():
		fmt.Fprintln(s.cfg.Banner, "\nShutting down...")
		s.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		s.logger.Error("server failed", "error", serveErr)
	}

	s.ready.Store(false)
	if err := s.shutdown(); err != nil {
		return errors.Join(serveErr, err)
	}

	s.logger.Info("server stopped")
	return serveErr
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown file server: %w", err))
	}
	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown admin server: %w", err))
		}
	}
	return errors.Join(errs...)
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
