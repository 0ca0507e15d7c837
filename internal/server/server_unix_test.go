//go:build unix

package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInterruptStopsServer(t *testing.T) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	banner := &syncBuffer{}
	srv := New(Config{Addr: "127.0.0.1:0", Banner: banner}, helloHandler(), prometheus.NewRegistry(), discardLogger())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	if status, _ := get(t, "http://"+srv.Addr().String()+"/"); status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send SIGINT: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Serve did not return after SIGINT")
	}
}
