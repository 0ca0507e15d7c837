package httpx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestWithRequestID(t *testing.T) {
	var seen string
	handler := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	t.Run("generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		got := rr.Header().Get(RequestIDHeader)
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("%s = %q, want a uuid: %v", RequestIDHeader, got, err)
		}
		if seen != got {
			t.Fatalf("handler saw %q, response carried %q", seen, got)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get(RequestIDHeader); got != "req-42" {
			t.Fatalf("%s = %q, want %q", RequestIDHeader, got, "req-42")
		}
		if seen != "req-42" {
			t.Fatalf("handler saw %q, want %q", seen, "req-42")
		}
	})
}

func TestWithLogging(t *testing.T) {
	tests := []struct {
		name      string
		level     slog.Level
		wantEntry bool
	}{
		{name: "debug level logs requests", level: slog.LevelDebug, wantEntry: true},
		{name: "info level stays quiet", level: slog.LevelInfo, wantEntry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: tt.level}))
			handler := WithLogging(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing.js", nil))

			if !tt.wantEntry {
				if buf.Len() != 0 {
					t.Fatalf("unexpected log output %q", buf.String())
				}
				return
			}

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decode log entry %q: %v", buf.String(), err)
			}
			if entry["path"] != "/missing.js" {
				t.Fatalf("path = %v, want /missing.js", entry["path"])
			}
			if entry["status"] != float64(http.StatusNotFound) {
				t.Fatalf("status = %v, want %d", entry["status"], http.StatusNotFound)
			}
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewStatusRecorder(rr)

	if NewStatusRecorder(rec) != rec {
		t.Fatalf("NewStatusRecorder did not reuse an existing recorder")
	}

	rec.WriteHeader(http.StatusTeapot)
	_, _ = rec.Write([]byte("short"))
	if _, err := rec.ReadFrom(strings.NewReader(" and stout")); err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}

	if rec.Status() != http.StatusTeapot {
		t.Fatalf("Status() = %d, want %d", rec.Status(), http.StatusTeapot)
	}
	if rec.BytesWritten() != int64(len("short and stout")) {
		t.Fatalf("BytesWritten() = %d, want %d", rec.BytesWritten(), len("short and stout"))
	}
	if rr.Body.String() != "short and stout" {
		t.Fatalf("body = %q, want %q", rr.Body.String(), "short and stout")
	}
}
