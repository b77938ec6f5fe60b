package infra

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPServerWriteTimeoutCoversPublishRelay(t *testing.T) {
	cfg := &Config{Port: "0", HTTPWriteTimeout: 30 * time.Second, WorkflowPublishTimeout: 120 * time.Second}
	srv := NewHTTPServer(cfg, http.NotFoundHandler(), zerolog.Nop())
	if got := srv.server.WriteTimeout; got != 125*time.Second {
		t.Fatalf("WriteTimeout = %s, want 125s", got)
	}
	if srv.Addr() != ":0" {
		t.Fatalf("Addr = %q", srv.Addr())
	}
}

func TestHTTPServerShutdownBeforeStart(t *testing.T) {
	srv := NewHTTPServer(&Config{Port: "0"}, http.NotFoundHandler(), zerolog.Nop())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start after shutdown should report a clean close, got %v", err)
	}
}
