package debughttp

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koltyakov/wsedge/internal/log"
	"github.com/koltyakov/wsedge/internal/metrics"
)

func TestMuxRoutes(t *testing.T) {
	t.Parallel()

	metrics.StaticRepliesTotal.Add(0)

	tests := []struct {
		path string
		want string
	}{
		{path: "/debug/pprof/", want: "profile?debug=1"},
		{path: "/healthz", want: "ok"},
		{path: "/metrics", want: "wsedge_static_replies_total"},
	}

	mux := newMux()
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), tt.want) {
			t.Fatalf("%s: expected body to contain %q", tt.path, tt.want)
		}
	}
}

func TestStartServerDisabledWhenAddrEmpty(t *testing.T) {
	t.Parallel()

	if err := StartServer(context.Background(), "  ", log.Discard()); err != nil {
		t.Fatalf("expected nil for empty addr, got %v", err)
	}
}

func TestStartServerFailsFastOnBoundAddr(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if err := StartServer(context.Background(), ln.Addr().String(), log.Discard()); err == nil {
		t.Fatal("expected bind error for address in use")
	}
}

func TestStartServerServesHealthz(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := StartServer(ctx, addr, log.Discard()); err != nil {
		t.Fatalf("StartServer: %v", err)
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("healthz body = %q", body)
	}
}
