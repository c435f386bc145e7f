package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koltyakov/wsedge/internal/domain"
	"github.com/koltyakov/wsedge/internal/store/sqlite"
)

func newDirectoryServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolveAliasReturnsFirstCandidate(t *testing.T) {
	t.Parallel()

	srv, _ := newDirectoryServer(t, http.StatusOK, `{"xy":["203.0.113.5:443","203.0.113.6:8443"],"ab":["198.51.100.1:80"]}`)
	client := NewClient(&HTTPSource{URL: srv.URL, Client: srv.Client()}, "http")

	got, err := client.ResolveAlias(context.Background(), "xy")
	if err != nil {
		t.Fatal(err)
	}
	if got != "203.0.113.5-443" {
		t.Fatalf("got %q, want %q", got, "203.0.113.5-443")
	}
}

func TestResolveAliasFetchesEveryTime(t *testing.T) {
	t.Parallel()

	srv, hits := newDirectoryServer(t, http.StatusOK, `{"xy":["203.0.113.5:443"]}`)
	client := NewClient(&HTTPSource{URL: srv.URL, Client: srv.Client()}, "http")

	for range 3 {
		if _, err := client.ResolveAlias(context.Background(), "xy"); err != nil {
			t.Fatal(err)
		}
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected one fetch per lookup (3), got %d", got)
	}
}

func TestResolveAliasFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		alias   string
		wantErr error
	}{
		{name: "missing alias", status: http.StatusOK, body: `{"ab":["198.51.100.1:80"]}`, alias: "xy", wantErr: domain.ErrAliasNotFound},
		{name: "empty candidate list", status: http.StatusOK, body: `{"xy":[]}`, alias: "xy", wantErr: domain.ErrAliasNotFound},
		{name: "non success status", status: http.StatusNotFound, body: `not found`, alias: "xy", wantErr: ErrDirectoryUnavailable},
		{name: "server error", status: http.StatusBadGateway, body: ``, alias: "xy", wantErr: ErrDirectoryUnavailable},
		{name: "malformed document", status: http.StatusOK, body: `{"xy":`, alias: "xy"},
		{name: "wrong shape", status: http.StatusOK, body: `{"xy":"203.0.113.5:443"}`, alias: "xy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newDirectoryServer(t, tt.status, tt.body)
			client := NewClient(&HTTPSource{URL: srv.URL, Client: srv.Client()}, "http")

			_, err := client.ResolveAlias(context.Background(), tt.alias)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrDirectory) {
				t.Fatalf("expected ErrDirectory, got %v", err)
			}
			var de *DirectoryError
			if !errors.As(err, &de) || de.Alias != tt.alias {
				t.Fatalf("expected DirectoryError for %q, got %#v", tt.alias, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolveAliasTransportError(t *testing.T) {
	t.Parallel()

	srv, _ := newDirectoryServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	client := NewClient(&HTTPSource{URL: url}, "http")
	if _, err := client.ResolveAlias(context.Background(), "xy"); !errors.Is(err, domain.ErrDirectory) {
		t.Fatalf("expected ErrDirectory on transport failure, got %v", err)
	}
}

func TestCandidateToken(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"203.0.113.5:443":    "203.0.113.5-443",
		" example.com:8443 ": "example.com-8443",
		"[2001:db8::1]:443":  "[2001:db8::1]-443",
		"no-port-here":       "no-port-here",
		"host.example.com:":  "host.example.com-",
	}
	for in, want := range tests {
		if got := CandidateToken(in); got != want {
			t.Fatalf("CandidateToken(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestStoreSourceThroughOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "aliases.db")
	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertAlias(context.Background(), "sg", []string{"203.0.113.10:2053"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	client, closer, err := Open("sqlite://", dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	got, err := client.ResolveAlias(context.Background(), "sg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "203.0.113.10-2053" {
		t.Fatalf("got %q", got)
	}
	if _, err := client.ResolveAlias(context.Background(), "zz"); !errors.Is(err, domain.ErrAliasNotFound) {
		t.Fatalf("expected ErrAliasNotFound, got %v", err)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	if _, _, err := Open("ftp://example.com/aliases.json", "", nil); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}

func TestRedisSourceUnreachable(t *testing.T) {
	t.Parallel()

	src, err := NewRedisSource("redis://127.0.0.1:1/0")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client := NewClient(src, "redis")
	_, err = client.ResolveAlias(ctx, "xy")
	if !errors.Is(err, domain.ErrDirectory) {
		t.Fatalf("expected ErrDirectory, got %v", err)
	}
	if errors.Is(err, domain.ErrAliasNotFound) {
		t.Fatalf("transport failure should not look like a missing alias: %v", err)
	}
}

func TestRedisKey(t *testing.T) {
	t.Parallel()

	if got := RedisKey("xy"); got != "wsedge:alias:xy" {
		t.Fatalf("unexpected key %q", got)
	}
	if _, err := NewRedisSource("://bad"); err == nil {
		t.Fatal("expected invalid redis url to fail")
	}
}
