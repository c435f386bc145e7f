package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/koltyakov/wsedge/internal/store/sqlite"
)

// AliasStore is the subset of the sqlite store used as a directory source.
type AliasStore interface {
	LookupAlias(ctx context.Context, code string) ([]string, error)
}

// StoreSource serves aliases from the local alias table.
type StoreSource struct {
	Store AliasStore
}

func (s *StoreSource) Lookup(ctx context.Context, alias string) ([]string, error) {
	return s.Store.LookupAlias(ctx, alias)
}

// Open builds a [Client] for rawURL. http(s) URLs fetch a remote JSON
// document, redis(s) URLs read Redis lists, and sqlite:// opens the alias
// table at the URL path (or dbPath when the path is empty). The returned
// closer releases whatever the source holds open.
func Open(rawURL, dbPath string, httpClient *http.Client) (*Client, io.Closer, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, nil, fmt.Errorf("parse directory url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewClient(&HTTPSource{URL: u.String(), Client: httpClient}, "http"), nopCloser{}, nil
	case "redis", "rediss":
		src, err := NewRedisSource(u.String())
		if err != nil {
			return nil, nil, fmt.Errorf("open redis directory: %w", err)
		}
		return NewClient(src, "redis"), src, nil
	case "sqlite":
		path := u.Opaque + u.Host + u.Path
		if path == "" {
			path = dbPath
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite directory: %w", err)
		}
		return NewClient(&StoreSource{Store: store}, "sqlite"), store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported directory scheme %q", u.Scheme)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
