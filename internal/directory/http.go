package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/koltyakov/wsedge/internal/domain"
)

const maxDocumentBytes = 1 << 20

// HTTPSource fetches the whole alias document (a JSON object mapping alias
// to a list of host:port strings) on every lookup.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Lookup(ctx context.Context, alias string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentBytes))
		return nil, fmt.Errorf("%w: status %d", ErrDirectoryUnavailable, resp.StatusCode)
	}

	var doc map[string][]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode directory document: %w", err)
	}
	candidates, ok := doc[alias]
	if !ok {
		return nil, domain.ErrAliasNotFound
	}
	return candidates, nil
}
