// Package directory resolves two-character routing aliases to a concrete
// host-port token by consulting an external alias directory.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koltyakov/wsedge/internal/domain"
	"github.com/koltyakov/wsedge/internal/metrics"
)

// ErrDirectoryUnavailable is returned when the directory answered with a
// non-success status. Callers treat it the same as a missing alias.
var ErrDirectoryUnavailable = errors.New("directory unavailable")

// Source returns the ordered host:port candidates for an alias. It returns
// [domain.ErrAliasNotFound] when the alias is absent.
type Source interface {
	Lookup(ctx context.Context, alias string) ([]string, error)
}

// DirectoryError reports a failed alias resolution. It matches
// [domain.ErrDirectory] under [errors.Is].
type DirectoryError struct {
	Alias string
	Err   error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory: alias %q: %v", e.Alias, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

func (e *DirectoryError) Is(target error) bool {
	return target == domain.ErrDirectory
}

// Client resolves aliases against a [Source]. Every call performs a fresh
// lookup; nothing is cached between calls.
type Client struct {
	src  Source
	name string
}

// NewClient wraps src. name labels the source in metrics.
func NewClient(src Source, name string) *Client {
	return &Client{src: src, name: name}
}

// Name labels the source kind, e.g. "http".
func (c *Client) Name() string {
	return c.name
}

// ResolveAlias returns the first candidate for code in token form, i.e.
// with the host:port separator rewritten to "-".
func (c *Client) ResolveAlias(ctx context.Context, code string) (string, error) {
	candidates, err := c.src.Lookup(ctx, code)
	if err != nil {
		c.observe(err)
		return "", &DirectoryError{Alias: code, Err: err}
	}
	if len(candidates) == 0 || strings.TrimSpace(candidates[0]) == "" {
		c.observe(domain.ErrAliasNotFound)
		return "", &DirectoryError{Alias: code, Err: domain.ErrAliasNotFound}
	}
	c.observe(nil)
	return CandidateToken(candidates[0]), nil
}

func (c *Client) observe(err error) {
	result := "hit"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAliasNotFound):
		result = "miss"
	case errors.Is(err, ErrDirectoryUnavailable):
		result = "unavailable"
	default:
		result = "error"
	}
	metrics.DirectoryLookupsTotal.WithLabelValues(c.name, result).Inc()
}

// CandidateToken rewrites the last ':' of a host:port candidate to '-' so
// the result uses the routing token encoding.
func CandidateToken(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	idx := strings.LastIndexByte(candidate, ':')
	if idx < 0 {
		return candidate
	}
	return candidate[:idx] + "-" + candidate[idx+1:]
}
