// Package target turns a routing token into a destination endpoint.
//
// A token is either a direct "<host>-<port>" encoding or a two-character
// alias looked up in the alias directory. Anything that does not resolve
// cleanly yields the caller's fallback endpoint.
package target

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/koltyakov/wsedge/internal/domain"
)

var directTokenPattern = regexp.MustCompile(`^.+-\d+$`)

const aliasLength = 2

// AliasResolver maps an alias to a direct token.
type AliasResolver interface {
	ResolveAlias(ctx context.Context, code string) (string, error)
}

type Resolver struct {
	aliases AliasResolver
	log     *slog.Logger
}

// New returns a resolver. aliases may be nil, in which case alias tokens
// always resolve to the fallback.
func New(aliases AliasResolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{aliases: aliases, log: logger}
}

// Resolve returns the endpoint named by token, or fallback when token is
// neither a resolvable alias nor a valid direct encoding.
func (r *Resolver) Resolve(ctx context.Context, token string, fallback domain.Endpoint) domain.Endpoint {
	if len(token) == aliasLength {
		if r.aliases == nil {
			return fallback
		}
		direct, err := r.aliases.ResolveAlias(ctx, token)
		if err != nil {
			r.log.Debug("alias unresolved, using fallback", "alias", token, "fallback", fallback.String(), "err", err)
			return fallback
		}
		token = direct
	}

	ep, ok := ParseDirect(token)
	if !ok {
		return fallback
	}
	return ep
}

// ParseDirect parses a "<host>-<port>" token, splitting on the last '-'.
func ParseDirect(token string) (domain.Endpoint, bool) {
	if !directTokenPattern.MatchString(token) {
		return domain.Endpoint{}, false
	}
	idx := strings.LastIndexByte(token, '-')
	host, portPart := token[:idx], token[idx+1:]
	port, err := strconv.ParseUint(portPart, 10, 16)
	if err != nil {
		return domain.Endpoint{}, false
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return domain.Endpoint{}, false
	}
	return domain.Endpoint{Host: host, Port: uint16(port)}, true
}
