// Package upstream opens the outbound TCP connections that sessions relay
// to, optionally through a SOCKS5 proxy.
package upstream

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/koltyakov/wsedge/internal/domain"
)

// ContextDialer is the dialing surface shared by net.Dialer and proxy dialers.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type Options struct {
	// Timeout bounds a single dial attempt. Zero means no limit.
	Timeout time.Duration
	// ProxyURL routes dials through a socks5:// or socks5h:// proxy when set.
	ProxyURL string
}

type Dialer struct {
	base    ContextDialer
	timeout time.Duration
	via     string
}

func New(opts Options) (*Dialer, error) {
	nd := &net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}
	d := &Dialer{base: nd, timeout: opts.Timeout, via: "direct"}
	if opts.ProxyURL == "" {
		return d, nil
	}

	u, err := url.Parse(opts.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream proxy: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("unsupported upstream proxy scheme %q", u.Scheme)
	}
	pd, err := proxy.FromURL(u, nd)
	if err != nil {
		return nil, fmt.Errorf("upstream proxy: %w", err)
	}
	cd, ok := pd.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("upstream proxy %q does not support context dialing", u.Redacted())
	}
	d.base = cd
	d.via = u.Scheme + "://" + u.Host
	return d, nil
}

// Dial makes one connection attempt to ep. Failures wrap domain.ErrUpstream.
func (d *Dialer) Dial(ctx context.Context, ep domain.Endpoint) (net.Conn, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	conn, err := d.base.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s via %s: %w", domain.ErrUpstream, ep, d.via, err)
	}
	return conn, nil
}

// Via names the dial path for logs.
func (d *Dialer) Via() string {
	return d.via
}
