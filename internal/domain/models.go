// Package domain defines the core data types shared across the wsedge
// resolver, session, and server layers.
package domain

import (
	"net"
	"strconv"

	"github.com/google/uuid"
)

// DefaultPort is used for the fallback destination when the routing token
// does not name one.
const DefaultPort uint16 = 443

// Endpoint identifies an outbound destination.
type Endpoint struct {
	Host string
	Port uint16
}

// Address returns the endpoint in host:port form suitable for dialing.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

func (e Endpoint) String() string {
	return e.Address()
}

// IsZero reports whether the endpoint has no host.
func (e Endpoint) IsZero() bool {
	return e.Host == ""
}

// RoutingConfig is built once per inbound request. Only Destination may be
// replaced, and only through [RoutingConfig.WithDestination] before the
// session starts.
type RoutingConfig struct {
	Credential          uuid.UUID
	RequestHost         string
	Destination         Endpoint
	LandingPageURL      string
	SubscriptionPageURL string
}

// WithDestination returns a copy of c with the resolved destination overlay.
func (c RoutingConfig) WithDestination(e Endpoint) RoutingConfig {
	c.Destination = e
	return c
}
