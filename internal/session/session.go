// Package session runs one tunnel: it reads the handshake from the client
// stream, checks the credential, dials upstream and relays until both
// directions end.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koltyakov/wsedge/internal/domain"
	"github.com/koltyakov/wsedge/internal/relay"
	"github.com/koltyakov/wsedge/internal/tunnelproto"
)

// MaxHandshakeBuffer bounds the bytes read while waiting for a complete
// handshake record.
const MaxHandshakeBuffer = 1 << 10

var errSessionClosed = errors.New("session closed")

// Dialer opens the upstream connection.
type Dialer interface {
	Dial(ctx context.Context, ep domain.Endpoint) (net.Conn, error)
}

// Reporter receives the outcome of every session exactly once.
type Reporter interface {
	Report(Report)
}

// Report describes a finished session.
type Report struct {
	ID          string
	RequestHost string

	// Requested is the destination carried in the handshake, zero if the
	// handshake never parsed. Dialed is the endpoint the session connected
	// or tried to connect to.
	Requested domain.Endpoint
	Dialed    domain.Endpoint

	// FailedIn is the phase that failed; meaningful only when State is Failed.
	State    State
	FailedIn State
	Err      error

	BytesUp   int64
	BytesDown int64
	Duration  time.Duration
}

type Options struct {
	// DialRequested makes the session dial the handshake's destination
	// instead of the routed one.
	DialRequested bool
	Reporter      Reporter
	Logger        *slog.Logger
}

type Session struct {
	id     string
	client relay.Stream
	route  domain.RoutingConfig
	dialer Dialer
	opts   Options
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	upstream net.Conn
	closed   bool
}

func New(client relay.Stream, route domain.RoutingConfig, dialer Dialer, opts Options) *Session {
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:     id,
		client: client,
		route:  route,
		dialer: dialer,
		opts:   opts,
		log:    logger.With("session_id", id),
		state:  AwaitingHandshake,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the session to a terminal state. It always closes both
// streams before returning and reports the outcome to the Reporter.
// Cancelling ctx aborts the session.
func (s *Session) Run(ctx context.Context) error {
	started := time.Now()
	rep := Report{ID: s.id, RequestHost: s.route.RequestHost}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	err := s.run(ctx, &rep)
	stop()
	_ = s.Close()

	rep.Duration = time.Since(started)
	rep.Err = err
	s.mu.Lock()
	if err != nil && s.state != Relaying {
		rep.FailedIn = s.state
		s.state = Failed
	} else {
		s.state = Closed
	}
	rep.State = s.state
	s.mu.Unlock()

	if s.opts.Reporter != nil {
		s.opts.Reporter.Report(rep)
	}
	return err
}

func (s *Session) run(ctx context.Context, rep *Report) error {
	hs, rest, err := s.readHandshake()
	if err != nil {
		return s.wrap(AwaitingHandshake, err)
	}
	rep.Requested = hs.Destination()

	s.setState(Authenticating)
	if subtle.ConstantTimeCompare(hs.Credential[:], s.route.Credential[:]) != 1 {
		return s.wrap(Authenticating, domain.ErrAuth)
	}

	s.setState(Connecting)
	dest := s.route.Destination
	if s.opts.DialRequested {
		dest = hs.Destination()
	}
	rep.Dialed = dest
	conn, err := s.dialer.Dial(ctx, dest)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		return s.wrap(Connecting, err)
	}
	if !s.attachUpstream(conn) {
		_ = conn.Close()
		return s.wrap(Connecting, errSessionClosed)
	}

	s.setState(Relaying)
	s.log.Debug("session relaying", "dest", dest.String(), "requested", rep.Requested.String())
	if _, err := s.client.Write(tunnelproto.Reply(hs.Version)); err != nil {
		return s.wrap(Relaying, fmt.Errorf("%w: write reply: %w", domain.ErrRelay, err))
	}
	up := relay.NetConn(conn)
	if len(rest) > 0 {
		n, err := up.Write(rest)
		rep.BytesUp += int64(n)
		if err != nil {
			return s.wrap(Relaying, fmt.Errorf("%w: forward initial payload: %w", domain.ErrRelay, err))
		}
	}

	out := relay.Relay(s.client, up)
	rep.BytesUp += out.AToB
	rep.BytesDown = out.BToA
	if out.Err != nil {
		return s.wrap(Relaying, out.Err)
	}
	return nil
}

// readHandshake returns the parsed record and any bytes that followed it.
func (s *Session) readHandshake() (tunnelproto.Handshake, []byte, error) {
	buf := make([]byte, 0, MaxHandshakeBuffer)
	for {
		n, readErr := s.client.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]

		if len(buf) > 0 {
			hs, consumed, err := tunnelproto.ParseHandshake(buf)
			if err == nil {
				return hs, buf[consumed:], nil
			}
			if !errors.Is(err, tunnelproto.ErrIncomplete) {
				return hs, nil, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return tunnelproto.Handshake{}, nil, fmt.Errorf("%w: stream closed after %d handshake bytes", domain.ErrProtocol, len(buf))
			}
			return tunnelproto.Handshake{}, nil, fmt.Errorf("%w: read handshake: %w", domain.ErrProtocol, readErr)
		}
		if len(buf) == cap(buf) {
			return tunnelproto.Handshake{}, nil, fmt.Errorf("%w: handshake exceeds %d bytes", domain.ErrProtocol, MaxHandshakeBuffer)
		}
	}
}

func (s *Session) attachUpstream(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.upstream = conn
	return true
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug("session state", "state", st.String())
}

func (s *Session) wrap(st State, err error) error {
	return &domain.SessionError{SessionID: s.id, State: st.String(), Err: err}
}

// Close tears down both streams. It is safe to call concurrently with Run
// and more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	upstream := s.upstream
	s.mu.Unlock()

	var errs []error
	if err := s.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if upstream != nil {
		if err := upstream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
