package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/koltyakov/wsedge/internal/domain"
	"github.com/koltyakov/wsedge/internal/log"
	"github.com/koltyakov/wsedge/internal/tunnelproto"
	"github.com/koltyakov/wsedge/internal/upstream"
)

var testCredential = uuid.MustParse("0f6f2c84-5e1b-4a57-9b0d-3c9a1e2f7b64")

type pipeEnd struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeEnd) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeEnd) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeEnd) CloseWrite() error           { return p.w.Close() }
func (p *pipeEnd) Close() error {
	_ = p.w.Close()
	return p.r.Close()
}

func duplex() (*pipeEnd, *pipeEnd) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &pipeEnd{r: ar, w: aw}, &pipeEnd{r: br, w: bw}
}

type recordingDialer struct {
	mu    sync.Mutex
	calls []domain.Endpoint
	next  Dialer
	err   error
}

func (d *recordingDialer) Dial(ctx context.Context, ep domain.Endpoint) (net.Conn, error) {
	d.mu.Lock()
	d.calls = append(d.calls, ep)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.next.Dial(ctx, ep)
}

func (d *recordingDialer) Calls() []domain.Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Endpoint(nil), d.calls...)
}

type chanReporter chan Report

func (c chanReporter) Report(r Report) { c <- r }

func handshake(t *testing.T, cred uuid.UUID, dest domain.Endpoint) []byte {
	t.Helper()

	b, err := tunnelproto.AppendHandshake(nil, tunnelproto.Handshake{
		Credential: cred,
		Port:       dest.Port,
		Address:    dest.Host,
	})
	if err != nil {
		t.Fatalf("AppendHandshake: %v", err)
	}
	return b
}

// echoServer echoes each connection and half-closes once the peer does.
func echoServer(t *testing.T) domain.Endpoint {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_, _ = io.Copy(c, c)
				_ = c.(*net.TCPConn).CloseWrite()
			}()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return domain.Endpoint{Host: addr.IP.String(), Port: uint16(addr.Port)}
}

func newTestSession(client *pipeEnd, route domain.RoutingConfig, d Dialer, dialRequested bool) (*Session, chanReporter) {
	reports := make(chanReporter, 1)
	s := New(client, route, d, Options{
		DialRequested: dialRequested,
		Reporter:      reports,
		Logger:        log.Discard(),
	})
	return s, reports
}

func TestSessionRelaysToRoutedDestination(t *testing.T) {
	t.Parallel()

	echo := echoServer(t)
	base, err := upstream.New(upstream.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	dialer := &recordingDialer{next: base}
	client, sessionSide := duplex()
	route := domain.RoutingConfig{Credential: testCredential, RequestHost: "edge.example", Destination: echo}
	s, reports := newTestSession(sessionSide, route, dialer, false)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	// the handshake asks for somewhere else; route mode ignores it
	msg := append(handshake(t, testCredential, domain.Endpoint{Host: "example.invalid", Port: 1}), "hello"...)
	go func() {
		_, _ = client.Write(msg)
		_, _ = client.Write([]byte("more"))
		_ = client.CloseWrite()
	}()

	got, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if want := "\x00\x00hellomore"; string(got) != want {
		t.Fatalf("client got %q, want %q", got, want)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	rep := <-reports
	if rep.State != Closed || rep.Err != nil {
		t.Fatalf("report state=%s err=%v", rep.State, rep.Err)
	}
	if rep.BytesUp != 9 || rep.BytesDown != 9 {
		t.Fatalf("bytes up=%d down=%d", rep.BytesUp, rep.BytesDown)
	}
	if calls := dialer.Calls(); len(calls) != 1 || calls[0] != echo {
		t.Fatalf("dial calls = %v, want [%v]", calls, echo)
	}
	if rep.Requested.Host != "example.invalid" || rep.Dialed != echo {
		t.Fatalf("requested=%v dialed=%v", rep.Requested, rep.Dialed)
	}
	if s.State() != Closed {
		t.Fatalf("state = %s", s.State())
	}
}

func TestSessionDialsRequestedDestination(t *testing.T) {
	t.Parallel()

	echo := echoServer(t)
	base, err := upstream.New(upstream.Options{})
	if err != nil {
		t.Fatal(err)
	}
	dialer := &recordingDialer{next: base}
	client, sessionSide := duplex()
	route := domain.RoutingConfig{Credential: testCredential, Destination: domain.Endpoint{Host: "fallback.invalid", Port: 443}}
	s, _ := newTestSession(sessionSide, route, dialer, true)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	msg := handshake(t, testCredential, echo)
	go func() {
		_, _ = client.Write(msg)
		_ = client.CloseWrite()
	}()

	if _, err := io.ReadAll(client); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls := dialer.Calls(); len(calls) != 1 || calls[0] != echo {
		t.Fatalf("dial calls = %v, want [%v]", calls, echo)
	}
}

func TestSessionFailures(t *testing.T) {
	t.Parallel()

	other := uuid.MustParse("0f6f2c84-5e1b-4a57-9b0d-3c9a1e2f7b65")
	dest := domain.Endpoint{Host: "10.1.2.3", Port: 443}
	valid := handshake(t, testCredential, dest)

	tests := []struct {
		name      string
		input     []byte
		dialErr   error
		wantErr   error
		wantIn    State
		wantDials int
	}{
		{
			name:    "credential mismatch",
			input:   handshake(t, other, dest),
			wantErr: domain.ErrAuth,
			wantIn:  Authenticating,
		},
		{
			name:    "truncated handshake",
			input:   valid[:len(valid)-2],
			wantErr: domain.ErrProtocol,
			wantIn:  AwaitingHandshake,
		},
		{
			name:    "empty stream",
			input:   nil,
			wantErr: domain.ErrProtocol,
			wantIn:  AwaitingHandshake,
		},
		{
			name:    "unknown address type",
			input:   append(append([]byte(nil), valid[:21]...), 7, 1, 2, 3, 4),
			wantErr: domain.ErrProtocol,
			wantIn:  AwaitingHandshake,
		},
		{
			name:      "upstream unreachable",
			input:     valid,
			dialErr:   errors.New("connection refused"),
			wantErr:   domain.ErrUpstream,
			wantIn:    Connecting,
			wantDials: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dialer := &recordingDialer{err: tt.dialErr}
			if tt.dialErr == nil {
				dialer.err = errors.New("unexpected dial")
			}
			client, sessionSide := duplex()
			route := domain.RoutingConfig{Credential: testCredential, Destination: dest}
			s, reports := newTestSession(sessionSide, route, dialer, false)

			errCh := make(chan error, 1)
			go func() { errCh <- s.Run(context.Background()) }()
			go func() {
				if len(tt.input) > 0 {
					_, _ = client.Write(tt.input)
				}
				_ = client.CloseWrite()
			}()

			got, _ := io.ReadAll(client)
			if len(got) != 0 {
				t.Fatalf("client received %q, want nothing", got)
			}

			err := <-errCh
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var se *domain.SessionError
			if !errors.As(err, &se) || se.SessionID != s.ID() || se.State != tt.wantIn.String() {
				t.Fatalf("session error = %#v", se)
			}
			if n := len(dialer.Calls()); n != tt.wantDials {
				t.Fatalf("dial calls = %d, want %d", n, tt.wantDials)
			}

			rep := <-reports
			if rep.State != Failed || rep.FailedIn != tt.wantIn {
				t.Fatalf("report state=%s failedIn=%s", rep.State, rep.FailedIn)
			}
		})
	}
}

func TestSessionCancelDuringHandshake(t *testing.T) {
	t.Parallel()

	client, sessionSide := duplex()
	defer client.Close()
	dialer := &recordingDialer{err: errors.New("unexpected dial")}
	s, reports := newTestSession(sessionSide, domain.RoutingConfig{Credential: testCredential}, dialer, false)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, domain.ErrProtocol) {
			t.Fatalf("err = %v, want ErrProtocol", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
	if rep := <-reports; rep.State != Failed {
		t.Fatalf("state = %s", rep.State)
	}
	if len(dialer.Calls()) != 0 {
		t.Fatal("dial attempted after cancel")
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for st, want := range map[State]string{
		AwaitingHandshake: "awaiting_handshake",
		Relaying:          "relaying",
		Failed:            "failed",
		State(42):         "unknown",
	} {
		if got := st.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", int(st), got, want)
		}
	}
	if !Closed.Terminal() || Relaying.Terminal() {
		t.Fatal("Terminal mismatch")
	}
}
