// Package relay copies bytes between two full-duplex streams until both
// directions have finished.
package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/koltyakov/wsedge/internal/domain"
)

const bufferSize = 32 << 10

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// Stream is one side of a relay. CloseWrite signals end of data to the
// peer while leaving the read side open.
type Stream interface {
	io.Reader
	io.Writer
	CloseWrite() error
	Close() error
}

// Outcome reports what a relay moved and how it ended.
type Outcome struct {
	AToB int64
	BToA int64
	// Err joins the per-direction failures; nil when both sides ended with EOF.
	Err error
}

// Relay forwards a to b and b to a concurrently. When one source reaches
// EOF or fails, the matching destination is half-closed and the opposite
// direction keeps running. Relay returns after both directions end. It does
// not Close either stream.
func Relay(a, b Stream) Outcome {
	var (
		wg         sync.WaitGroup
		out        Outcome
		aErr, bErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.AToB, aErr = pipe(b, a, "a->b")
	}()
	go func() {
		defer wg.Done()
		out.BToA, bErr = pipe(a, b, "b->a")
	}()
	wg.Wait()

	out.Err = errors.Join(aErr, bErr)
	return out
}

func pipe(dst, src Stream, dir string) (int64, error) {
	bufp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufp)

	n, err := io.CopyBuffer(dst, src, *bufp)
	_ = dst.CloseWrite()
	if err != nil {
		return n, fmt.Errorf("%w: %s: %w", domain.ErrRelay, dir, err)
	}
	return n, nil
}

type closeWriter interface {
	CloseWrite() error
}

type netConn struct {
	net.Conn
}

// CloseWrite falls back to a full Close for conns without half-close.
func (c netConn) CloseWrite() error {
	if cw, ok := c.Conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}

// NetConn adapts c to a Stream. Conns that already implement CloseWrite,
// such as *net.TCPConn, are returned as is.
func NetConn(c net.Conn) Stream {
	if s, ok := c.(Stream); ok {
		return s
	}
	return netConn{c}
}
