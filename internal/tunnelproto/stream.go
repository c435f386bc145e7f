package tunnelproto

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteTimeout = 5 * time.Second

// Stream presents a WebSocket connection as a full-duplex byte stream.
// Incoming data messages are concatenated; every Write is sent as one binary
// message. Read and Write may each be used by one goroutine at a time.
type Stream struct {
	conn   *websocket.Conn
	reader io.Reader
	prefix []byte
}

// NewStream wraps conn. prefix, if non-empty, is returned by Read before any
// message data.
//
// The peer's close frame is not echoed automatically: a close received
// while we still have data to send ends only the read side, and our close
// frame is sent by [Stream.CloseWrite].
func NewStream(conn *websocket.Conn, prefix []byte) *Stream {
	conn.SetCloseHandler(func(int, string) error { return nil })
	return &Stream{conn: conn, prefix: prefix}
}

func (s *Stream) Read(p []byte) (int, error) {
	if len(s.prefix) > 0 {
		n := copy(p, s.prefix)
		s.prefix = s.prefix[n:]
		return n, nil
	}
	for {
		if s.reader == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, normalizeReadErr(err)
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if errors.Is(err, io.EOF) {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *Stream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CloseWrite sends a normal close frame. Reads continue until the peer's
// close frame arrives.
func (s *Stream) CloseWrite() error {
	err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteTimeout),
	)
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (s *Stream) Close() error {
	return s.conn.Close()
}

func normalizeReadErr(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return io.EOF
	}
	return err
}
