package server

import (
	"context"
	"sync"

	"github.com/koltyakov/wsedge/internal/metrics"
	"github.com/koltyakov/wsedge/internal/session"
)

// hub supervises running tunnel sessions. Sessions run on the hub's context
// rather than the request context, which ends once the handler returns.
type hub struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session.Session
	closing  bool
}

func newHub() *hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &hub{
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[string]*session.Session{},
	}
}

// spawn runs sess in its own goroutine. It returns false, without running
// the session, once the hub is closing.
func (h *hub) spawn(sess *session.Session) bool {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return false
	}
	h.sessions[sess.ID()] = sess
	h.wg.Add(1)
	h.mu.Unlock()

	metrics.ActiveSessions.Inc()
	go func() {
		defer h.wg.Done()
		defer metrics.ActiveSessions.Dec()

		// outcome is delivered through the session's Reporter
		_ = sess.Run(h.ctx)

		h.mu.Lock()
		delete(h.sessions, sess.ID())
		h.mu.Unlock()
	}()
	return true
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// closeAll stops accepting sessions and aborts the running ones.
func (h *hub) closeAll() {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.cancel()
}
