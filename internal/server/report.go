package server

import (
	"errors"
	"log/slog"

	"github.com/koltyakov/wsedge/internal/domain"
	"github.com/koltyakov/wsedge/internal/metrics"
	"github.com/koltyakov/wsedge/internal/session"
)

// logReporter records session outcomes as log lines and metrics.
type logReporter struct {
	log  *slog.Logger
	next session.Reporter
}

func (r *logReporter) Report(rep session.Report) {
	outcome := outcomeLabel(rep)
	metrics.SessionsTotal.WithLabelValues(outcome).Inc()
	metrics.BytesRelayedTotal.WithLabelValues("up").Add(float64(rep.BytesUp))
	metrics.BytesRelayedTotal.WithLabelValues("down").Add(float64(rep.BytesDown))
	metrics.SessionDuration.Observe(rep.Duration.Seconds())

	attrs := []any{
		"session_id", rep.ID,
		"host", rep.RequestHost,
		"outcome", outcome,
		"bytes_up", rep.BytesUp,
		"bytes_down", rep.BytesDown,
		"duration", rep.Duration.String(),
	}
	if !rep.Dialed.IsZero() {
		attrs = append(attrs, "dest", rep.Dialed.String())
	}
	if rep.Err != nil {
		attrs = append(attrs, "state", rep.State.String(), "err", rep.Err)
	}
	if rep.State == session.Failed {
		r.log.Warn("tunnel session failed", attrs...)
	} else {
		r.log.Info("tunnel session closed", attrs...)
	}

	if r.next != nil {
		r.next.Report(rep)
	}
}

func outcomeLabel(rep session.Report) string {
	switch {
	case rep.Err == nil:
		return "closed"
	case errors.Is(rep.Err, domain.ErrAuth):
		return "auth_error"
	case errors.Is(rep.Err, domain.ErrProtocol):
		return "protocol_error"
	case errors.Is(rep.Err, domain.ErrUpstream):
		return "upstream_error"
	case errors.Is(rep.Err, domain.ErrRelay):
		return "relay_error"
	}
	return "aborted"
}
