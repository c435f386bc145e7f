package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koltyakov/wsedge/internal/config"
	"github.com/koltyakov/wsedge/internal/domain"
	"github.com/koltyakov/wsedge/internal/metrics"
	"github.com/koltyakov/wsedge/internal/netutil"
	"github.com/koltyakov/wsedge/internal/session"
	"github.com/koltyakov/wsedge/internal/tunnelproto"
	"github.com/koltyakov/wsedge/internal/web"
)

// handleTunnel serves /{token}: plain requests get the info page, upgrade
// requests get a tunnel session to the resolved destination.
func (s *Server) handleTunnel(w http.ResponseWriter, r *http.Request) {
	if !netutil.IsWebSocketUpgrade(r.Header) {
		s.writeInfoPage(w)
		return
	}

	route := s.baseRoute(r)
	dest := s.resolver.Resolve(r.Context(), chi.URLParam(r, "token"), route.Destination)
	s.accept(w, r, route.WithDestination(dest))
}

// baseRoute builds the per-request routing config. The fallback destination
// is the request host on the default port.
func (s *Server) baseRoute(r *http.Request) domain.RoutingConfig {
	host := netutil.NormalizeHost(r.Host)
	return domain.RoutingConfig{
		Credential:          s.cfg.Credential,
		RequestHost:         host,
		Destination:         domain.Endpoint{Host: host, Port: s.cfg.DefaultPort},
		LandingPageURL:      s.cfg.LandingPageURL,
		SubscriptionPageURL: s.cfg.SubscriptionPageURL,
	}
}

// accept upgrades the request and hands the stream to a supervised session.
// The upgrade response is committed once this returns; session failures are
// only reported, never surfaced to the HTTP layer.
func (s *Server) accept(w http.ResponseWriter, r *http.Request, route domain.RoutingConfig) {
	var (
		respHeader http.Header
		early      []byte
	)
	if s.cfg.EarlyData {
		if v := r.Header.Get(tunnelproto.EarlyDataHeader); v != "" {
			if b, ok := tunnelproto.DecodeEarlyData(v); ok {
				early = b
				respHeader = http.Header{}
				respHeader.Set(tunnelproto.EarlyDataHeader, v)
			}
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sess := session.New(tunnelproto.NewStream(conn, early), route, s.dialer, session.Options{
		DialRequested: s.cfg.UpstreamMode == config.UpstreamModeHandshake,
		Reporter:      s.reporter,
		Logger:        s.log,
	})
	if !s.hub.spawn(sess) {
		_ = conn.Close()
		return
	}
	s.log.Debug("tunnel session accepted",
		"session_id", sess.ID(),
		"remote", r.RemoteAddr,
		"host", route.RequestHost,
		"dest", route.Destination.String(),
		"early_data", len(early),
	)
}

func (s *Server) writeInfoPage(w http.ResponseWriter) {
	metrics.StaticRepliesTotal.Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := web.Render(w, "info", map[string]any{"InfoURL": s.cfg.InfoURL}); err != nil {
		s.log.Warn("render info page", "err", err)
	}
}
