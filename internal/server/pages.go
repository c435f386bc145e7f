package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/koltyakov/wsedge/internal/netutil"
	"github.com/koltyakov/wsedge/internal/web"
)

const maxPageBytes = 8 << 20

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.passthrough(w, r, s.cfg.LandingPageURL)
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	s.passthrough(w, r, s.cfg.SubscriptionPageURL)
}

// passthrough fetches a remote document and returns it as HTML with the
// remote status replaced by 200. Transport failures become 502.
func (s *Server) passthrough(w http.ResponseWriter, r *http.Request, pageURL string) {
	if pageURL == "" {
		http.NotFound(w, r)
		return
	}

	resp, err := s.fetchPage(r, pageURL)
	if err != nil {
		s.log.Warn("page fetch failed", "url", pageURL, "err", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	h := w.Header()
	for key, values := range resp.Header {
		switch key {
		case "Content-Length", "Content-Type", "Set-Cookie":
			continue
		}
		h[key] = values
	}
	netutil.RemoveHopByHopHeaders(h)
	h.Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxPageBytes)); err != nil {
		s.log.Debug("page copy interrupted", "url", pageURL, "err", err)
	}
}

func (s *Server) fetchPage(r *http.Request, pageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.pages.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := map[string]any{
		"Host":       netutil.NormalizeHost(r.Host),
		"PathPrefix": s.cfg.PathPrefix,
	}
	if err := web.Render(w, "link", data); err != nil {
		s.log.Warn("render link page", "err", err)
	}
}
