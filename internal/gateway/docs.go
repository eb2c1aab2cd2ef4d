package gateway

import (
	"net/http"
	"time"
)

type healthLive struct {
	Transport string `json:"transport"`
	Connected bool   `json:"connected"`
}

type healthListing struct {
	Entries  int        `json:"entries"`
	LoadedAt *time.Time `json:"loadedAt,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type health struct {
	Status       string        `json:"status"`
	Version      string        `json:"version,omitempty"`
	Uptime       string        `json:"uptime"`
	Timestamp    string        `json:"timestamp"`
	Listing      healthListing `json:"listing"`
	CacheEntries int           `json:"cacheEntries"`
	Live         *healthLive   `json:"live,omitempty"`
}

// handleHealth reports "ok", or "degraded" when the listing could not be
// loaded or the live feed is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	h := health{
		Status:    "ok",
		Version:   s.opts.Version,
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.listing != nil {
		snap := s.listing.Snapshot()
		h.Listing.Entries = len(snap.Entries)
		if !snap.LoadedAt.IsZero() {
			at := snap.LoadedAt
			h.Listing.LoadedAt = &at
		}
		if snap.Err != nil {
			h.Listing.Error = snap.Err.Error()
			h.Status = "degraded"
		}
	}
	if s.detail != nil {
		h.CacheEntries = s.detail.Cache().Len()
	}
	if s.live != nil {
		h.Live = &healthLive{Transport: s.live.Name(), Connected: s.live.Connected()}
		if !h.Live.Connected {
			h.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, h)
	return nil
}

type endpointDoc struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpointDocs = []endpointDoc{
	{"GET", "/api/shares", "Share listing with latest price and shareholding. ?q= filters by name, symbol or logo."},
	{"GET", "/api/shares/live", "Websocket: listing pages pushed on every price change. Send {type:search,query} or {type:toggle}."},
	{"GET", "/api/shares-detail/{shareName}", "Company detail with sorted price and shareholding history. Cached for 60s."},
	{"GET", "/api/shares-detail/{shareName}/live", "Websocket: detail view refreshed every 60s. Send {type:open,name} to switch company."},
	{"GET", "/api/blog-posts", "Published blog posts, newest first."},
	{"GET", "/api/blog-posts/{slug}", "One blog post."},
	{"GET", "/api/financial-documents/{companyId}", "Uploaded financial statements grouped by type."},
	{"GET", "/api/financial-documents/{companyId}/{statementType}/download", "Signed download link for the newest statement, valid for one hour."},
	{"POST", "/api/contact/submit", "Callback request. Requires name and phone."},
	{"POST", "/api/contact-form/submit", "Contact message. Requires name, email and message."},
	{"POST", "/api/partner", "Partner enquiry. Requires name, email and phone."},
	{"GET", "/api/health", "Service health."},
	{"GET", "/api/docs", "This list."},
	{"GET", "/metrics", "Prometheus metrics."},
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "ShareDesk API",
		"version":   s.opts.Version,
		"rateLimit": map[string]any{"requests": s.opts.RateLimit, "window": s.opts.RateWindow.String()},
		"endpoints": endpointDocs,
	})
	return nil
}
