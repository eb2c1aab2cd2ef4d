package gateway

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"ShareDesk/internal/detail"
	"ShareDesk/internal/listing"
	"ShareDesk/internal/remote"
)

// pathVar returns a decoded route variable.
func pathVar(r *http.Request, name string) string {
	raw := mux.Vars(r)[name]
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// handleShares returns the listing, filtered by ?q= when given.
func (s *Server) handleShares(w http.ResponseWriter, r *http.Request) error {
	snap := s.listing.Snapshot()
	if snap.Err != nil && len(snap.Entries) == 0 {
		return newError(http.StatusBadGateway, "Failed to load shares", snap.Err)
	}
	entries := listing.Filter(snap.Entries, r.URL.Query().Get("q"))
	if snap.Err != nil {
		w.Header().Set("Warning", `110 - "Response is Stale"`)
	}
	writeJSON(w, http.StatusOK, entries)
	return nil
}

// handleShareDetail returns one company's detail record. When the data
// service fails but an older record is cached, that record is served and
// marked stale.
func (s *Server) handleShareDetail(w http.ResponseWriter, r *http.Request) error {
	// The route variable is still encoded; the fetcher decodes it.
	res, err := s.detail.Get(r.Context(), mux.Vars(r)["shareName"])
	if err != nil {
		switch {
		case errors.Is(err, remote.ErrNotFound):
			return notFound(detail.MsgNotFound)
		case errors.Is(err, detail.ErrEmptyName):
			return badRequest(detail.MsgEmptyName, nil)
		case res.Record == nil:
			return newError(http.StatusBadGateway, detail.MsgUnavailable, err)
		}
		w.Header().Set("Warning", `110 - "Response is Stale"`)
	}
	w.Header().Set("X-Cache", string(res.Origin))
	writeJSON(w, http.StatusOK, res.Record)
	return nil
}
