package server

import "net/http"

// handleMkcol rejects MKCOL and MKCALENDAR. Collections mirror the
// configured source files; clients cannot create new ones over DAV.
func (h *Handler) handleMkcol(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug().Str("path", r.URL.Path).Msg("collection creation rejected")
	http.Error(w, "Forbidden: collections are defined by the configured sources", http.StatusForbidden)
}
