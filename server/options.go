package server

import "net/http"

func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request, _ *RequestContext) {
	w.Header().Set("DAV", "1, 3, calendar-access, addressbook")
	w.Header().Set("Allow", "OPTIONS, GET, HEAD, PUT, DELETE, PROPFIND, REPORT")
	w.WriteHeader(http.StatusOK)
}
