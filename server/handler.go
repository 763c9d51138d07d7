// Package server implements the CalDAV/CardDAV HTTP handler over the
// adapter registry.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"remdav/internal/log"
	"remdav/internal/metrics"
	"remdav/server/auth"
	"remdav/storage"
)

// depthInfinity stands in for the Depth: infinity header value.
const depthInfinity = 1 << 16

// RequestContext holds the parsed state of one DAV request.
type RequestContext struct {
	Resource Resource
	AuthUser string
	Depth    int
}

// Handler serves the DAV tree under Prefix.
type Handler struct {
	Prefix   string
	Realm    string
	Registry *storage.Registry
	// MaxDepth caps the Depth header; PROPFIND never recurses deeper.
	MaxDepth int

	logger zerolog.Logger
}

// NewHandler creates a Handler. The prefix is normalized to have
// leading and trailing slashes.
func NewHandler(prefix, realm string, registry *storage.Registry) *Handler {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return &Handler{
		Prefix:   prefix,
		Realm:    realm,
		Registry: registry,
		MaxDepth: 1,
		logger:   log.WithComponent("server"),
	}
}

// ServeHTTP parses the path, enforces the principal boundary and
// routes by DAV method. Authentication has already happened in the
// auth middleware.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromContext(r.Context())
	authUser := ""
	if principal != nil {
		authUser = principal.ID
	}

	relativePath := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(h.Prefix, "/"))

	// MKCOL and MKCALENDAR are refused before path resolution: the
	// target collection usually does not exist yet, so it cannot
	// resolve against the registry.
	if r.Method == "MKCOL" || r.Method == "MKCALENDAR" {
		h.handleMkcol(w, r)
		return
	}

	resource, err := h.parsePath(relativePath)
	if err != nil {
		status := http.StatusNotFound
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrInvalidInput) {
			status = http.StatusInternalServerError
		}
		h.logger.Debug().Err(err).Str("path", relativePath).Msg("path did not resolve")
		http.Error(w, err.Error(), status)
		return
	}

	// Principals only see their own subtree.
	if resource.UserID != "" && authUser != "" && resource.UserID != authUser {
		h.logger.Warn().Str("auth_user", authUser).Str("path_user", resource.UserID).
			Msg("cross principal access denied")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	ctx := &RequestContext{
		Resource: resource,
		AuthUser: authUser,
		Depth:    h.parseDepth(r),
	}

	h.logger.Debug().
		Str("method", r.Method).
		Stringer("resource_type", resource.ResourceType).
		Str("user", resource.UserID).
		Str("collection", resource.CollectionPath).
		Str("object", resource.ObjectID).
		Int("depth", ctx.Depth).
		Msg("request routed")

	switch r.Method {
	case "PROPFIND":
		h.handlePropfind(w, r, ctx)
	case "REPORT":
		h.handleReport(w, r, ctx)
	case http.MethodGet, http.MethodHead:
		h.handleGet(w, r, ctx)
	case http.MethodPut:
		h.handlePut(w, r, ctx)
	case http.MethodDelete:
		h.handleDelete(w, r, ctx)
	case http.MethodOptions:
		h.handleOptions(w, r, ctx)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) parseDepth(r *http.Request) int {
	depth := r.Header.Get("Depth")
	switch depth {
	case "":
		return 0
	case "infinity":
		return min(depthInfinity, h.MaxDepth)
	default:
		n, err := strconv.Atoi(depth)
		if err != nil {
			h.logger.Debug().Str("depth", depth).Msg("invalid Depth header, defaulting to 0")
			return 0
		}
		return min(n, h.MaxDepth)
	}
}

// recordServed counts one object handed out, labeled by owning adapter.
func (h *Handler) recordServed(colPath string) {
	if _, a, err := h.Registry.FindCollection(colPath); err == nil {
		metrics.RecordObjectServed(a.Name())
	}
}

// httpStatus maps storage errors onto DAV status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrConflict):
		return http.StatusPreconditionFailed
	case errors.Is(err, storage.ErrUnsupported):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
