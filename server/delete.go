package server

import (
	"errors"
	"net/http"

	"remdav/storage"
)

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	// Collections map to files on disk the user manages; only objects
	// may be deleted over DAV.
	if ctx.Resource.ResourceType != storage.ResourceObject {
		h.logger.Debug().Stringer("resource_type", ctx.Resource.ResourceType).
			Msg("delete not allowed on resource type")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	object, err := h.Registry.GetObject(ctx.Resource.CollectionPath, ctx.Resource.ObjectID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	} else if err != nil {
		h.logger.Error().Err(err).Msg("error retrieving object for deletion")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && ifMatch != object.ETag {
		h.logger.Debug().Str("client_etag", ifMatch).Str("server_etag", object.ETag).
			Msg("etag mismatch")
		http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
		return
	}

	if err := h.Registry.DeleteObject(ctx.Resource.CollectionPath, ctx.Resource.ObjectID); err != nil {
		h.logger.Error().Err(err).Msg("failed to delete object")
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	h.logger.Info().Str("uid", ctx.Resource.ObjectID).Msg("object deleted")
	w.WriteHeader(http.StatusNoContent)
}
