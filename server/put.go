package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"remdav/storage"
)

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	if ctx.Resource.ResourceType != storage.ResourceObject {
		h.logger.Debug().Stringer("resource_type", ctx.Resource.ResourceType).
			Msg("put not allowed on resource type")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	col, _, err := h.Registry.FindCollection(ctx.Resource.CollectionPath)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	// Load the existing object, if any, for precondition checks.
	object, err := h.Registry.GetObject(ctx.Resource.CollectionPath, ctx.Resource.ObjectID)
	if errors.Is(err, storage.ErrNotFound) {
		object = nil
	} else if err != nil {
		h.logger.Error().Err(err).Msg("storage error while retrieving object")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ifMatch := r.Header.Get("If-Match")
	ifNone := r.Header.Get("If-None-Match")
	if object != nil {
		if ifMatch != "" && ifMatch != object.ETag {
			h.logger.Debug().Str("client_etag", ifMatch).Str("server_etag", object.ETag).
				Msg("etag mismatch")
			http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
			return
		}
		if ifNone == "*" {
			http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
			return
		}
	} else if ifMatch != "" {
		// If-Match on a missing resource fails the precondition.
		http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	wantType := "text/calendar"
	if col.Kind == storage.KindAddressBook {
		wantType = "text/vcard"
	}
	if contentType != "" && !strings.HasPrefix(contentType, wantType) {
		h.logger.Debug().Str("content_type", contentType).Msg("unsupported media type")
		http.Error(w, "Unsupported Media Type", http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	r.Body.Close()

	newObj := &storage.Object{ID: ctx.Resource.ObjectID}
	if col.Kind == storage.KindAddressBook {
		card, err := storage.VCFToCard(string(data))
		if err != nil {
			h.logger.Debug().Err(err).Msg("invalid vcard data")
			http.Error(w, "Invalid vCard data", http.StatusBadRequest)
			return
		}
		newObj.Card = card
	} else {
		comp, err := storage.ICSToEvent(string(data))
		if err != nil {
			h.logger.Debug().Err(err).Msg("invalid icalendar data")
			http.Error(w, "Invalid iCalendar data", http.StatusBadRequest)
			return
		}
		newObj.Event = comp
	}

	uid, err := h.Registry.PutObject(ctx.Resource.CollectionPath, newObj)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to save object")
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	w.Header().Set("ETag", storage.ETag(uid))
	location := h.objectHref(ctx.Resource.UserID, ctx.Resource.CollectionPath, uid)
	if object == nil {
		h.logger.Info().Str("location", location).Msg("object created")
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusCreated)
		return
	}
	if uid != ctx.Resource.ObjectID {
		// Content-addressed UIDs move when the entry is rewritten; tell
		// the client where the object lives now.
		w.Header().Set("Location", location)
	}
	h.logger.Info().Str("uid", uid).Msg("object updated")
	w.WriteHeader(http.StatusNoContent)
}
