package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/emersion/go-ical"

	"remdav/storage"
)

// handleGet serves single objects and whole-collection exports. HEAD
// goes through the same path; net/http suppresses the body.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	switch ctx.Resource.ResourceType {
	case storage.ResourceObject:
		h.getObject(w, r, ctx)
	case storage.ResourceCollection:
		h.getCollection(w, r, ctx)
	default:
		http.Error(w, "Method Not Allowed on this resource type", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getObject(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	object, err := h.Registry.GetObject(ctx.Resource.CollectionPath, ctx.Resource.ObjectID)
	if err != nil {
		h.logger.Debug().Err(err).Str("uid", ctx.Resource.ObjectID).Msg("get object failed")
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	if etag := r.Header.Get("If-None-Match"); etag != "" && etag == object.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var body, contentType string
	if object.Card != nil {
		body, err = storage.CardToVCF(object.Card)
		contentType = "text/vcard; charset=utf-8"
	} else {
		body, err = storage.EventToICS(object.Event)
		contentType = "text/calendar; charset=utf-8"
	}
	if err != nil {
		h.logger.Error().Err(err).Str("uid", ctx.Resource.ObjectID).Msg("failed to serialize object")
		http.Error(w, "Failed to serialize object", http.StatusInternalServerError)
		return
	}

	h.recordServed(ctx.Resource.CollectionPath)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.Header().Set("ETag", object.ETag)
	if !object.LastModified.IsZero() {
		w.Header().Set("Last-Modified", object.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response")
	}
}

// getCollection exports every object of a calendar collection as one
// VCALENDAR, or every contact concatenated as vCards.
func (h *Handler) getCollection(w http.ResponseWriter, _ *http.Request, ctx *RequestContext) {
	col, _, err := h.Registry.FindCollection(ctx.Resource.CollectionPath)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	objects, err := h.Registry.ListObjects(ctx.Resource.CollectionPath)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	var body, contentType string
	if col.Kind == storage.KindAddressBook {
		var sb strings.Builder
		for i := range objects {
			vcf, err := storage.CardToVCF(objects[i].Card)
			if err != nil {
				http.Error(w, "Failed to serialize contacts", http.StatusInternalServerError)
				return
			}
			sb.WriteString(vcf)
		}
		body = sb.String()
		contentType = "text/vcard; charset=utf-8"
	} else {
		comps := make([]*ical.Component, 0, len(objects))
		for i := range objects {
			comps = append(comps, objects[i].Event)
		}
		body, err = storage.EventsToICS(comps)
		if err != nil {
			http.Error(w, "Failed to serialize calendar", http.StatusInternalServerError)
			return
		}
		contentType = "text/calendar; charset=utf-8"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response")
	}
}
