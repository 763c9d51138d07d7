package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/beevik/etree"

	"remdav/internal/xml/propfind"
	"remdav/internal/xml/report"
	"remdav/storage"
)

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		http.Error(w, "Error parsing XML request body", http.StatusBadRequest)
		return
	}

	switch report.RootType(doc) {
	case report.TypeCalendarMultiget, report.TypeAddressbookMultiget:
		h.handleMultiget(w, doc, ctx)
	case report.TypeCalendarQuery:
		h.handleCalendarQuery(w, doc, ctx)
	case report.TypeAddressbookQuery:
		h.handleAddressbookQuery(w, doc, ctx)
	default:
		h.logger.Debug().Msg("unsupported report type")
		http.Error(w, "Unsupported report type", http.StatusBadRequest)
	}
}

// handleMultiget answers calendar-multiget and addressbook-multiget.
// Both name explicit hrefs and a property list; a missing href yields
// a 404 response element instead of failing the whole report.
func (h *Handler) handleMultiget(w http.ResponseWriter, doc *etree.Document, ctx *RequestContext) {
	req, hrefs := report.ParseMultiget(doc)

	var docs []*etree.Document
	for _, href := range hrefs {
		rel := strings.TrimPrefix(href, strings.TrimSuffix(h.Prefix, "/"))
		resource, err := h.parsePath(rel)
		if err != nil || resource.UserID != ctx.Resource.UserID {
			docs = append(docs, notFoundResponse(href))
			continue
		}
		docs = append(docs, h.propfindOne(cloneRequest(req), false, resource, nil))
		h.recordServed(resource.CollectionPath)
	}

	merged, err := propfind.MergeResponses(docs)
	if err != nil {
		http.Error(w, "Error merging responses", http.StatusInternalServerError)
		return
	}
	h.writeMultistatus(w, merged)
}

func (h *Handler) handleCalendarQuery(w http.ResponseWriter, doc *etree.Document, ctx *RequestContext) {
	req, filter := report.ParseCalendarQuery(doc)

	var docs []*etree.Document
	switch ctx.Resource.ResourceType {
	case storage.ResourceObject:
		object, err := h.Registry.GetObject(ctx.Resource.CollectionPath, ctx.Resource.ObjectID)
		if err != nil {
			http.Error(w, err.Error(), httpStatus(err))
			return
		}
		if filter != nil && !filter.Validate(object) {
			http.Error(w, "Object does not match filter", http.StatusNotFound)
			return
		}
		docs = append(docs, h.propfindOne(cloneRequest(req), false, ctx.Resource, object))

	case storage.ResourceCollection:
		objects, err := h.Registry.QueryObjects(ctx.Resource.CollectionPath, filter)
		if err != nil {
			http.Error(w, err.Error(), httpStatus(err))
			return
		}
		for i := range objects {
			child := Resource{
				UserID:         ctx.Resource.UserID,
				CollectionPath: ctx.Resource.CollectionPath,
				ObjectID:       objects[i].ID,
				ResourceType:   storage.ResourceObject,
			}
			docs = append(docs, h.propfindOne(cloneRequest(req), false, child, &objects[i]))
			h.recordServed(child.CollectionPath)
		}

	default:
		http.Error(w, "Unsupported resource type for calendar-query", http.StatusBadRequest)
		return
	}

	merged, err := propfind.MergeResponses(docs)
	if err != nil {
		http.Error(w, "Error merging responses", http.StatusInternalServerError)
		return
	}
	h.writeMultistatus(w, merged)
}

func (h *Handler) handleAddressbookQuery(w http.ResponseWriter, doc *etree.Document, ctx *RequestContext) {
	if ctx.Resource.ResourceType != storage.ResourceCollection {
		http.Error(w, "Unsupported resource type for addressbook-query", http.StatusBadRequest)
		return
	}

	req, filter := report.ParseAddressbookQuery(doc)

	objects, err := h.Registry.ListObjects(ctx.Resource.CollectionPath)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	var docs []*etree.Document
	for i := range objects {
		if filter != nil && !filter.Validate(&objects[i]) {
			continue
		}
		child := Resource{
			UserID:         ctx.Resource.UserID,
			CollectionPath: ctx.Resource.CollectionPath,
			ObjectID:       objects[i].ID,
			ResourceType:   storage.ResourceObject,
		}
		docs = append(docs, h.propfindOne(cloneRequest(req), false, child, &objects[i]))
		h.recordServed(child.CollectionPath)
	}

	merged, err := propfind.MergeResponses(docs)
	if err != nil {
		http.Error(w, "Error merging responses", http.StatusInternalServerError)
		return
	}
	h.writeMultistatus(w, merged)
}

// notFoundResponse builds the multistatus fragment for a multiget href
// that did not resolve.
func notFoundResponse(href string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	multistatus := doc.CreateElement("multistatus")
	multistatus.Space = "d"
	response := multistatus.CreateElement("response")
	response.Space = "d"
	hrefElem := response.CreateElement("href")
	hrefElem.Space = "d"
	hrefElem.SetText(href)
	status := response.CreateElement("status")
	status.Space = "d"
	status.SetText("HTTP/1.1 404 Not Found")
	return doc
}
