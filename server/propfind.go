package server

import (
	"io"
	"net/http"

	"github.com/beevik/etree"

	"remdav/internal/xml/propfind"
	"remdav/storage"
)

func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	req, namesOnly := propfind.ParseRequest(string(body))

	// The service root has no user segment; principal hrefs there come
	// from the authenticated user.
	res := ctx.Resource
	if res.ResourceType == storage.ResourceServiceRoot && res.UserID == "" {
		res.UserID = ctx.AuthUser
	}

	docs, err := h.propfindDocs(req, namesOnly, res, ctx.Depth)
	if err != nil {
		h.logger.Error().Err(err).Stringer("resource_type", ctx.Resource.ResourceType).
			Msg("propfind failed")
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	merged, err := propfind.MergeResponses(docs)
	if err != nil {
		http.Error(w, "Error merging responses", http.StatusInternalServerError)
		return
	}
	h.writeMultistatus(w, merged)
}

// propfindDocs answers for the resource itself plus, at Depth 1, its
// direct children.
func (h *Handler) propfindDocs(req propfind.ResponseMap, namesOnly bool, res Resource, depth int) ([]*etree.Document, error) {
	doc := h.propfindOne(cloneRequest(req), namesOnly, res, nil)
	docs := []*etree.Document{doc}
	if depth < 1 {
		return docs, nil
	}

	switch res.ResourceType {
	case storage.ResourceServiceRoot:
		if res.UserID != "" {
			child := Resource{UserID: res.UserID, ResourceType: storage.ResourcePrincipal}
			docs = append(docs, h.propfindOne(cloneRequest(req), namesOnly, child, nil))
		}

	case storage.ResourcePrincipal:
		cols, err := h.Registry.Collections()
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			child := Resource{
				UserID:         res.UserID,
				CollectionPath: col.Path,
				ResourceType:   storage.ResourceCollection,
			}
			docs = append(docs, h.propfindOne(cloneRequest(req), namesOnly, child, nil))
		}

	case storage.ResourceCollection:
		objects, err := h.Registry.ListObjects(res.CollectionPath)
		if err != nil {
			return nil, err
		}
		for i := range objects {
			child := Resource{
				UserID:         res.UserID,
				CollectionPath: res.CollectionPath,
				ObjectID:       objects[i].ID,
				ResourceType:   storage.ResourceObject,
			}
			docs = append(docs, h.propfindOne(cloneRequest(req), namesOnly, child, &objects[i]))
		}
	}

	return docs, nil
}

// propfindOne resolves and encodes the response for a single href.
func (h *Handler) propfindOne(req propfind.ResponseMap, namesOnly bool, res Resource, preload *storage.Object) *etree.Document {
	resolved := h.resolvePropfind(req, res, preload)
	if namesOnly {
		return propfind.EncodePropNames(resolved, h.href(res))
	}
	return propfind.EncodeResponse(resolved, h.href(res))
}

func cloneRequest(req propfind.ResponseMap) propfind.ResponseMap {
	clone := make(propfind.ResponseMap, len(req))
	for k, v := range req {
		clone[k] = v
	}
	return clone
}

func (h *Handler) writeMultistatus(w http.ResponseWriter, doc *etree.Document) {
	out, err := doc.WriteToString()
	if err != nil {
		http.Error(w, "Failed to generate response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	if _, err := w.Write([]byte(out)); err != nil {
		h.logger.Error().Err(err).Msg("failed to write multistatus response")
	}
}
