package server

import (
	"errors"
	"fmt"
	"strings"

	"remdav/storage"
)

// Resource identifies what a request path points at. Collection paths
// may span several segments because Taskwarrior projects live below
// the ".task/" collection root.
type Resource struct {
	UserID         string
	CollectionPath string
	ObjectID       string
	ResourceType   storage.ResourceType
}

// parsePath resolves a path relative to the handler prefix. Collection
// boundaries come from the registry since only it knows which paths
// exist.
func (h *Handler) parsePath(rel string) (Resource, error) {
	res := Resource{ResourceType: storage.ResourceUnknown}

	rel = strings.Trim(rel, "/")
	if rel == "" {
		res.ResourceType = storage.ResourceServiceRoot
		return res, nil
	}

	segments := strings.SplitN(rel, "/", 2)
	res.UserID = segments[0]
	if len(segments) == 1 {
		res.ResourceType = storage.ResourcePrincipal
		return res, nil
	}

	colPath, objectID, err := h.Registry.SplitPath(segments[1])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("unknown collection in path %q: %w", rel, err)
		}
		return res, err
	}
	res.CollectionPath = colPath
	if objectID == "" {
		res.ResourceType = storage.ResourceCollection
	} else {
		res.ObjectID = objectID
		res.ResourceType = storage.ResourceObject
	}
	return res, nil
}

// principalPath returns the href of the principal collection.
func (h *Handler) principalPath(userID string) string {
	return h.Prefix + userID + "/"
}

// collectionHref returns the href of a collection, trailing slash
// included.
func (h *Handler) collectionHref(userID, colPath string) string {
	return h.Prefix + userID + "/" + colPath + "/"
}

// objectHref returns the href of an object inside a collection.
func (h *Handler) objectHref(userID, colPath, objectID string) string {
	return h.Prefix + userID + "/" + colPath + "/" + objectID
}

// href renders the canonical path of a resource.
func (h *Handler) href(res Resource) string {
	switch res.ResourceType {
	case storage.ResourceServiceRoot:
		return h.Prefix
	case storage.ResourcePrincipal:
		return h.principalPath(res.UserID)
	case storage.ResourceCollection:
		return h.collectionHref(res.UserID, res.CollectionPath)
	case storage.ResourceObject:
		return h.objectHref(res.UserID, res.CollectionPath, res.ObjectID)
	default:
		return h.Prefix
	}
}
