package storage

import (
	"errors"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
)

// Kind distinguishes calendar collections from addressbooks.
type Kind int

const (
	KindCalendar Kind = iota
	KindAddressBook
)

func (k Kind) String() string {
	switch k {
	case KindCalendar:
		return "calendar"
	case KindAddressBook:
		return "addressbook"
	default:
		return "unknown"
	}
}

// Collection is one DAV collection backed by an adapter source file.
type Collection struct {
	// Path is the collection path relative to the principal,
	// e.g. ".reminders" or ".task/home". Never has leading or
	// trailing slashes.
	Path string
	Kind Kind
	// DisplayName defaults to the basename of Path.
	DisplayName string
	// Color is a #rrggbb string assigned deterministically per source.
	Color string
	// CTag changes whenever the backing file changes.
	CTag string
	// SupportedComponents lists component names for calendar
	// collections, e.g. "VEVENT" or "VTODO". Empty for addressbooks.
	SupportedComponents []string
	LastModified        time.Time
}

// Object is a single calendar object or contact inside a collection.
type Object struct {
	// ID is the href basename, identical to the item UID.
	ID           string
	ETag         string
	LastModified time.Time

	// Exactly one of the following is set, matching the collection kind.
	Event *ical.Component
	Card  vcard.Card
}

// User describes a principal. remdav has no user database; values are
// derived from the authenticated username.
type User struct {
	Name        string
	DisplayName string
}

// Adapter bridges one external tool (Remind, Abook, Taskwarrior) into
// collections. It mirrors the adapter contract of the original plugin:
// list source files, list UIDs, convert items, write items back.
type Adapter interface {
	// Name identifies the adapter in logs and metrics.
	Name() string
	Kind() Kind
	// Collections returns every collection this adapter serves.
	Collections() ([]Collection, error)
	// UIDs lists the item UIDs of one collection.
	UIDs(collection string) ([]string, error)
	// Get converts a single item.
	Get(collection, uid string) (*Object, error)
	// Put appends a new item or replaces an existing one (matched by
	// UID) and returns the resulting UID.
	Put(collection string, obj *Object) (string, error)
	// Remove deletes an item by UID.
	Remove(collection, uid string) error
	// LastModified reports the newest mtime of the adapter's sources.
	LastModified() (time.Time, error)
}

var (
	// ErrNotFound is returned when a requested resource doesn't exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput is returned when the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input parameters")
	// ErrConflict is returned when there's a conflict with an existing resource.
	ErrConflict = errors.New("resource conflict")
	// ErrUnsupported is returned for operations the backing tool cannot
	// express, e.g. deleting a collection.
	ErrUnsupported = errors.New("operation not supported by backend")
)

// ETag derives the entity tag for an item UID. The original plugin used
// the quoted href, which is stable as long as the item is unmodified.
func ETag(uid string) string {
	return `"` + uid + `"`
}

// ResourceType indicates what a URL path points at.
type ResourceType int

const (
	ResourceUnknown ResourceType = iota
	ResourceServiceRoot
	ResourcePrincipal
	ResourceCollection
	ResourceObject
)

func (rt ResourceType) String() string {
	switch rt {
	case ResourceServiceRoot:
		return "ServiceRoot"
	case ResourcePrincipal:
		return "Principal"
	case ResourceCollection:
		return "Collection"
	case ResourceObject:
		return "Object"
	default:
		return "Unknown"
	}
}
