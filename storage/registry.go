package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"remdav/internal/log"
)

// Registry composes the configured adapters into the single storage the
// DAV layer talks to. Collection paths are unique across adapters; the
// registry resolves a request path to the owning adapter.
type Registry struct {
	adapters []Adapter
	logger   zerolog.Logger
}

// NewRegistry builds a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{
		adapters: adapters,
		logger:   log.WithComponent("storage"),
	}
}

// Collections lists every collection of every adapter. Adapters are
// queried concurrently since each may stat and parse its own files.
func (r *Registry) Collections() ([]Collection, error) {
	p := pool.NewWithResults[[]Collection]().WithErrors()
	for _, a := range r.adapters {
		p.Go(func() ([]Collection, error) {
			cols, err := a.Collections()
			if err != nil {
				return nil, fmt.Errorf("%s collections: %w", a.Name(), err)
			}
			decorate(cols)
			return cols, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	var all []Collection
	for _, cols := range results {
		all = append(all, cols...)
	}
	return all, nil
}

// FindCollection resolves a collection path to its adapter. The path may
// span multiple segments (Taskwarrior projects live under ".task/").
func (r *Registry) FindCollection(colPath string) (*Collection, Adapter, error) {
	colPath = strings.Trim(colPath, "/")
	for _, a := range r.adapters {
		cols, err := a.Collections()
		if err != nil {
			return nil, nil, fmt.Errorf("%s collections: %w", a.Name(), err)
		}
		decorate(cols)
		for i := range cols {
			if cols[i].Path == colPath {
				return &cols[i], a, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("collection %q: %w", colPath, ErrNotFound)
}

// SplitPath splits a principal-relative path into collection path and
// object ID. An empty object ID means the path names the collection
// itself.
func (r *Registry) SplitPath(rel string) (colPath, objectID string, err error) {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return "", "", fmt.Errorf("empty path: %w", ErrInvalidInput)
	}
	if _, _, err := r.FindCollection(rel); err == nil {
		return rel, "", nil
	}
	dir, base := path.Split(rel)
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return "", "", fmt.Errorf("path %q: %w", rel, ErrNotFound)
	}
	if _, _, err := r.FindCollection(dir); err != nil {
		return "", "", err
	}
	return dir, base, nil
}

// ListObjects returns all objects of a collection.
func (r *Registry) ListObjects(colPath string) ([]Object, error) {
	_, adapter, err := r.FindCollection(colPath)
	if err != nil {
		return nil, err
	}
	uids, err := adapter.UIDs(colPath)
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(uids))
	for _, uid := range uids {
		obj, err := adapter.Get(colPath, uid)
		if err != nil {
			r.logger.Warn().Err(err).Str("collection", colPath).Str("uid", uid).
				Msg("skipping unreadable object")
			continue
		}
		objects = append(objects, *obj)
	}
	return objects, nil
}

// GetObject fetches a single object by collection path and UID.
func (r *Registry) GetObject(colPath, uid string) (*Object, error) {
	_, adapter, err := r.FindCollection(colPath)
	if err != nil {
		return nil, err
	}
	return adapter.Get(colPath, uid)
}

// QueryObjects returns the objects of a collection matching the filter.
// A nil filter matches everything.
func (r *Registry) QueryObjects(colPath string, filter *Filter) ([]Object, error) {
	objects, err := r.ListObjects(colPath)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return objects, nil
	}
	matched := objects[:0]
	for _, obj := range objects {
		if filter.Validate(&obj) {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}

// PutObject creates or replaces an object and returns its UID.
func (r *Registry) PutObject(colPath string, obj *Object) (string, error) {
	_, adapter, err := r.FindCollection(colPath)
	if err != nil {
		return "", err
	}
	return adapter.Put(colPath, obj)
}

// DeleteObject removes an object by UID.
func (r *Registry) DeleteObject(colPath, uid string) error {
	_, adapter, err := r.FindCollection(colPath)
	if err != nil {
		return err
	}
	return adapter.Remove(colPath, uid)
}

// decorate fills the derived collection fields: display name, ctag and
// the per-adapter color rotation of the original plugin.
func decorate(cols []Collection) {
	for i := range cols {
		c := &cols[i]
		if c.DisplayName == "" {
			c.DisplayName = path.Base(c.Path)
		}
		if c.CTag == "" {
			c.CTag = ctag(c.Path, c.LastModified.UnixNano())
		}
		if c.Color == "" {
			c.Color = collectionColor(i, len(cols))
		}
	}
}

func ctag(path string, mtime int64) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d", path, mtime)))
	return hex.EncodeToString(sum[:8])
}

// collectionColor rotates the hue over the adapter's collections,
// offset by a third so the first collection isn't plain red.
func collectionColor(index, count int) string {
	hue := math.Mod(float64(index)/float64(count)+1.0/3.0, 1.0)
	r, g, b := hsvToRGB(hue, 0.5, 1.0)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return uint8(255 * r), uint8(255 * g), uint8(255 * b)
}
