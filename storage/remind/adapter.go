// Package remind serves Remind calendar files as CalDAV collections.
// The root file and every INCLUDEd file become one collection each.
package remind

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"remdav/internal/log"
	"remdav/internal/metrics"
	"remdav/storage"
)

// Adapter implements storage.Adapter over a Remind file tree.
type Adapter struct {
	path    string // root remind file
	baseDir string // collection paths are relative to this
	tz      *time.Location
	logger  zerolog.Logger

	mu     sync.Mutex
	files  []fileData
	mtimes map[string]time.Time
	loaded bool
}

// New creates an adapter for the given root file. Event times are
// interpreted in tz. Collection paths are source paths relative to
// baseDir (falling back to the file basename).
func New(path string, tz *time.Location, baseDir string) *Adapter {
	return &Adapter{
		path:    path,
		baseDir: baseDir,
		tz:      tz,
		logger:  log.WithComponent("remind"),
		mtimes:  map[string]time.Time{},
	}
}

func (a *Adapter) Name() string       { return "remind" }
func (a *Adapter) Kind() storage.Kind { return storage.KindCalendar }

// Paths returns the files to watch for external modification.
func (a *Adapter) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureLoadedLocked(); err != nil {
		return []string{a.path}
	}
	paths := make([]string, 0, len(a.files))
	for _, f := range a.files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Invalidate drops the cached parse; the next access reloads.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	a.loaded = false
	a.mu.Unlock()
}

func (a *Adapter) Collections() ([]storage.Collection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	cols := make([]storage.Collection, 0, len(a.files))
	for _, f := range a.files {
		cols = append(cols, storage.Collection{
			Path:                a.collectionPath(f.Path),
			Kind:                storage.KindCalendar,
			SupportedComponents: []string{"VEVENT"},
			LastModified:        a.mtimes[f.Path],
		})
	}
	return cols, nil
}

func (a *Adapter) UIDs(collection string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := a.fileForLocked(collection)
	if err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(f.Entries))
	for _, e := range f.Entries {
		uids = append(uids, a.uidFor(e))
	}
	return uids, nil
}

func (a *Adapter) Get(collection, uid string) (*storage.Object, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := a.fileForLocked(collection)
	if err != nil {
		return nil, err
	}
	for _, e := range f.Entries {
		if a.uidFor(e) == uid {
			metrics.RecordObjectServed(a.Name())
			return &storage.Object{
				ID:           uid,
				ETag:         storage.ETag(uid),
				LastModified: a.mtimes[f.Path],
				Event:        a.toEvent(e, uid),
			}, nil
		}
	}
	return nil, fmt.Errorf("uid %s: %w", uid, storage.ErrNotFound)
}

func (a *Adapter) Put(collection string, obj *storage.Object) (string, error) {
	if obj == nil || obj.Event == nil {
		return "", fmt.Errorf("missing event payload: %w", storage.ErrInvalidInput)
	}
	e, err := a.fromEvent(obj.Event)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := a.fileForLocked(collection)
	if err != nil {
		return "", err
	}

	line := formatLine(e)
	lines, err := readLines(f.Path)
	if err != nil {
		return "", err
	}
	replaced := false
	if obj.ID != "" {
		for _, existing := range f.Entries {
			if a.uidFor(existing) != obj.ID {
				continue
			}
			for i, l := range lines {
				if strings.TrimSpace(l) == existing.Raw {
					lines[i] = line
					replaced = true
					break
				}
			}
			break
		}
	}
	if !replaced {
		lines = append(lines, line)
	}

	if err := a.writeFile(f.Path, lines); err != nil {
		return "", err
	}
	e.File = f.Path
	e.Raw = line
	return a.uidFor(e), nil
}

func (a *Adapter) Remove(collection, uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := a.fileForLocked(collection)
	if err != nil {
		return err
	}
	for _, e := range f.Entries {
		if a.uidFor(e) != uid {
			continue
		}
		lines, err := readLines(f.Path)
		if err != nil {
			return err
		}
		kept := lines[:0]
		for _, l := range lines {
			if strings.TrimSpace(l) != e.Raw {
				kept = append(kept, l)
			}
		}
		return a.writeFile(f.Path, kept)
	}
	return fmt.Errorf("uid %s: %w", uid, storage.ErrNotFound)
}

func (a *Adapter) LastModified() (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureLoadedLocked(); err != nil {
		return time.Time{}, err
	}
	var newest time.Time
	for _, t := range a.mtimes {
		if t.After(newest) {
			newest = t
		}
	}
	return newest, nil
}

// ensureLoadedLocked reparses the file set when any source mtime moved.
func (a *Adapter) ensureLoadedLocked() error {
	if a.loaded && !a.stale() {
		return nil
	}
	files, err := a.parseFiles()
	metrics.RecordReload(a.Name(), err)
	if err != nil {
		return err
	}
	a.files = files
	a.mtimes = map[string]time.Time{}
	for _, f := range files {
		if info, err := os.Stat(f.Path); err == nil {
			a.mtimes[f.Path] = info.ModTime()
		}
	}
	a.loaded = true
	return nil
}

func (a *Adapter) stale() bool {
	for _, f := range a.files {
		info, err := os.Stat(f.Path)
		if err != nil {
			return true
		}
		if !info.ModTime().Equal(a.mtimes[f.Path]) {
			return true
		}
	}
	return false
}

func (a *Adapter) fileForLocked(collection string) (*fileData, error) {
	if err := a.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	collection = strings.Trim(collection, "/")
	for i := range a.files {
		if a.collectionPath(a.files[i].Path) == collection {
			return &a.files[i], nil
		}
	}
	return nil, fmt.Errorf("collection %q: %w", collection, storage.ErrNotFound)
}

func (a *Adapter) collectionPath(file string) string {
	if a.baseDir != "" {
		if rel, err := filepath.Rel(a.baseDir, file); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(file)
}

// uidFor content-addresses an entry: the UID is stable until the line
// itself is edited, matching the original adapter's etag contract.
func (a *Adapter) uidFor(e entry) string {
	sum := sha1.Sum([]byte(e.File + ":" + e.Raw))
	return hex.EncodeToString(sum[:]) + "@remdav"
}

func (a *Adapter) writeFile(path string, lines []string) error {
	data := strings.Join(lines, "\n")
	if data != "" {
		data += "\n"
	}
	if err := renameio.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write remind file: %w", err)
	}
	a.loaded = false
	return nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read remind file: %w", err)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}
