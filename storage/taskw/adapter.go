// Package taskw serves Taskwarrior data files as CalDAV todo
// collections, one per Taskwarrior project.
package taskw

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"remdav/internal/log"
	"remdav/internal/metrics"
	"remdav/storage"
)

const (
	pendingFile   = "pending.data"
	completedFile = "completed.data"
)

// Adapter implements storage.Adapter over a Taskwarrior data folder.
// It reads the data files directly instead of shelling out to task(1),
// so it works without Taskwarrior installed.
type Adapter struct {
	folder  string
	baseDir string
	logger  zerolog.Logger

	mu     sync.Mutex
	tasks  []task
	mtimes map[string]time.Time
	loaded bool
}

// New creates an adapter over the given Taskwarrior data directory.
func New(folder, baseDir string) *Adapter {
	return &Adapter{
		folder:  folder,
		baseDir: baseDir,
		logger:  log.WithComponent("taskwarrior"),
		mtimes:  map[string]time.Time{},
	}
}

func (a *Adapter) Name() string       { return "taskwarrior" }
func (a *Adapter) Kind() storage.Kind { return storage.KindCalendar }

// Paths returns the files to watch for external modification.
func (a *Adapter) Paths() []string {
	return []string{a.dataPath(pendingFile), a.dataPath(completedFile)}
}

// Invalidate drops the cached parse; the next access reloads.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	a.loaded = false
	a.mu.Unlock()
}

func (a *Adapter) dataPath(name string) string {
	return filepath.Join(a.folder, name)
}

// rootPath is the collection path of the data folder itself, serving
// tasks without a project.
func (a *Adapter) rootPath() string {
	if a.baseDir != "" {
		if rel, err := filepath.Rel(a.baseDir, a.folder); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(a.folder)
}

func (a *Adapter) Collections() ([]storage.Collection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureLoadedLocked(); err != nil {
		return nil, err
	}

	projects := map[string]bool{}
	for _, t := range a.tasks {
		if p := t.Project(); p != "" {
			projects[p] = true
		}
	}
	names := make([]string, 0, len(projects))
	for p := range projects {
		names = append(names, p)
	}
	sort.Strings(names)

	newest := a.newestMtimeLocked()
	root := a.rootPath()
	cols := []storage.Collection{{
		Path:                root,
		Kind:                storage.KindCalendar,
		SupportedComponents: []string{"VTODO"},
		LastModified:        newest,
	}}
	for _, p := range names {
		cols = append(cols, storage.Collection{
			Path:                root + "/" + p,
			Kind:                storage.KindCalendar,
			SupportedComponents: []string{"VTODO"},
			LastModified:        newest,
		})
	}
	return cols, nil
}

// project resolves a collection path to its Taskwarrior project name.
// The root collection maps to the empty project.
func (a *Adapter) project(collection string) (string, error) {
	collection = strings.Trim(collection, "/")
	root := a.rootPath()
	if collection == root {
		return "", nil
	}
	if rest, found := strings.CutPrefix(collection, root+"/"); found && rest != "" {
		return rest, nil
	}
	return "", fmt.Errorf("collection %q: %w", collection, storage.ErrNotFound)
}

func (a *Adapter) matches(t task, project string) bool {
	return t.Project() == project
}

func (a *Adapter) UIDs(collection string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	project, err := a.project(collection)
	if err != nil {
		return nil, err
	}
	if err := a.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	var uids []string
	for _, t := range a.tasks {
		if a.matches(t, project) {
			uids = append(uids, t.UUID())
		}
	}
	return uids, nil
}

func (a *Adapter) Get(collection, uid string) (*storage.Object, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	project, err := a.project(collection)
	if err != nil {
		return nil, err
	}
	if err := a.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	for _, t := range a.tasks {
		if t.UUID() == uid && a.matches(t, project) {
			metrics.RecordObjectServed(a.Name())
			lastModified := a.newestMtimeLocked()
			if m, ok := t.time("modified"); ok {
				lastModified = m
			}
			return &storage.Object{
				ID:           uid,
				ETag:         storage.ETag(uid),
				LastModified: lastModified,
				Event:        toTodo(t),
			}, nil
		}
	}
	return nil, fmt.Errorf("uid %s: %w", uid, storage.ErrNotFound)
}

func (a *Adapter) Put(collection string, obj *storage.Object) (string, error) {
	if obj == nil || obj.Event == nil {
		return "", fmt.Errorf("missing todo payload: %w", storage.ErrInvalidInput)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	project, err := a.project(collection)
	if err != nil {
		return "", err
	}
	if err := a.ensureLoadedLocked(); err != nil {
		return "", err
	}

	t, err := fromTodo(obj.Event, project)
	if err != nil {
		return "", err
	}

	replaced := false
	for i := range a.tasks {
		if a.tasks[i].UUID() == t.UUID() {
			// Keep attributes this adapter doesn't model (depends,
			// recur, UDAs) from the existing record.
			for k, v := range a.tasks[i].Attrs {
				if _, known := t.Attrs[k]; !known && !strings.HasPrefix(k, "annotation_") {
					t.Attrs[k] = v
				}
			}
			a.tasks[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		a.tasks = append(a.tasks, t)
	}

	if err := a.writeLocked(); err != nil {
		return "", err
	}
	return t.UUID(), nil
}

func (a *Adapter) Remove(collection, uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	project, err := a.project(collection)
	if err != nil {
		return err
	}
	if err := a.ensureLoadedLocked(); err != nil {
		return err
	}
	for i := range a.tasks {
		if a.tasks[i].UUID() == uid && a.matches(a.tasks[i], project) {
			a.tasks = append(a.tasks[:i], a.tasks[i+1:]...)
			return a.writeLocked()
		}
	}
	return fmt.Errorf("uid %s: %w", uid, storage.ErrNotFound)
}

func (a *Adapter) LastModified() (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureLoadedLocked(); err != nil {
		return time.Time{}, err
	}
	return a.newestMtimeLocked(), nil
}

func (a *Adapter) newestMtimeLocked() time.Time {
	var newest time.Time
	for _, t := range a.mtimes {
		if t.After(newest) {
			newest = t
		}
	}
	return newest
}

func (a *Adapter) ensureLoadedLocked() error {
	if a.loaded && !a.stale() {
		return nil
	}

	var tasks []task
	mtimes := map[string]time.Time{}
	var loadErr error
	for _, name := range []string{pendingFile, completedFile} {
		path := a.dataPath(name)
		parsed, err := readTasks(path)
		if err != nil {
			loadErr = err
			break
		}
		tasks = append(tasks, parsed...)
		if info, err := os.Stat(path); err == nil {
			mtimes[path] = info.ModTime()
		}
	}
	metrics.RecordReload(a.Name(), loadErr)
	if loadErr != nil {
		return loadErr
	}

	a.tasks = tasks
	a.mtimes = mtimes
	a.loaded = true
	return nil
}

func (a *Adapter) stale() bool {
	for _, name := range []string{pendingFile, completedFile} {
		path := a.dataPath(name)
		known, tracked := a.mtimes[path]
		info, err := os.Stat(path)
		if err != nil {
			if tracked {
				return true
			}
			continue
		}
		if !tracked || !info.ModTime().Equal(known) {
			return true
		}
	}
	return false
}

// writeLocked rewrites both data files: completed and deleted tasks go
// to completed.data, everything else to pending.data.
func (a *Adapter) writeLocked() error {
	var pending, completed []string
	for _, t := range a.tasks {
		line := formatTask(t)
		switch t.Status() {
		case "completed", "deleted":
			completed = append(completed, line)
		default:
			pending = append(pending, line)
		}
	}
	if err := writeLines(a.dataPath(pendingFile), pending); err != nil {
		return err
	}
	if err := writeLines(a.dataPath(completedFile), completed); err != nil {
		return err
	}
	a.loaded = false
	return nil
}

func writeLines(path string, lines []string) error {
	data := strings.Join(lines, "\n")
	if data != "" {
		data += "\n"
	}
	if err := renameio.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("write task data: %w", err)
	}
	return nil
}
