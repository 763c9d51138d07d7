package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"remdav/internal/log"
)

// Watchable is implemented by adapters whose caches can be dropped
// when their source files change on disk.
type Watchable interface {
	Adapter
	Paths() []string
	Invalidate()
}

// Watch invalidates adapters when any of their source files change.
// The external tools rewrite their files in place, so we watch the
// parent directories and match on basename. Blocks until ctx is done.
func Watch(ctx context.Context, adapters ...Watchable) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	logger := log.WithComponent("watcher")

	// owner maps a source file path to the adapters reading it.
	owner := map[string][]Watchable{}
	dirs := map[string]bool{}
	for _, a := range adapters {
		for _, p := range a.Paths() {
			p = filepath.Clean(p)
			owner[p] = append(owner[p], a)
			dirs[filepath.Dir(p)] = true
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			for _, a := range owner[filepath.Clean(event.Name)] {
				logger.Debug().Str("file", event.Name).Str("adapter", a.Name()).
					Msg("source changed, invalidating")
				a.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			logger.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}
