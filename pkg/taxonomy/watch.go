package taxonomy

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/auditcore/auditcore/internal/logging"
)

// Store holds a live taxonomy Tables pointer that may be swapped wholesale
// when an upgraded table file lands on disk. It never mutates a Tables
// value in place; every reload replaces the entire pointer atomically, so a
// goroutine mid-lookup always sees one complete, self-consistent snapshot
// (spec.md §9: "Global mutable state avoided").
type Store struct {
	current atomic.Pointer[Tables]
	watcher *fsnotify.Watcher
}

// NewStore creates a Store seeded with the given tables (typically Default()).
func NewStore(initial *Tables) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Tables returns the current snapshot. Safe for concurrent use during audits.
func (s *Store) Tables() *Tables {
	return s.current.Load()
}

// WatchFile reloads the store from path whenever it changes on disk. The
// Store's Close method stops the watcher. A malformed reload is logged and
// ignored; the previous snapshot stays live.
func (s *Store) WatchFile(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = w

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	log := logging.For(logging.CategoryTaxonomy)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					log.Warn("taxonomy reload: read failed", zap.Error(err))
					continue
				}
				t, err := LoadFile(data)
				if err != nil {
					log.Warn("taxonomy reload: parse failed", zap.Error(err))
					continue
				}
				s.current.Store(t)
				log.Info("taxonomy tables reloaded", zap.String("version", t.Version))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("taxonomy watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the background watcher, if one was started.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
