// Package watch monitors Qi source files and recompiles them on change.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/qi-lang/qi/internal/compiler"
	"github.com/qi-lang/qi/internal/config"
	"github.com/qi-lang/qi/internal/logger"
)

// Watcher monitors a directory tree and recompiles changed .qi files after
// a debounce interval.
type Watcher struct {
	root     string
	comp     *compiler.Compiler
	watcher  *fsnotify.Watcher
	debounce time.Duration
	exclude  []string

	running bool
	stopCh  chan struct{}
	mu      sync.RWMutex

	// Debouncing state
	pending   map[string]time.Time
	pendingMu sync.Mutex
}

// NewWatcher creates a file system watcher over root.
func NewWatcher(root string, comp *compiler.Compiler, cfg *config.Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		comp:     comp,
		watcher:  fsWatcher,
		debounce: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
		exclude:  cfg.Watch.ExcludeGlobs,
		stopCh:   make(chan struct{}),
		pending:  map[string]time.Time{},
	}, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return fmt.Errorf("add directories: %w", err)
	}

	go w.processEvents()
	go w.processDebounced()
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.watcher.Close()
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// addDirectories recursively adds directories to watch.
func (w *Watcher) addDirectories() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if w.shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			// Some directories might not be accessible; keep going.
			logger.GetLogger().Warn().Err(err).Str("dir", path).Msg("cannot watch directory")
		}
		return nil
	})
}

// shouldSkipDir checks if a directory should be skipped.
func (w *Watcher) shouldSkipDir(rel string) bool {
	if rel == "." {
		return false
	}
	base := filepath.Base(rel)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, glob := range w.exclude {
		prefix := strings.TrimSuffix(glob, "/**")
		if prefix != glob && (rel == prefix || strings.HasPrefix(rel, prefix+string(filepath.Separator))) {
			return true
		}
		if ok, _ := filepath.Match(glob, rel); ok {
			return true
		}
	}
	return false
}

// processEvents consumes fsnotify events into the pending set.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".qi" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.GetLogger().Warn().Err(err).Msg("watch error")
		}
	}
}

// processDebounced compiles files whose last change settled past the
// debounce window.
func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			var due []string
			w.pendingMu.Lock()
			for path, stamp := range w.pending {
				if now.Sub(stamp) >= w.debounce {
					due = append(due, path)
					delete(w.pending, path)
				}
			}
			w.pendingMu.Unlock()

			for _, path := range due {
				w.compile(path)
			}
		}
	}
}

func (w *Watcher) compile(path string) {
	log := logger.GetLogger()
	out, res, err := w.comp.CompileFile(path)
	if err != nil {
		log.Error().Err(err).Str("source", path).Msg("recompile failed")
		return
	}
	log.Info().
		Str("source", path).
		Str("output", out).
		Str("elapsed", res.Elapsed.String()).
		Msg("recompiled")
}
