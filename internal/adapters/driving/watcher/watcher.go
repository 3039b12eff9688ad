// Package watcher reports transcript files that appear or change in a set
// of directories. Events for the same path are debounced so a transcript
// that is still being written is handled once, after it settles.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/mentions/internal/logger"
)

// DefaultDebounce is the quiet period before a changed file is reported.
const DefaultDebounce = time.Second

// OnTranscript is called with the path of a settled transcript file.
type OnTranscript func(ctx context.Context, path string)

// Config holds watcher configuration.
type Config struct {
	// Extensions are the lower-case file extensions to report (".json").
	Extensions []string

	// Debounce is the quiet period per path (default: 1s).
	Debounce time.Duration
}

// Watcher monitors directories for transcript files.
type Watcher struct {
	callback OnTranscript
	watcher  *fsnotify.Watcher
	exts     map[string]bool
	delay    time.Duration

	mu       sync.Mutex
	debounce map[string]*time.Timer
	pending  sync.WaitGroup
}

// New creates a watcher. No directory is watched until Add is called.
func New(cfg Config, cb OnTranscript) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{
		callback: cb,
		watcher:  fw,
		exts:     exts,
		delay:    cfg.Debounce,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Add watches dir and every directory below it.
func (w *Watcher) Add(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", dir)
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		logger.Debug("Watching %s", path)
		return nil
	})
}

// Run handles events until ctx is cancelled, then waits for callbacks
// already started and releases the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, timer := range w.debounce {
		if timer.Stop() {
			w.pending.Done()
		}
		delete(w.debounce, path)
	}
	w.mu.Unlock()
	w.pending.Wait()
	if err := w.watcher.Close(); err != nil {
		logger.Warn("Failed to close watcher: %v", err)
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if isHidden(base) || strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".part") {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.Add(event.Name); err != nil {
				logger.Warn("%v", err)
			}
			return
		}
	}

	if !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		if timer.Stop() {
			w.pending.Done()
		}
	}
	w.pending.Add(1)
	w.debounce[path] = time.AfterFunc(w.delay, func() {
		defer w.pending.Done()
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.callback(ctx, path)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
