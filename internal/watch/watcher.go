// Package watch provides an optional filesystem watcher for the bootstrap
// pipeline's --watch mode: it reacts to new session transcript files dropped
// into a directory and hands each settled path to a caller-supplied callback.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"omg/internal/logging"
)

// FileHandler is invoked once per settled (debounced) transcript file.
type FileHandler func(path string)

// Watcher watches a directory for new or modified transcript files.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	extensions  map[string]bool
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// New creates a Watcher over dir, reacting only to files whose extension
// (including the leading dot, e.g. ".md") is in extensions. A nil or empty
// extensions set matches every file.
func New(dir string, extensions []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[e] = true
	}
	return &Watcher{
		watcher:     fw,
		dir:         dir,
		extensions:  extSet,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching dir in a background goroutine and calls handle for
// each settled create/write event. Non-blocking.
func (w *Watcher) Start(ctx context.Context, handle FileHandler) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.run(ctx, handle)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context, handle FileHandler) {
	defer close(w.doneCh)
	log := logging.Get(logging.CategoryBootstrap)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch: fsnotify error: %v", err)
		case <-debounceTicker.C:
			w.processDebounced(handle)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !w.matches(event.Name) {
		return
	}
	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) processDebounced(handle FileHandler) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		handle(path)
	}
}
