// Package watcher monitors landing directories for newly dropped files.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler is called with the path of a file once its events have
// settled past the debounce window.
type Handler func(ctx context.Context, path string)

// Stats tracks watcher activity.
type Stats struct {
	FilesSeen     int
	FilesHandled  int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher watches a directory for created or modified files matching a
// set of glob patterns. Events are debounced so half-written files
// settle before the handler runs.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	patterns    []string
	recursive   bool
	handler     Handler
	log         *zap.Logger
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is
// handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDur = d }
}

// WithRecursive makes the watcher follow subdirectories.
func WithRecursive() Option {
	return func(w *Watcher) { w.recursive = true }
}

// New creates a Watcher for dir. The handler runs on the watcher's
// goroutine; long work should move into the handler's own machinery.
func New(dir string, patterns []string, handler Handler, log *zap.Logger, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fsw,
		dir:         dir,
		patterns:    patterns,
		handler:     handler,
		log:         log,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching. Non-blocking; the event loop runs in its own
// goroutine until the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return w.failStart(err)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return w.failStart(err)
	}
	w.log.Info("watching directory", zap.String("dir", w.dir), zap.Strings("patterns", w.patterns))

	if w.recursive {
		if err := w.addSubdirs(w.dir); err != nil {
			w.log.Warn("failed to watch subdirectories", zap.Error(err))
		}
	}

	go w.run(ctx)

	return nil
}

// failStart unwinds a Start that errored before the event loop
// launched: the running flag comes back down so Stop has nothing to
// wait for, and the fsnotify handle is released.
func (w *Watcher) failStart(err error) error {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	_ = w.watcher.Close()
	return err
}

// Stop stops the watcher and waits for the event loop to drain.
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

	if err := w.watcher.Close(); err != nil {
		w.log.Error("failed to close watcher", zap.Error(err))
	}
}

// Stats returns a copy of the watcher's counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) addSubdirs(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	flushTicker := time.NewTicker(100 * time.Millisecond)
	defer flushTicker.Stop()

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
			w.log.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-flushTicker.C:
			w.flushSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if w.recursive && event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.log.Warn("failed to watch new subdirectory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !w.matches(event.Name) {
		return
	}

	w.log.Debug("file event", zap.String("op", event.Op.String()), zap.String("path", event.Name))

	w.mu.Lock()
	if _, seen := w.debounceMap[event.Name]; !seen {
		w.stats.FilesSeen++
	}
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// flushSettled hands files whose last event is older than the debounce
// window to the handler.
func (w *Watcher) flushSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, last := range w.debounceMap {
		if now.Sub(last) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.stats.FilesHandled += len(settled)
	w.mu.Unlock()

	for _, path := range settled {
		w.handler(ctx, path)
	}
}

func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.patterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
