// Package watcher re-analyzes log files as they change on disk.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moolen/mergetrace/internal/logging"
)

// Handler receives the files that changed during one debounce window,
// sorted. Calls never overlap.
type Handler func(ctx context.Context, paths []string)

// Config holds configuration for the Watcher.
type Config struct {
	// Path is a log file or a directory searched recursively
	Path string

	// Extension selects the files of a directory, e.g. ".log"
	Extension string

	// Debounce coalesces bursts of writes into one handler call. Default: 500ms
	Debounce time.Duration
}

// Watcher watches log files and calls the handler with debouncing, so a
// search still appending to its log is not re-analyzed on every line.
// It implements lifecycle.Component.
type Watcher struct {
	config  Config
	handler Handler
	logger  *logging.Logger
	single  bool

	cancel  context.CancelFunc
	stopped chan struct{}
	ready   chan struct{}

	mu            sync.Mutex
	pending       map[string]struct{}
	debounceTimer *time.Timer
	runMu         sync.Mutex
}

// New creates a watcher for cfg.Path. Nothing is watched before Start.
func New(cfg Config, handler Handler) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", cfg.Path, err)
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	cfg.Path = filepath.Clean(cfg.Path)

	return &Watcher{
		config:  cfg,
		handler: handler,
		logger:  logging.GetLogger("watcher"),
		single:  !info.IsDir(),
		stopped: make(chan struct{}),
		ready:   make(chan struct{}),
		pending: make(map[string]struct{}),
	}, nil
}

// Name implements lifecycle.Component
func (w *Watcher) Name() string { return "Log Watcher" }

// Start begins watching and returns once the file system watches are in
// place, so no change after Start returns is missed.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.addWatches(fsw); err != nil {
		fsw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.watchLoop(watchCtx, fsw)

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addWatches watches the parent directory of a single file, which survives
// editors and tools replacing the file, or every directory below the root.
func (w *Watcher) addWatches(fsw *fsnotify.Watcher) error {
	if w.single {
		dir := filepath.Dir(w.config.Path)
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		return nil
	}
	return filepath.WalkDir(w.config.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.stopped)
	defer fsw.Close()

	w.logger.Info("Watching %s for changes (debounce: %dms)", w.config.Path, w.config.Debounce.Milliseconds())
	close(w.ready)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Context cancelled, stopping")
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if event.Has(fsnotify.Create) && !w.single {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// new subdirectories are watched too, along with logs already in them
			if err := fsw.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory %s: %v", event.Name, err)
			}
			w.queueExisting(ctx, event.Name)
			return
		}
	}
	if !w.matches(event.Name) {
		return
	}
	w.queue(ctx, filepath.Clean(event.Name))
}

func (w *Watcher) queueExisting(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() && w.matches(p) {
			w.queue(ctx, p)
		}
		return nil
	})
}

func (w *Watcher) matches(path string) bool {
	if w.single {
		return filepath.Clean(path) == w.config.Path
	}
	return strings.HasSuffix(path, w.config.Extension)
}

// queue adds path to the pending set and restarts the debounce timer.
func (w *Watcher) queue(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.flush(ctx)
	})
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(paths)

	w.runMu.Lock()
	defer w.runMu.Unlock()
	w.logger.Debug("%d changed file(s)", len(paths))
	w.handler(ctx, paths)
}

// Stop cancels watching and waits for the watch loop to exit or ctx to end.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for watcher to stop: %w", ctx.Err())
	}
}
