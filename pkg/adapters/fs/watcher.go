// Package fs feeds documents edited on disk into the document engine.
package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/scribe/pkg/autosave"
)

// DefaultWatchDebounce coalesces the burst of events an editor produces for
// a single save.
const DefaultWatchDebounce = 50 * time.Millisecond

// DocumentWatcher is a lifecycle worker that re-reads a document file after
// every change and hands its content to apply, as a user edit.
type DocumentWatcher struct {
	*worker.BaseWorker
	path   string
	apply  func(serialized string) error
	delay  time.Duration
	logger *slog.Logger

	watcher   *fsnotify.Watcher
	scheduler *autosave.Scheduler
	cancel    context.CancelFunc

	mu       sync.Mutex
	active   bool
	reloads  int
	rejected int
}

// WatchOption configures a DocumentWatcher.
type WatchOption func(*DocumentWatcher)

// WithWatchLogger sets the logger of the watcher.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(w *DocumentWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWatchDebounce sets the quiet period after the last file event.
func WithWatchDebounce(d time.Duration) WatchOption {
	return func(w *DocumentWatcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// NewDocumentWatcher creates a watcher of path. apply is typically
// document.Store.Replace.
func NewDocumentWatcher(path string, apply func(serialized string) error, opts ...WatchOption) *DocumentWatcher {
	w := &DocumentWatcher{
		BaseWorker: worker.NewBaseWorker("document-watcher"),
		path:       filepath.Clean(path),
		apply:      apply,
		delay:      DefaultWatchDebounce,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *DocumentWatcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often save by renaming a fresh file over the old one, which
	// drops a watch on the file itself; the directory watch survives it.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.watcher = watcher
	w.scheduler = autosave.New(w.delay)
	w.setActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *DocumentWatcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *DocumentWatcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"path":              w.path,
		}
	})
}

// Active reports whether the event loop is running.
func (w *DocumentWatcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Reloads returns how many times the file content was applied and how many
// times apply rejected it.
func (w *DocumentWatcher) Reloads() (applied, rejected int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.rejected
}

func (w *DocumentWatcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.logger.Enabled(ctx, slog.LevelDebug) {
				w.logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.setActive(false)
	defer w.watcher.Close()
	defer w.scheduler.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("document file changed", "path", event.Name, "op", event.Op.String())
			w.scheduler.Schedule(w.reload)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("fsnotify error", "error", wErr)
		}
	}
}

func (w *DocumentWatcher) relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), TempFilePrefix) {
		return false
	}
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *DocumentWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Debug("document file not readable", "path", w.path, "error", err)
		return
	}

	err = w.apply(strings.TrimSpace(string(data)))

	w.mu.Lock()
	if err != nil {
		w.rejected++
	} else {
		w.reloads++
	}
	w.mu.Unlock()

	if err != nil {
		// Half-written files are normal while an editor saves.
		w.logger.Debug("document file rejected", "path", w.path, "error", err)
	}
}

func (w *DocumentWatcher) setActive(active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = active
}
