package workflow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultCatalogDebounce is how long the watcher waits for more writes before reloading.
const DefaultCatalogDebounce = 250 * time.Millisecond

// CatalogWatcher invalidates a cached Catalog whenever its file changes on disk.
// It watches the containing directory so editors that replace the file by
// rename are picked up too.
type CatalogWatcher struct {
	catalog  *Catalog
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	reloads chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewCatalogWatcher creates a watcher for the catalog file at path.
func NewCatalogWatcher(catalog *Catalog, path string, logger *slog.Logger) (*CatalogWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogWatcher{
		catalog:  catalog,
		path:     filepath.Clean(path),
		debounce: DefaultCatalogDebounce,
		watcher:  fsw,
		logger:   logger,
		reloads:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Reloads delivers a signal after each debounced reload. Signals are
// dropped when nobody is reading.
func (w *CatalogWatcher) Reloads() <-chan struct{} {
	return w.reloads
}

// Start begins watching. The watcher stops when ctx is cancelled or Stop is called.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	w.started.Store(true)
	go w.processEvents(ctx)

	w.logger.Info("Workflow catalog watcher started", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *CatalogWatcher) Stop() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		if w.started.Load() {
			<-w.done
		}
	})
	return err
}

func (w *CatalogWatcher) processEvents(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Workflow catalog watcher error", "error", err)

		case <-timerC:
			timerC = nil
			w.reload(ctx)
		}
	}
}

func (w *CatalogWatcher) reload(ctx context.Context) {
	w.catalog.Invalidate()
	if _, err := w.catalog.Load(ctx); err != nil {
		w.logger.Warn("Workflow catalog changed but could not be loaded", "path", w.path, "error", err)
	} else {
		w.logger.Info("Workflow catalog reloaded", "path", w.path)
	}

	select {
	case w.reloads <- struct{}{}:
	default:
	}
}
