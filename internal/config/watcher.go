package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a configuration file and notifies typed handlers when
// it changes. Config is loaded fresh on each change so handlers never
// receive stale data. Changes are debounced because editors commonly
// produce several write events per save.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	loader   func(path string) (T, error)
	handlers []func(T)
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWatcher creates a typed configuration file watcher.
func NewWatcher[T any](path string, loader func(path string) (T, error), logger *slog.Logger) *Watcher[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher[T]{
		path:     path,
		debounce: 1500 * time.Millisecond,
		loader:   loader,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetDebounce overrides the debounce duration. Must be called before Start.
func (w *Watcher[T]) SetDebounce(d time.Duration) {
	w.debounce = d
}

// OnReload registers a handler called with the freshly loaded config on
// every change.
func (w *Watcher[T]) OnReload(handler func(T)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the configuration file for changes.
func (w *Watcher[T]) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.path); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	w.logger.Info("Config watcher started", "path", w.path, "debounce", w.debounce)
	go w.watch()
	return nil
}

// Stop stops watching and releases resources.
func (w *Watcher[T]) Stop() error {
	w.cancel()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher[T]) watch() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Writes are the common case; some editors replace the file,
			// which shows up as a create.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			}

		case <-timerC:
			w.loadAndNotify()
			timerC = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher[T]) loadAndNotify() {
	cfg, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("Failed to reload config", "error", err)
		return
	}

	w.mu.RLock()
	handlers := make([]func(T), len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	w.logger.Info("Config file changed, notifying handlers", "handlers", len(handlers))
	for _, handler := range handlers {
		handler(cfg)
	}
}
