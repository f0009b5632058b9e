package quotes

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Store when its local quotes file is written.
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    *Store
	filePath string
	onReload func(err error)
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewWatcher creates a watcher for the store's file. Remote stores cannot be watched.
func NewWatcher(store *Store) (*Watcher, error) {
	if store.IsRemote() {
		return nil, errors.New("remote quotes source cannot be watched")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  watcher,
		store:    store,
		filePath: expandPath(store.Source()),
		done:     make(chan struct{}),
	}, nil
}

// SetReloadCallback sets a function called after every reload attempt.
func (w *Watcher) SetReloadCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = callback
}

// Start begins watching. The containing directory is watched so that
// editors replacing the file atomically are noticed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.filePath)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	go w.watch(ctx)
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	filename := filepath.Base(w.filePath)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload(ctx)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Warn("quotes watcher error", "error", err)

		case <-ctx.Done():
			return

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	err := w.store.Reload(ctx)
	if err != nil {
		w.store.logger.Warn("failed to reload quotes, keeping previous", "path", w.filePath, "error", err)
	} else {
		w.store.logger.Info("quotes reloaded", "path", w.filePath)
	}

	w.mu.Lock()
	callback := w.onReload
	w.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.done)
	return w.watcher.Close()
}
