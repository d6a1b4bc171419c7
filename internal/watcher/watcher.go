// Package watcher provides inbox watching with fsnotify and debouncing. JSON
// records dropped into the inbox directory are ingested automatically, which
// lets an export pipeline feed the server without touching the API.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches one inbox directory and invokes the ingest callback for
// each settled JSON file. Writes are debounced per path so a file being
// copied in triggers a single ingest.
type Watcher struct {
	inbox       string
	onRecord    func(path string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// NewWatcher creates a watcher over inbox. onRecord is called with the path
// of each new or rewritten .json file.
func NewWatcher(inbox string, onRecord func(path string), logger *zap.Logger) *Watcher {
	return &Watcher{
		inbox:       inbox,
		onRecord:    onRecord,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.inbox); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching inbox", zap.String("inbox", w.inbox))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(ev.Name), ".json") {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	w.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.scheduleIngest(ev.Name)
}

// scheduleIngest (re)arms the debounce timer for path.
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.onRecord(path)
	})
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, timer := range w.debounceMap {
			timer.Stop()
			delete(w.debounceMap, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.started = false
		w.mu.Unlock()
	})
}
