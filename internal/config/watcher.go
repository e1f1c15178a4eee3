package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DebounceWindow coalesces the burst of filesystem events most editors emit
// on save (write, then rename over the original) into one reload attempt.
const DebounceWindow = 250 * time.Millisecond

// Watcher notifies on channel C when the config file has settled after a
// change. It watches the parent directory rather than the file itself so
// write-then-rename saves keep being observed.
type Watcher struct {
	C chan struct{}

	fsw    *fsnotify.Watcher
	path   string
	window time.Duration

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

func NewWatcher(path string) (*Watcher, error) {
	return newWatcher(path, DebounceWindow)
}

func newWatcher(path string, window time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}

	w := &Watcher{
		C:      make(chan struct{}, 1),
		fsw:    fsw,
		path:   abs,
		window: window,
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.bump()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Transient watch errors must not take the watcher down.
			log.Errorf("config watcher: %v", err)
		}
	}
}

func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Reset(w.window)
		return
	}
	w.pending = time.AfterFunc(w.window, func() {
		w.mu.Lock()
		w.pending = nil
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		select {
		case w.C <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
