package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watcher watches a config file and invokes a callback when it changes.
// Changes are debounced because editors typically produce several write
// and rename events per save.
type Watcher struct {
	watcher  *fsnotify.Watcher
	file     string
	onChange func()

	mu            sync.Mutex
	debounceTimer *time.Timer
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewWatcher starts watching the given config file. The callback runs on
// the watcher goroutine; it must not block for long.
func NewWatcher(file string, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		file:     filepath.Clean(file),
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}

	// Watch the directory, not the file: rename-based saves replace the
	// inode and would silently drop a file-level watch.
	if err := fw.Add(filepath.Dir(w.file)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleChange()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watcher errors are non-fatal; the next event resyncs.
		}
	}
}

func (w *Watcher) scheduleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(watchDebounce, func() {
		select {
		case <-w.stopCh:
		default:
			w.onChange()
		}
	})
}
