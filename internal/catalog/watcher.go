package catalog

import (
	"os"
	"sync"
	"time"

	"card-scanner/internal/monitoring"
)

// Watcher polls a catalog file and reloads it when its modification time
// changes. A reload that fails keeps the previous catalog in use.
type Watcher struct {
	path          string
	gridSize      int
	checkInterval time.Duration

	mu       sync.Mutex
	modTime  time.Time
	stopCh   chan struct{}
	onReload func(*Catalog)
}

// NewWatcher creates a watcher for path. The current modification time is
// the baseline, so the file as it is now does not trigger a reload.
func NewWatcher(path string, gridSize int, checkInterval time.Duration) *Watcher {
	w := &Watcher{
		path:          path,
		gridSize:      gridSize,
		checkInterval: checkInterval,
	}
	if info, err := os.Stat(path); err == nil {
		w.modTime = info.ModTime()
	}
	return w
}

// OnReload sets the callback that receives each successfully reloaded
// catalog. It is called from the watcher goroutine.
func (w *Watcher) OnReload(callback func(*Catalog)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = callback
}

// Start begins polling in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()
	go w.watchLoop(stopCh)
}

// Stop ends polling. It is safe to call when not started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *Watcher) watchLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check reloads the catalog if the file changed since the last check and
// reports whether a new catalog was delivered.
func (w *Watcher) Check() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}

	w.mu.Lock()
	if !info.ModTime().After(w.modTime) {
		w.mu.Unlock()
		return false
	}
	// advance the baseline even on failure so a broken file is reported once
	w.modTime = info.ModTime()
	callback := w.onReload
	w.mu.Unlock()

	cat, err := LoadFile(w.path, w.gridSize)
	if err != nil {
		monitoring.Logf("catalog: reload of %s failed, keeping previous: %v", w.path, err)
		return false
	}
	monitoring.Logf("catalog: reloaded %d entries from %s", cat.Len(), w.path)
	if callback != nil {
		callback(cat)
	}
	return true
}
