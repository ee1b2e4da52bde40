package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

// Watcher reloads configuration when the config file changes and notifies
// registered callbacks with the merged result.
type Watcher struct {
	dataDir string

	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	callbacks []func(*Config)
	lastMod   time.Time

	stopCh chan struct{}
	log    pslog.Logger
}

// NewWatcher creates a watcher for dataDir/config.yaml. The directory is
// created if missing so the watch survives the file not existing yet.
func NewWatcher(dataDir string, logger pslog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		w.Close()
		return nil, err
	}

	// Watch the directory, not the file: editors replace the file by
	// rename and a file watch would go stale.
	if err := w.Add(dataDir); err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		dataDir: dataDir,
		watcher: w,
		stopCh:  make(chan struct{}),
		log:     logger,
	}, nil
}

// OnReload registers a callback invoked with each successfully reloaded
// configuration.
func (w *Watcher) OnReload(cb func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// Start begins watching for changes.
func (w *Watcher) Start() error {
	if info, err := os.Stat(filepath.Join(w.dataDir, "config.yaml")); err == nil {
		w.mu.Lock()
		w.lastMod = info.ModTime()
		w.mu.Unlock()
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	// Also poll periodically in case fsnotify misses events
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if filepath.Base(event.Name) == "config.yaml" {
					w.reload()
				}
			}

		case <-ticker.C:
			w.pollOnce()

		case <-w.watcher.Errors:
			// Continue on errors
		}
	}
}

func (w *Watcher) pollOnce() {
	info, err := os.Stat(filepath.Join(w.dataDir, "config.yaml"))
	if err != nil {
		return
	}
	w.mu.Lock()
	changed := !info.ModTime().Equal(w.lastMod)
	w.mu.Unlock()
	if changed {
		w.reload()
	}
}

func (w *Watcher) reload() {
	if info, err := os.Stat(filepath.Join(w.dataDir, "config.yaml")); err == nil {
		w.mu.Lock()
		w.lastMod = info.ModTime()
		w.mu.Unlock()
	}

	cfg, err := LoadFrom(w.dataDir)
	if err != nil {
		w.log.Error("config reload failed", "error", err)
		return
	}

	w.mu.Lock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.log.Info("config reloaded", "path", cfg.ConfigFile())
	for _, cb := range callbacks {
		cb(cfg)
	}
}
