// Hot reloading of the YAML config file in development. Only the log level
// and feature flags are safe to change at runtime; listeners and the data
// directory require a restart.
package config

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the config file and re-runs LoadConfig on change.
type Watcher struct {
	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewWatcher creates a watcher for the file named by LOCALCLOUD_CONFIG.
// Outside development, or with no config file set, the watcher is inert.
func NewWatcher(initial *Config, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		current: initial,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	path := os.Getenv("LOCALCLOUD_CONFIG")
	if !initial.IsDevelopment() || path == "" {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	w.watcher = fsw
	go w.loop()

	logger.Info("config hot reloading enabled", zap.String("path", path))
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadConfig()
			if err != nil {
				w.logger.Warn("config reload failed", zap.Error(err))
				continue
			}
			w.mu.Lock()
			w.current = cfg
			callbacks := append([]func(*Config){}, w.callbacks...)
			w.mu.Unlock()
			for _, fn := range callbacks {
				fn(cfg)
			}
			w.logger.Info("config reloaded", zap.String("log_level", cfg.LogLevel))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
