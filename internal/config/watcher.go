package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ChangeHandler reacts to a reloaded configuration file. It receives the
// viper instance so it can read only the keys it cares about.
type ChangeHandler func(v *viper.Viper) error

// Watcher watches a config file for changes via viper's fsnotify
// integration and fans a change out to every subscribed handler.
//
// Only scheduler-level tuning (timeouts, concurrency caps, log level)
// should be hot-reloaded this way; store/kv driver selection requires a
// process restart since it changes which connections are already open.
type Watcher struct {
	viper    *viper.Viper
	log      *zap.Logger
	mu       sync.RWMutex
	handlers map[string]ChangeHandler
	watching bool
}

// NewWatcher builds a Watcher over an already-loaded viper instance.
func NewWatcher(v *viper.Viper, log *zap.Logger) *Watcher {
	return &Watcher{viper: v, log: log, handlers: make(map[string]ChangeHandler)}
}

// Subscribe registers handler under id, replacing any existing handler
// with the same id.
func (w *Watcher) Subscribe(id string, handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = handler
}

// Unsubscribe removes the handler registered under id, if any.
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.handlers, id)
}

// Start begins watching the config file. Idempotent.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = true
	w.mu.Unlock()

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.log.Info("config file changed", zap.String("file", e.Name))

		w.mu.RLock()
		handlers := make(map[string]ChangeHandler, len(w.handlers))
		for id, h := range w.handlers {
			handlers[id] = h
		}
		w.mu.RUnlock()

		for id, handler := range handlers {
			if err := handler(w.viper); err != nil {
				w.log.Error("config reload handler failed", zap.String("handler", id), zap.Error(err))
				continue
			}
			w.log.Info("config reload handler applied", zap.String("handler", id))
		}
	})
}
