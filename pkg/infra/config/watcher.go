// Package config watches configuration files and publishes reloaded
// connection configuration to the repository layer.
package config

import (
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/spf13/viper"
)

// ChangeHandler is invoked with the reloaded viper instance after the
// configuration file changes.
type ChangeHandler func(v *viper.Viper) error

// Watcher fans configuration file changes out to subscribed handlers.
type Watcher struct {
	viper    *viper.Viper
	log      core.Logger
	mu       sync.RWMutex
	handlers map[string]ChangeHandler
	watching bool
}

// NewWatcher creates a watcher over v, which must already have read its
// configuration file.
func NewWatcher(v *viper.Viper, log core.Logger) *Watcher {
	if log == nil {
		log = logger.Global()
	}
	return &Watcher{
		viper:    v,
		log:      log,
		handlers: make(map[string]ChangeHandler),
	}
}

// Subscribe registers handler under id, replacing any handler with that id.
func (w *Watcher) Subscribe(id string, handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = handler
	w.log.Debugw("Config handler subscribed", "handler", id)
}

// Unsubscribe removes the handler registered under id.
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.handlers, id)
}

// Start begins watching the configuration file. Calling it again has no effect.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = true
	w.mu.Unlock()

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.log.Infow("Config file changed", "file", e.Name, "op", e.Op.String())
		w.Notify()
	})
	w.viper.WatchConfig()
	w.log.Infow("Config watcher started", "file", w.viper.ConfigFileUsed())
}

// Notify runs every handler in id order. A failing handler is logged and
// does not stop the others; the number of failures is returned.
func (w *Watcher) Notify() int {
	w.mu.RLock()
	ids := make([]string, 0, len(w.handlers))
	for id := range w.handlers {
		ids = append(ids, id)
	}
	handlers := make(map[string]ChangeHandler, len(w.handlers))
	for id, h := range w.handlers {
		handlers[id] = h
	}
	w.mu.RUnlock()
	sort.Strings(ids)

	failed := 0
	for _, id := range ids {
		if err := handlers[id](w.viper); err != nil {
			failed++
			w.log.Errorw("Config handler failed", "handler", id, "error", err)
		}
	}
	return failed
}

// IsWatching reports whether Start has been called.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// HandlerCount returns the number of registered handlers.
func (w *Watcher) HandlerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.handlers)
}
