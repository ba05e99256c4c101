package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/prowire/prowire/pkg/logger"
)

// Watcher observes a configuration file and emits the re-parsed raw
// configuration whenever it changes. Pending updates coalesce: the channel
// holds at most one item and a newer configuration replaces an undelivered
// older one, so a slow consumer only ever sees the latest state.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	updates chan *Raw
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the given configuration file. The parent
// directory is watched rather than the file itself so that editors which
// replace the file (rename-over) keep triggering events.
func NewWatcher(path string) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:    absPath,
		fsw:     fsw,
		updates: make(chan *Raw, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Updates returns the channel of re-parsed configurations.
func (w *Watcher) Updates() <-chan *Raw {
	return w.updates
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.started = true
	go w.loop()
	logger.Log.Info("Config: watching for changes", "path", w.path)
}

// Stop terminates the watcher and releases the underlying fsnotify resources.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	if w.started {
		<-w.doneCh
	}
	return w.fsw.Close()
}

// Notify re-reads the configuration file and queues the result, as if a
// filesystem change had been observed. Used by the control channel to force
// a reload.
func (w *Watcher) Notify() {
	w.reload()
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Config: watcher error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	raw, err := LoadFile(w.path)
	if err != nil {
		logger.Log.Error("Config: ignoring unreadable configuration change", "path", w.path, "err", err)
		return
	}
	// Coalesce: drop an undelivered older update before queueing the new one.
	select {
	case <-w.updates:
	default:
	}
	w.updates <- raw
	logger.Log.Debug("Config: change queued", "path", w.path)
}
