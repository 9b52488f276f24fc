package daemon

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"engram/internal/logging"
)

// configWatcher reloads what can change live, which today is the logging
// block, when {home}/config.yaml is written. Everything else takes effect on
// the next restart.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	reload   func()
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// newConfigWatcher watches the config file's directory; watching the file
// itself breaks under editors that save via rename.
func newConfigWatcher(path string) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	cw := &configWatcher{
		watcher:  w,
		path:     filepath.Clean(path),
		debounce: 500 * time.Millisecond,
		reload:   reloadLogging,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *configWatcher) run() {
	defer close(cw.doneCh)

	// Editors save in bursts; pending holds the reload until they settle.
	var pending <-chan time.Time

	for {
		select {
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(cw.debounce)
		case <-pending:
			pending = nil
			cw.reload()
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.DaemonError("Config watcher: %v", err)
		}
	}
}

func reloadLogging() {
	if err := logging.ReloadConfig(); err != nil {
		logging.DaemonError("Config reload failed: %v", err)
		return
	}
	logging.Daemon("Config changed; logging settings reloaded, other changes apply on restart")
}

// Close stops the event loop and releases the inotify handle.
func (cw *configWatcher) Close() {
	close(cw.stopCh)
	<-cw.doneCh
	cw.watcher.Close()
}
