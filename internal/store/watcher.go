package store

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/notify"
)

const watchDebounce = 100 * time.Millisecond

// Watcher signals AccountsRefreshed when the index file changes on disk,
// so external edits (another process, the user) are picked up without
// polling. Events are debounced because an atomic replace produces several
// filesystem events in quick succession.
type Watcher struct {
	fsw      *fsnotify.Watcher
	notifier notify.Notifier
	done     chan struct{}
}

// NewWatcher watches the store's data directory for index changes.
func NewWatcher(s *Store, notifier notify.Notifier) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(s.DataDir()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{fsw: fsw, notifier: notifier, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != indexFileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				logger.Debug("account index changed on disk")
				w.notifier.AccountsRefreshed()
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("account watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
