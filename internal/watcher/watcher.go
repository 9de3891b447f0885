// Package watcher reports changes made to the uploads directory, whether
// they come from this server or from other processes.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CageChen/filedesk/internal/fs"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher monitors a single flat directory.
type Watcher struct {
	watcher   *fsnotify.Watcher
	dir       string
	callbacks []fs.Callback
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a watcher for dir. Nothing is watched until Start.
func New(dir string) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: w,
		dir:     absDir,
		done:    make(chan struct{}),
	}, nil
}

// OnChange registers a callback for change events.
func (w *Watcher) OnChange(cb fs.Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	logrus.WithField("dir", w.dir).Info("watching uploads directory")

	go w.eventLoop()
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Dir(event.Name) != w.dir {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, fs.TempPrefix) {
		return
	}

	var op fs.EventOp
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = fs.EventCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = fs.EventUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		op = fs.EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		op = fs.EventRename
	default:
		return
	}

	// The namespace is flat; directories never show up in listings.
	if op == fs.EventCreate || op == fs.EventUpdate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return
		}
	}

	e := fs.Event{Op: op, Name: name}
	logrus.WithFields(logrus.Fields{"op": op.String(), "name": name}).Debug("uploads directory changed")

	w.mu.RLock()
	callbacks := make([]fs.Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}
