// Package watcher keeps the library in sync with filesystem changes
// inside the shared directories.
package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zeroexploit/slms/internal/library"
)

const debounceDelay = time.Second

// Watcher monitors the share directories and triggers a library
// refresh for every directory that changed. Events are debounced per
// directory so a burst of writes causes a single rescan.
type Watcher struct {
	lib      *library.Library
	shares   []string
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	debounce map[string]*time.Timer
	stop     chan struct{}
}

// New creates a watcher over the given share directories.
func New(lib *library.Library, shares []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		lib:      lib,
		shares:   shares,
		watcher:  fw,
		debounce: make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Start registers the shares and begins processing events.
func (w *Watcher) Start() {
	go w.eventLoop()
	for _, share := range w.shares {
		if err := w.addRecursive(share); err != nil {
			log.Printf("[watcher] watching %s: %v", share, err)
		}
	}
	log.Println("[watcher] filesystem watcher started")
}

// Stop ends event processing.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && !hidden(path) {
			if err := w.watcher.Add(path); err != nil {
				log.Printf("[watcher] adding %s: %v", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") {
		return
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
		return
	}

	// New directories join the watch set before the refresh fires so
	// nothing written into them afterwards is missed.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				log.Printf("[watcher] adding %s: %v", event.Name, err)
			}
		}
	}

	w.scheduleRefresh(filepath.Dir(event.Name))
}

// scheduleRefresh arms the per-directory debounce timer, restarting it
// when events keep arriving.
func (w *Watcher) scheduleRefresh(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[dir]; ok {
		timer.Stop()
	}
	w.debounce[dir] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.debounce, dir)
		w.mu.Unlock()

		log.Printf("[watcher] refreshing %s", dir)
		w.lib.RefreshPath(dir)
	})
}

func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
