// Package reload watches script and scene files and reports changes to the
// tick goroutine.
package reload

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultExtensions are the file types the host knows how to reload.
var DefaultExtensions = []string{".tengo", ".lua", ".yaml", ".yml"}

const debounce = 100 * time.Millisecond

// Poster queues work for the tick goroutine. script.Controller satisfies it.
type Poster interface {
	Post(fn func())
}

// Watcher reports changed files under a set of directories, at most once
// per debounce window per file.
type Watcher struct {
	watcher *fsnotify.Watcher
	exts    []string
	events  chan string
	errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New watches dirs for changes to files with one of exts. With no exts,
// DefaultExtensions are used.
func New(dirs []string, exts ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	watcher := &Watcher{
		watcher: w,
		exts:    exts,
		events:  make(chan string, 16),
		errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Events delivers the paths of changed files. It is closed by Close.
func (w *Watcher) Events() <-chan string { return w.events }

// Errors delivers watcher errors. It is closed by Close.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops watching and closes both channels.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

// Forward posts apply(path) to p for every change until ctx is done or the
// watcher is closed. Errors are passed to onError when it is not nil.
func (w *Watcher) Forward(ctx context.Context, p Poster, apply func(path string), onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-w.events:
			if !ok {
				return
			}
			p.Post(func() { apply(path) })
		case err, ok := <-w.errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

func (w *Watcher) run() {
	defer func() {
		close(w.events)
		close(w.errors)
		close(w.done)
	}()

	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < debounce {
				continue
			}
			last[event.Name] = now
			select {
			case w.events <- event.Name:
			case <-w.closeCh:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) matches(path string) bool {
	return slices.Contains(w.exts, strings.ToLower(filepath.Ext(path)))
}
