package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const debounce = 500 * time.Millisecond

// Watcher watches the mapping file for out-of-band edits in daemon mode,
// triggering an early pass instead of waiting for the next tick.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
}

// NewWatcher creates a watcher for the given file. The containing
// directory is watched too so atomic renames are seen, and so the
// callback fires when the file appears for the first time.
func NewWatcher(path string, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		path:     path,
		watcher:  fw,
		onChange: onChange,
	}

	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch mapping directory: %w", err)
	}

	return w, nil
}

// Run consumes filesystem events until the context is cancelled. Rapid
// event bursts (editors, atomic saves) are collapsed into one callback.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case <-fire:
			timer = nil
			log.Info("mapping file changed on disk")
			if w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
