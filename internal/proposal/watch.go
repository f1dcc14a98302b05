package proposal

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher notices writes to the queue file while a slow batch is running.
// It is diagnostic only: the fingerprint gate is what keeps a stale batch
// from being applied.
type Watcher struct {
	watcher *fsnotify.Watcher
	name    string
	changed atomic.Bool
	wg      sync.WaitGroup
}

// Watch starts watching path. The parent directory is watched so that
// atomic replaces (temp file + rename) are seen.
func Watch(ctx context.Context, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, name: filepath.Base(path)}
	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				w.changed.Store(true)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Changed reports whether the file was touched since Watch
func (w *Watcher) Changed() bool {
	return w.changed.Load()
}

// Close stops watching
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
