package beadsapi

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch emits on the returned channel whenever the store's underlying
// JSONL file is created, written, or replaced, so a long-running worker
// loop (the merge queue, §4.3) can refresh its bead-blocked view without
// polling. Grounded in the teacher's internal/autoimport, which solves the
// same "has the JSONL changed" problem by content-hashing on every poll;
// this is the event-driven equivalent using fsnotify directly, matching
// the library internal/config already imports for config hot-reload.
//
// fsnotify watches directories, not files (a file replaced via
// rename-into-place, as Save does, stops being the same inode fsnotify is
// watching) — so Watch watches the file's parent directory and filters
// events down to the one file name. The channel is closed when ctx is
// done or the watcher's event stream ends; if the watcher cannot be
// started, Watch returns the error and no channel.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(changed)
		name := filepath.Base(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				select {
				case changed <- struct{}{}:
				default: // coalesce bursts of events into one pending notification
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return changed, nil
}
