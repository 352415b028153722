package templatefile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay absorbs the burst of events editors emit on save (truncate,
// write, chmod, rename) into a single reload.
const settleDelay = 250 * time.Millisecond

// Watch reloads the template file whenever it changes and hands the parsed
// definition to apply. The parent directory is watched rather than the file
// itself so atomic-rename saves keep working. Parse failures are reported
// through onError and do not stop the watch; a broken intermediate save
// should not kill the import loop.
func Watch(ctx context.Context, path string, apply func(path string) error, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	var settle *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.AfterFunc(settleDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}

		case <-fire:
			if err := apply(path); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
