package tokencount

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/watcher"
)

// FileWatcher is the subset of watcher.Watcher used by Watch.
type FileWatcher interface {
	Watch(ctx context.Context, dir string) error
	Events() <-chan watcher.Event
	Errors() <-chan error
}

// Watch re-counts a file each time it is created or written in dir and passes
// the outcome to fn. Failures for one file do not stop the loop. Watch returns
// when ctx is done or the watcher's channels close.
func (c *Counter) Watch(ctx context.Context, dir string, w FileWatcher, fn func(FileCount, error)) error {
	if err := w.Watch(ctx, dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Type != watcher.EventCreate && ev.Type != watcher.EventWrite {
				continue
			}

			name := filepath.Base(ev.Path)
			n, err := c.CountFile(ctx, ev.Path)
			if err != nil {
				err = fmt.Errorf("%s: %w", name, err)
			}
			fn(FileCount{File: name, Tokens: n}, err)

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			c.logger.WarnContext(ctx, "watch error", "dir", dir, "error", err)
		}
	}
}
