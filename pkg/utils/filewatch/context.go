package filewatch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// UntilModifyContext returns a context which is canceled when one of the
// files is written, created, removed or renamed.
//
// Files are watched through their parent directories, so files which do not
// exist yet can be watched and editors replacing a file are detected.
//
// The cause of the cancellation (context.Cause) names the modified file.
func UntilModifyContext(ctx context.Context, files ...string) (context.Context, context.CancelFunc, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	targets := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			w.Close()
			return nil, nil, err
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return nil, nil, err
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("file watch: %w", err))
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if _, ok := targets[filepath.Clean(ev.Name)]; !ok {
					continue
				}
				if ev.Op == fsnotify.Chmod {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", ev.Name, ev.Op))
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
