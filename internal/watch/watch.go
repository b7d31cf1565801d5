// Package watch re-runs a package audit whenever the manifest or a source
// file changes. Events are debounced so a burst of writes (editor save,
// branch switch) triggers a single re-run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// ErrNoRunFunc is returned when Run is called without a callback.
var ErrNoRunFunc = errors.New("watch requires a run function")

// skippedDirs are never watched. The checkout tree and VCS metadata churn
// constantly without affecting audit results.
var skippedDirs = map[string]struct{}{
	".build":   {},
	".git":     {},
	".swiftpm": {},
}

// Options configures a watch loop.
type Options struct {
	// Debounce is the quiet period after the last event before a re-run.
	Debounce time.Duration

	// Logger receives watch lifecycle output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Run watches the package rooted at dir and invokes run once immediately,
// then again after each debounced change. It blocks until ctx is canceled;
// the context error is not reported as a failure. Errors from run are
// logged and the loop continues, so a broken intermediate state (half-saved
// manifest) does not end the session.
func Run(ctx context.Context, dir string, opts Options, run func(context.Context) error) error {
	if run == nil {
		return ErrNoRunFunc
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, dir); err != nil {
		return err
	}

	invoke(ctx, run, logger)

	return loop(ctx, watcher, debounce, logger, func() {
		invoke(ctx, run, logger)
	})
}

// invoke runs the callback and logs a failure instead of propagating it.
func invoke(ctx context.Context, run func(context.Context) error, logger *slog.Logger) {
	err := run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("audit run failed", "error", err)
	}
}

// loop drains watcher events, coalescing them behind a debounce timer.
// Newly created directories are added to the watch on the fly.
func loop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration, logger *slog.Logger, fire func()) error {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !relevant(event) {
				continue
			}

			if event.Op.Has(fsnotify.Create) {
				watchNewDir(watcher, event.Name, logger)
			}

			logger.Debug("change detected", "path", event.Name, "op", event.Op.String())

			if pending && !timer.Stop() {
				<-timer.C
			}

			timer.Reset(debounce)

			pending = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("watch error", "error", err)

		case <-timer.C:
			pending = false

			fire()
		}
	}
}

// relevant filters events down to manifest and Swift source changes plus
// directory-level create/remove/rename, which can move whole source trees.
func relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) && event.Op&^fsnotify.Chmod == 0 {
		return false
	}

	base := filepath.Base(event.Name)
	if _, skip := skippedDirs[base]; skip {
		return false
	}

	if strings.HasSuffix(base, ".swift") || base == "Package.resolved" {
		return true
	}

	// Events without an extension are usually directories; keep them so
	// renamed source trees re-trigger.
	return filepath.Ext(base) == ""
}

// watchNewDir registers a freshly created directory tree.
func watchNewDir(watcher *fsnotify.Watcher, path string, logger *slog.Logger) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	err = addRecursive(watcher, path)
	if err != nil {
		logger.Warn("cannot watch new directory", "path", path, "error", err)
	}
}

// addRecursive watches every directory under root, skipping checkout and
// VCS trees.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !entry.IsDir() {
			return nil
		}

		name := entry.Name()
		if _, skip := skippedDirs[name]; skip {
			return fs.SkipDir
		}

		if name != "." && strings.HasPrefix(name, ".") && path != root {
			return fs.SkipDir
		}

		if addErr := watcher.Add(path); addErr != nil {
			return fmt.Errorf("watch %s: %w", path, addErr)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	return nil
}
