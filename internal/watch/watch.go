// Package watch reruns a batch whenever a document under a root changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/can1357/retro/internal/engine"
)

// Runner runs one batch.
type Runner func(ctx context.Context) error

// Watcher watches every directory below a root. Changes to documents are
// debounced into a single batch run.
type Watcher struct {
	root     string
	debounce time.Duration
	run      Runner
	logger   zerolog.Logger

	// ready, when set, is closed once the initial batch has run and the
	// tree is watched.
	ready chan struct{}
}

// New creates a watcher.
func New(root string, debounce time.Duration, run Runner, logger zerolog.Logger) *Watcher {
	return &Watcher{root: root, debounce: debounce, run: run, logger: logger}
}

// Run adds the tree to the watch list, runs the batch once and then again
// after every burst of document changes. It returns nil when ctx is
// cancelled and an error when the watch itself cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info().Str("root", w.root).Dur("debounce", w.debounce).Msg("watching for changes")

	w.runBatch(ctx)
	if w.ready != nil {
		close(w.ready)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if isDir(event.Name) {
					if err := w.addTree(fsw, event.Name); err != nil {
						w.logger.Error().Err(err).Str("dir", event.Name).Msg("watch new directory failed")
					}
					continue
				}
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("document", event.Name).
				Msg("document changed")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.runBatch(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) runBatch(ctx context.Context) {
	if err := w.run(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error().Err(err).Msg("batch failed")
	}
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether event touches a document.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	return !hidden(event.Name) && engine.IsDocument(event.Name)
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
