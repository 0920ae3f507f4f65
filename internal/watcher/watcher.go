// Package watcher triggers a corpus reload when files under the research or
// data directories change. Bursts of events (an editor saving, a git pull)
// are debounced into a single reload.
package watcher

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

const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is called once per debounced burst of changes.
type ReloadFunc func(ctx context.Context) error

type Options struct {
	Debounce   time.Duration
	Extensions []string
}

// Watcher watches a fixed set of directories (not recursively).
type Watcher struct {
	dirs     []string
	reload   ReloadFunc
	debounce time.Duration
	exts     map[string]bool
	logger   *slog.Logger
}

func New(dirs []string, reload ReloadFunc, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".md", ".json"}
	}
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{
		dirs:     dirs,
		reload:   reload,
		debounce: opts.Debounce,
		exts:     exts,
		logger:   slog.Default().With("component", "corpus-watcher"),
	}
}

// Run watches until ctx is cancelled. Reload errors are logged, not
// returned: the previous index keeps serving and the next change retries.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	watched := 0
	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("not watching missing directory", "dir", dir)
				continue
			}
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("watching corpus: none of %v exist: %w", w.dirs, os.ErrNotExist)
	}
	w.logger.Info("watching corpus for changes", "dirs", w.dirs, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var pending []string

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending = append(pending, filepath.Base(event.Name))
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "error", err)
		case <-timer.C:
			w.logger.Info("corpus changed, reloading", "events", len(pending), "files", dedupe(pending))
			pending = pending[:0]
			if err := w.reload(ctx); err != nil {
				w.logger.Error("reload after corpus change failed", "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(name))]
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
