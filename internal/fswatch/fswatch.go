// Package fswatch turns filesystem events under a root directory into
// batches of changed, root-relative paths.
package fswatch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/fsnotify/fsnotify"
)

// Config configures a Watcher.
type Config struct {
	Root string

	// Include lists doublestar patterns, relative to Root, of files worth
	// reporting. Empty means every file.
	Include []string

	// Exclude lists patterns of files and directories to ignore. An
	// excluded directory is not watched at all.
	Exclude []string

	// Debounce is the batch window opened by the first event. Default: 250ms.
	Debounce time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Debounce <= 0 {
		c.Debounce = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Watcher watches a directory tree.
type Watcher struct {
	cfg    Config
	root   string
	notify *fsnotify.Watcher
	logger *slog.Logger
}

// New registers every directory under cfg.Root that is not excluded.
func New(cfg Config) (*Watcher, error) {
	cfg.defaults()
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("fswatch: root: %w", err)
	}

	n, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fswatch: new watcher: %w", err)
	}
	w := &Watcher{cfg: cfg, root: root, notify: n, logger: cfg.Logger}
	if err := w.addTree(root); err != nil {
		n.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the absolute watched root.
func (w *Watcher) Root() string { return w.root }

// Run delivers batches to emit until ctx is cancelled. Each batch lists
// distinct root-relative slash paths in first-seen order.
func (w *Watcher) Run(ctx context.Context, emit func(paths []string)) error {
	var (
		batch []string
		seen  = make(map[string]bool)
		flush <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.notify.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("fswatch: watch new directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			rel, ok := w.relative(ev.Name)
			if !ok || !w.Match(rel) || seen[rel] {
				continue
			}
			seen[rel] = true
			batch = append(batch, rel)
			if flush == nil {
				flush = time.After(w.cfg.Debounce)
			}

		case err, ok := <-w.notify.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fswatch: watcher error", "error", err)

		case <-flush:
			w.logger.Debug("fswatch: batch", "paths", len(batch))
			emit(batch)
			batch = nil
			seen = make(map[string]bool)
			flush = nil
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.notify.Close()
}

// Match reports whether a root-relative slash path is reported.
func (w *Watcher) Match(rel string) bool {
	if matchAny(w.cfg.Exclude, rel) {
		return false
	}
	return len(w.cfg.Include) == 0 || matchAny(w.cfg.Include, rel)
}

func (w *Watcher) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// dirExcluded reports whether a directory is excluded, either by name or
// because everything below it is.
func (w *Watcher) dirExcluded(rel string) bool {
	return matchAny(w.cfg.Exclude, rel) || matchAny(w.cfg.Exclude, path.Join(rel, "_"))
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("fswatch: walk", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(p); ok && w.dirExcluded(rel) {
			return filepath.SkipDir
		}
		if err := w.notify.Add(p); err != nil {
			return fmt.Errorf("fswatch: add %s: %w", p, err)
		}
		return nil
	})
}

// matchAny treats malformed patterns as non-matching.
func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
