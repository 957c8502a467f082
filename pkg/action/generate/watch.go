package generate

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

	"github.com/cmmoran/buildergen/pkg/parser"
)

// DefaultDebounce batches the events of one editor save.
const DefaultDebounce = 300 * time.Millisecond

var ignoredDirs = map[string]bool{
	"vendor":       true,
	"testdata":     true,
	"node_modules": true,
}

// Watch runs Generate once and again after every change to a Go source file
// below opts.InDir, until ctx is done. Changes arriving within debounce of
// each other trigger one run. Runs never overlap. report receives the outcome
// of every run.
func Watch(ctx context.Context, opts *parser.Options, debounce time.Duration, report func(*Result, error), patterns ...string) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	opts.Normalize()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addDirs(watcher, opts.InDir); err != nil {
		return err
	}

	run := func() {
		res, err := Generate(ctx, opts, patterns...)
		if report != nil {
			report(res, err)
		}
	}
	run()

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := addDirs(watcher, event.Name); err != nil {
						slog.Default().With("path", event.Name, "error", err).Warn("failed to watch directory")
					}
					continue
				}
			}
			if !relevant(opts, event) {
				continue
			}
			slog.Default().With("file", event.Name, "op", event.Op.String()).Debug("detected change, debouncing")
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Default().With("error", err).Error("watcher error")
		}
	}
}

// relevant reports whether event changes a Go source file the generator
// reads. Generated files are ignored so that a run does not trigger the next.
func relevant(opts *parser.Options, event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".go") || opts.IsOutput(event.Name) || opts.Excluded(event.Name) {
		return false
	}
	if !opts.Tests && strings.HasSuffix(event.Name, "_test.go") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// addDirs watches root and every directory below it, skipping hidden and
// ignored directories.
func addDirs(watcher *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (ignoredDirs[name] || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return nil
}
