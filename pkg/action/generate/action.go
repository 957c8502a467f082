package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	internal "github.com/cmmoran/buildergen/internal/parser"
	"github.com/cmmoran/buildergen/pkg/manifest"
	"github.com/cmmoran/buildergen/pkg/parser"
)

// Result lists the files touched by a run.
type Result struct {
	Written   []string
	Unchanged []string
	Removed   []string
}

// Generate writes the builder file of every package matching patterns and
// removes generated files whose package no longer declares builders. Nothing
// is written when any package fails.
func Generate(ctx context.Context, opts *parser.Options, patterns ...string) (*Result, error) {
	par, err := internal.NewWithOpts(opts)
	if err != nil {
		return nil, err
	}
	files, err := par.Parse(ctx, patterns...)
	if err != nil {
		return nil, err
	}

	var m *manifest.Manifest
	if par.Opts.Manifest != "" {
		if m, err = manifest.Load(par.Opts.Manifest); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	for _, f := range files {
		old, err := os.ReadFile(f.Path)
		switch {
		case err == nil && bytes.Equal(old, f.Source):
			res.Unchanged = append(res.Unchanged, f.Path)
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return res, fmt.Errorf("read %s: %w", f.Path, err)
		default:
			if err := os.WriteFile(f.Path, f.Source, 0o644); err != nil {
				return res, fmt.Errorf("write %s: %w", f.Path, err)
			}
			res.Written = append(res.Written, f.Path)
			slog.Default().With("file", f.Path, "builders", len(f.Builders)).Info("wrote builders")
		}
		if m != nil {
			m.Record(f.Path, f.PkgPath, f.Builders, f.Source)
		}
	}

	for _, orphan := range par.Orphans {
		if err := os.Remove(orphan); err != nil && !errors.Is(err, os.ErrNotExist) {
			return res, fmt.Errorf("remove %s: %w", orphan, err)
		}
		res.Removed = append(res.Removed, orphan)
		if m != nil {
			m.Remove(orphan)
		}
		slog.Default().With("file", orphan).Info("removed stale builders")
	}

	if m != nil {
		if err := m.Save(par.Opts.Manifest); err != nil {
			return res, err
		}
	}
	return res, nil
}
