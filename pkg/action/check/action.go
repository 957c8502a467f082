package check

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"

	internal "github.com/cmmoran/buildergen/internal/parser"
	"github.com/cmmoran/buildergen/pkg/parser"
)

// ErrDrift is returned when generated files on disk differ from what
// generate would write.
var ErrDrift = errors.New("generated files are out of date")

// Drift describes one stale, missing or orphaned generated file.
type Drift struct {
	Path string
	// Diff is the go-cmp diff of the file on disk (-) against the expected
	// contents (+).
	Diff   string
	Orphan bool
}

// Check regenerates in memory and compares the result with the files on
// disk. The returned error wraps ErrDrift when any file differs.
func Check(ctx context.Context, opts *parser.Options, patterns ...string) ([]Drift, error) {
	par, err := internal.NewWithOpts(opts)
	if err != nil {
		return nil, err
	}
	files, err := par.Parse(ctx, patterns...)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, f := range files {
		current, err := read(f.Path)
		if err != nil {
			return nil, err
		}
		if diff := cmp.Diff(current, string(f.Source)); diff != "" {
			drifts = append(drifts, Drift{Path: f.Path, Diff: diff})
		}
	}
	for _, orphan := range par.Orphans {
		current, err := read(orphan)
		if err != nil {
			return nil, err
		}
		drifts = append(drifts, Drift{Path: orphan, Diff: cmp.Diff(current, ""), Orphan: true})
	}

	if len(drifts) > 0 {
		return drifts, fmt.Errorf("%w: %d file(s)", ErrDrift, len(drifts))
	}
	return nil, nil
}

func read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
