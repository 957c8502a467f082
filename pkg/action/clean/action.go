package clean

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cmmoran/buildergen/pkg/manifest"
)

// ErrModified is returned for recorded files edited after generation.
var ErrModified = errors.New("file was modified after generation")

// Result lists what Clean did.
type Result struct {
	Removed []string
	// Missing are recorded files that no longer exist. Their entries are
	// dropped.
	Missing []string
	// Kept are modified files left in place.
	Kept []string
}

// Clean removes the files recorded in the manifest at manifestPath and drops
// their entries. Files whose checksum no longer matches are kept unless
// force is set; each of them is reported with an error wrapping ErrModified.
func Clean(manifestPath string, force bool) (*Result, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	var (
		res  = &Result{}
		kept []manifest.Entry
		errs []error
	)
	for _, e := range m.Files {
		path := m.Abs(e)
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			res.Missing = append(res.Missing, path)
			continue
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", path, err)
		case !force && manifest.Checksum(data) != e.Checksum:
			res.Kept = append(res.Kept, path)
			kept = append(kept, e)
			errs = append(errs, fmt.Errorf("%s: %w, use --force to remove it", path, ErrModified))
			continue
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove %s: %w", path, err)
		}
		res.Removed = append(res.Removed, path)
		slog.Default().With("file", path).Info("removed builders")
	}

	m.Files = kept
	if err := m.Save(manifestPath); err != nil {
		return res, err
	}
	return res, errors.Join(errs...)
}
