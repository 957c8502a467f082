package parser

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidateExclude rejects malformed exclude globs.
func (o *Options) ValidateExclude() error {
	for _, pattern := range o.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

// Excluded reports whether the source file at path matches an exclude glob.
// Globs are matched against the path relative to InDir and against the base
// name.
func (o *Options) Excluded(path string) bool {
	if len(o.Exclude) == 0 {
		return false
	}
	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(o.InDir, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	for _, pattern := range o.Exclude {
		if matchesExcludePattern(pattern, rel, base) {
			return true
		}
	}
	return false
}

func matchesExcludePattern(pattern, rel, base string) bool {
	matched, err := doublestar.Match(pattern, rel)
	if err == nil && matched {
		return true
	}
	matched, err = doublestar.Match(pattern, base)
	return err == nil && matched
}
