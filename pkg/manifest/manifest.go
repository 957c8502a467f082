package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Version is the manifest format version written by Save.
const Version = 1

// Entry represents a generated file in the manifest.
type Entry struct {
	Path     string   `yaml:"path" json:"path"`
	Package  string   `yaml:"package" json:"package"`
	Builders []string `yaml:"builders" json:"builders"`
	Checksum string   `yaml:"checksum" json:"checksum"`
}

// Manifest tracks the files written by generate. Entry paths are relative to
// the directory holding the manifest.
type Manifest struct {
	Version int     `yaml:"version" json:"version"`
	Files   []Entry `yaml:"files" json:"files"`

	root string
}

// Checksum is the xxhash64 of generated file contents.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Load reads a manifest from the provided path. If the file does not exist,
// an empty manifest is returned.
func Load(path string) (*Manifest, error) {
	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve manifest directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{Version: Version, root: root}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Version > Version {
		return nil, fmt.Errorf("manifest version %d is newer than %d", m.Version, Version)
	}
	m.Version = Version
	m.root = root

	return &m, nil
}

// Save writes the manifest to the provided path, creating parent directories as needed.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Abs returns the absolute path of an entry.
func (m *Manifest) Abs(e Entry) string {
	p := filepath.FromSlash(e.Path)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.root, p)
}

func (m *Manifest) rel(path string) string {
	if r, err := filepath.Rel(m.root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return filepath.ToSlash(path)
}

// Record adds or replaces the entry of the file at path with its contents.
func (m *Manifest) Record(path, pkg string, builders []string, data []byte) {
	e := Entry{
		Path:     m.rel(path),
		Package:  pkg,
		Builders: builders,
		Checksum: Checksum(data),
	}
	for i := range m.Files {
		if m.Files[i].Path == e.Path {
			m.Files[i] = e
			return
		}
	}
	m.Files = append(m.Files, e)
}

// Lookup returns the entry of the file at path, if present.
func (m *Manifest) Lookup(path string) (Entry, bool) {
	rel := m.rel(path)
	for _, e := range m.Files {
		if e.Path == rel {
			return e, true
		}
	}
	return Entry{}, false
}

// Remove drops the entry of the file at path and reports whether it existed.
func (m *Manifest) Remove(path string) bool {
	rel := m.rel(path)
	for i, e := range m.Files {
		if e.Path == rel {
			m.Files = append(m.Files[:i], m.Files[i+1:]...)
			return true
		}
	}
	return false
}
