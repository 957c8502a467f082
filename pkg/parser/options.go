package parser

import (
	"path/filepath"
	"strings"
)

// DefaultOutFile is the name of the file generated in every package.
const DefaultOutFile = "builder_gen.go"

// Options control package loading and output.
//
// InDir    – directory patterns are resolved against
// OutFile  – generated file name, per package
// Tags     – build tags passed to the go command
// Tests    – also generate builders for declarations in _test.go files
// Exclude  – doublestar globs of source files to skip, relative to InDir
// Manifest – path of the manifest recording generated files, relative to
//            InDir, empty for none
type Options struct {
	InDir    string   `json:"in_dir,omitempty" yaml:"in_dir,omitempty" toml:"in_dir,omitempty" mapstructure:"in_dir,omitempty"`
	OutFile  string   `json:"output,omitempty" yaml:"output,omitempty" toml:"output,omitempty" mapstructure:"output,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty" mapstructure:"tags,omitempty"`
	Tests    bool     `json:"tests,omitempty" yaml:"tests,omitempty" toml:"tests,omitempty" mapstructure:"tests,omitempty"`
	Exclude  []string `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty" mapstructure:"exclude,omitempty"`
	Manifest string   `json:"manifest,omitempty" yaml:"manifest,omitempty" toml:"manifest,omitempty" mapstructure:"manifest,omitempty"`
}

func NewOptions() *Options {
	return &Options{
		InDir:   ".",
		OutFile: DefaultOutFile,
	}
}

// Normalize fills defaults and makes InDir absolute. A relative Manifest is
// resolved against InDir. Tags given as one comma separated value are split.
func (o *Options) Normalize() {
	if len(o.InDir) == 0 {
		o.InDir = "."
	}
	if abs, err := filepath.Abs(o.InDir); err == nil {
		o.InDir = abs
	}
	if o.Manifest != "" && !filepath.IsAbs(o.Manifest) {
		o.Manifest = filepath.Join(o.InDir, o.Manifest)
	}
	if len(o.OutFile) == 0 {
		o.OutFile = DefaultOutFile
	}
	o.OutFile = filepath.Base(o.OutFile)
	if !strings.HasSuffix(o.OutFile, ".go") {
		o.OutFile += ".go"
	}

	var tags []string
	for _, t := range o.Tags {
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
	}
	o.Tags = tags
}

// TestOutFile is the file receiving builders declared in _test.go files of
// the package itself.
func (o *Options) TestOutFile() string {
	return strings.TrimSuffix(o.OutFile, ".go") + "_test.go"
}

// ExternalTestOutFile is the file receiving builders declared in an external
// _test package.
func (o *Options) ExternalTestOutFile() string {
	return strings.TrimSuffix(o.OutFile, ".go") + "_ext_test.go"
}

// IsOutput reports whether name is the base name of a generated file.
func (o *Options) IsOutput(name string) bool {
	name = filepath.Base(name)
	return name == o.OutFile || name == o.TestOutFile() || name == o.ExternalTestOutFile()
}

// functional option pattern ---------------------------------------------------

type Option func(*Options)

func WithInDir(d string) Option      { return func(o *Options) { o.InDir = d } }
func WithOutFile(f string) Option    { return func(o *Options) { o.OutFile = f } }
func WithTests() Option              { return func(o *Options) { o.Tests = true } }
func WithManifest(p string) Option   { return func(o *Options) { o.Manifest = p } }
func WithTags(tags ...string) Option { return func(o *Options) { o.Tags = append(o.Tags, tags...) } }
func WithExclude(globs ...string) Option {
	return func(o *Options) {
		for _, g := range globs {
			o.Exclude = append(o.Exclude, strings.TrimSpace(g))
		}
	}
}
