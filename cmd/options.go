package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cmmoran/buildergen/pkg/parser"
)

// optionFlags maps configuration keys to the flags overriding them.
var optionFlags = map[string]string{
	"in_dir":   "dir",
	"output":   "output",
	"tags":     "tags",
	"tests":    "tests",
	"exclude":  "exclude",
	"manifest": "manifest",
}

// addOptionFlags registers the parser option flags on c.
func addOptionFlags(c *cobra.Command) {
	d := parser.NewOptions()
	c.Flags().StringP("dir", "C", d.InDir, "directory package patterns are resolved against")
	c.Flags().StringP("output", "o", d.OutFile, "name of the generated file in every package")
	c.Flags().StringSlice("tags", []string{}, "build tags to load packages with")
	c.Flags().Bool("tests", false, "also generate builders declared in _test.go files")
	c.Flags().StringSlice("exclude", []string{}, "doublestar globs of source files to skip, ex: internal/**/legacy_*.go")
	c.Flags().String("manifest", "", "manifest recording generated files")
}

// loadOptions binds the flags of c to their configuration keys and decodes
// the merged flags, config files and environment. Binding happens per run
// since every command registers its own flags.
func loadOptions(c *cobra.Command) (*parser.Options, error) {
	for key, name := range optionFlags {
		if f := c.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	o := parser.NewOptions()
	if err := viper.Unmarshal(o); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return o, nil
}
