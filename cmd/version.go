package cmd

import (
	"fmt"

	goversion "github.com/caarlos0/go-version"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/cmmoran/buildergen/cmd.version=...".
var (
	version   = ""
	commit    = ""
	treeState = ""
	date      = ""
	builtBy   = ""
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(c.OutOrStdout(), buildVersion().String())
		},
	})
}

func buildVersion() goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("buildergen", "Type-state builders for Go structs, functions and methods.", "https://github.com/cmmoran/buildergen"),
		func(i *goversion.Info) {
			if commit != "" {
				i.GitCommit = commit
			}
			if version != "" {
				i.GitVersion = version
			}
			if treeState != "" {
				i.GitTreeState = treeState
			}
			if date != "" {
				i.BuildDate = date
			}
			if builtBy != "" {
				i.BuiltBy = builtBy
			}
		},
	)
}
