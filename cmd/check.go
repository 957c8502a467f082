package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmmoran/buildergen/pkg/action/check"
)

func init() {
	rootCmd.AddCommand(NewCheckCommand())
}

func NewCheckCommand() *cobra.Command {
	return withOptionFlags(&cobra.Command{
		Use:   "check [packages...]",
		Short: "verify generated builders are up to date",
		Long:  "Regenerate builders in memory and print a diff for every generated file that is stale, missing or no longer needed",
		RunE: func(c *cobra.Command, args []string) error {
			options, err := loadOptions(c)
			if err != nil {
				return err
			}
			drifts, err := check.Check(c.Context(), options, args...)
			for _, d := range drifts {
				what := "stale"
				if d.Orphan {
					what = "orphaned"
				}
				_, _ = fmt.Fprintf(c.OutOrStdout(), "%s (%s) (-disk +generated):\n%s\n", d.Path, what, d.Diff)
			}
			return err
		},
	})
}

func withOptionFlags(c *cobra.Command) *cobra.Command {
	addOptionFlags(c)
	return c
}
