package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmmoran/buildergen/pkg/action/generate"
)

func init() {
	var generateCmd = NewGenerateCommand()
	rootCmd.AddCommand(generateCmd)
}

func NewGenerateCommand() *cobra.Command {
	var (
		watch    bool
		debounce time.Duration
	)

	// generateCmd represents the buildergen generate command
	var generateCmd = &cobra.Command{
		Use:     "generate [packages...]",
		Aliases: []string{"gen"},
		Short:   "generate builders",
		Long:    "Generate a builder file in every package matching the patterns (default ./...) for declarations annotated with //builder:gen",
		RunE: func(c *cobra.Command, args []string) error {
			options, err := loadOptions(c)
			if err != nil {
				return err
			}
			if !watch {
				res, err := generate.Generate(c.Context(), options, args...)
				if err != nil {
					return err
				}
				slog.Default().With("written", len(res.Written), "unchanged", len(res.Unchanged), "removed", len(res.Removed)).Info("generated builders")
				return nil
			}
			return generate.Watch(c.Context(), options, debounce, func(res *generate.Result, err error) {
				if err != nil {
					printErrors(c.ErrOrStderr(), err)
					return
				}
				slog.Default().With("written", len(res.Written), "removed", len(res.Removed)).Info("regenerated builders")
			}, args...)
		},
	}
	addOptionFlags(generateCmd)
	generateCmd.Flags().BoolVarP(&watch, "watch", "w", false, "regenerate when source files change")
	generateCmd.Flags().DurationVar(&debounce, "debounce", generate.DefaultDebounce, "quiet period before a watch run")

	return generateCmd
}
