package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cmmoran/buildergen/pkg/action/clean"
	"github.com/cmmoran/buildergen/pkg/parser"
)

func init() {
	rootCmd.AddCommand(NewCleanCommand())
}

func NewCleanCommand() *cobra.Command {
	var force bool

	// cleanCmd represents the buildergen clean command
	var cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "remove generated builders",
		Long:  "Remove the files recorded in the manifest. Files edited since generation are kept unless --force is given",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			for key, name := range map[string]string{"in_dir": "dir", "manifest": "manifest"} {
				if err := viper.BindPFlag(key, c.Flags().Lookup(name)); err != nil {
					return err
				}
			}
			o := parser.NewOptions()
			o.InDir = viper.GetString("in_dir")
			o.Manifest = viper.GetString("manifest")
			if o.Manifest == "" {
				return errors.New("clean needs a manifest, set --manifest or the manifest config key")
			}
			o.Normalize()
			res, err := clean.Clean(o.Manifest, force)
			if res != nil {
				slog.Default().With("removed", len(res.Removed), "missing", len(res.Missing), "kept", len(res.Kept)).Info("cleaned builders")
			}
			return err
		},
	}
	cleanCmd.Flags().StringP("dir", "C", ".", "directory a relative manifest path is resolved against")
	cleanCmd.Flags().String("manifest", "", "manifest recording generated files")
	cleanCmd.Flags().BoolVarP(&force, "force", "f", false, "also remove files edited since generation")

	return cleanCmd
}
