package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"docvault/pkg/exporter"
)

func newExportCmd(c *cli) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "export <version-or-alias> <dir>",
		Short: "Write the files of a deployed version to a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := c.app.Service.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			version := info.Version.String()
			out := cmd.OutOrStdout()

			exp := exporter.NewExporter(c.app.Backend, c.app.Service.Branch(), nil)
			n, err := exp.RestoreDir(cmd.Context(), version, args[1], func(path string, size int64) {
				if verbose {
					fmt.Fprintf(out, "   %s (%d bytes)\n", path, size)
				}
			})
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			fmt.Fprintf(out, "✅ Exported %s (%d files) to %s\n", version, n, args[1])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every file")
	return cmd
}
