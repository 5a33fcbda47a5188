package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"docvault/pkg/exporter"
	"docvault/pkg/versions"
)

func newListCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "list [version-or-alias]",
		Aliases: []string{"ls"},
		Short:   "Show deployed versions, newest first",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []versions.Info
			if len(args) == 1 {
				info, err := c.app.Service.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				infos = []versions.Info{*info}
			} else {
				var err error
				if infos, err = c.app.Service.List(cmd.Context()); err != nil {
					return err
				}
			}
			if len(infos) == 0 && (output == exporter.FormatText || output == "") {
				fmt.Fprintln(cmd.OutOrStdout(), "No versions deployed yet.")
				return nil
			}
			return exporter.PrintVersions(cmd.OutOrStdout(), infos, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", exporter.FormatText, "text, json or yaml")
	return cmd
}
