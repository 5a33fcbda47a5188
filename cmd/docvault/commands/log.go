package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"docvault/pkg/exporter"
)

func newLogCmd(c *cli) *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the history of the docs branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			commits, err := c.app.Service.Log(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(commits) == 0 && (output == exporter.FormatText || output == "") {
				fmt.Fprintln(cmd.OutOrStdout(), "No commits yet.")
				return nil
			}
			return exporter.PrintLog(cmd.OutOrStdout(), commits, output)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n commits (0 for all)")
	cmd.Flags().StringVarP(&output, "output", "o", exporter.FormatText, "text, json or yaml")
	return cmd
}
