package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetitleCmd(c *cli) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "retitle <version> <title>",
		Short: "Change the display title of a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Service.Retitle(cmd.Context(), args[0], args[1], message)
			if err != nil {
				return fmt.Errorf("retitle failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ [%s %s] %s is now %q\n", c.app.Service.Branch(), res.Commit.Short(), args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}
