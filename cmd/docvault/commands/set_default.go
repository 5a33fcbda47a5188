package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSetDefaultCmd(c *cli) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "set-default <version-or-alias>",
		Short: "Redirect the site root to a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := c.template(cmd)
			if err != nil {
				return err
			}
			res, err := c.app.Service.SetDefault(cmd.Context(), args[0], template, message)
			if err != nil {
				return fmt.Errorf("set-default failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🏠 / -> %s/\n", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "✅ [%s %s]\n", c.app.Service.Branch(), res.Commit.Short())
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringP("template", "T", "", "custom redirect template file")
	return cmd
}
