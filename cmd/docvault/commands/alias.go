package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docvault/pkg/service"
)

func newAliasCmd(c *cli) *cobra.Command {
	var req service.AliasRequest

	cmd := &cobra.Command{
		Use:   "alias <version> <alias...>",
		Short: "Point aliases at an existing version",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			req.Version, req.Aliases = args[0], args[1:]
			if req.Redirect, err = c.redirect(cmd); err != nil {
				return err
			}
			if req.Template, err = c.template(cmd); err != nil {
				return err
			}

			res, err := c.app.Service.Alias(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("alias failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(res.Moved) == 0 {
				fmt.Fprintf(out, "👌 %s already has those aliases\n", res.Version)
			} else {
				fmt.Fprintf(out, "🔗 %s -> %s\n", strings.Join(res.Moved, ", "), res.Version)
			}
			fmt.Fprintf(out, "✅ [%s %s]\n", c.app.Service.Branch(), res.Commit.Short())
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Message, "message", "m", "", "commit message")
	addRedirectFlags(cmd)
	return cmd
}
