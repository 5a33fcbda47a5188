package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"docvault/pkg/service"
	"docvault/pkg/versions"
)

func newDeleteCmd(c *cli) *cobra.Command {
	var req service.DeleteRequest

	cmd := &cobra.Command{
		Use:   "delete [version-or-alias...]",
		Short: "Remove versions or aliases",
		Long: `Remove versions together with their aliases. Naming an alias removes only that alias.
With --all the whole branch content is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.All && len(args) > 0 {
				return errors.New("--all cannot be combined with versions")
			}
			req.Versions = args

			res, err := c.app.Service.Delete(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if req.All {
				fmt.Fprintf(out, "🗑️  Removed everything\n")
			}
			for _, r := range res.Removed {
				switch r := r.(type) {
				case versions.WholeVersion:
					fmt.Fprintf(out, "🗑️  Removed version %s\n", r.Info.Version)
					for _, a := range r.Info.Aliases {
						fmt.Fprintf(out, "    and alias %s\n", a)
					}
				case versions.AliasOnly:
					fmt.Fprintf(out, "🗑️  Removed alias %s from %s\n", r.Alias, r.Owner)
				}
			}
			fmt.Fprintf(out, "✅ [%s %s]\n", c.app.Service.Branch(), res.Commit.Short())
			return nil
		},
	}
	cmd.Flags().BoolVar(&req.All, "all", false, "remove every version")
	cmd.Flags().StringVarP(&req.Message, "message", "m", "", "commit message")
	return cmd
}
