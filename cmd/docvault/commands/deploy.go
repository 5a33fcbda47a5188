package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docvault/pkg/service"
)

func newDeployCmd(c *cli) *cobra.Command {
	var req service.DeployRequest

	cmd := &cobra.Command{
		Use:   "deploy <version> [alias...]",
		Short: "Publish a build directory as a version",
		Long: `Copy the contents of the site directory to <version>/ on the branch, record it in
versions.json and point every alias at it. Existing files of the version and its aliases are replaced.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			req.Version, req.Aliases = args[0], args[1:]
			if req.Redirect, err = c.redirect(cmd); err != nil {
				return err
			}
			if req.Template, err = c.template(cmd); err != nil {
				return err
			}

			start := time.Now()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📦 Deploying %s from %s... ", req.Version, req.SiteDir)
			res, err := c.app.Service.Deploy(cmd.Context(), req)
			if err != nil {
				fmt.Fprintln(out)
				return fmt.Errorf("deploy failed: %w", err)
			}
			fmt.Fprintf(out, "Done (%d files)\n", res.Files)
			if len(res.Info.Aliases) > 0 {
				fmt.Fprintf(out, "🔗 Aliases: %s\n", strings.Join(res.Info.Aliases, ", "))
			}
			fmt.Fprintf(out, "✅ [%s %s] %s\n", c.app.Service.Branch(), res.Commit.Short(), res.Info.Version)
			fmt.Fprintf(out, "   Time: %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.SiteDir, "site-dir", "d", "site", "directory holding the built site")
	f.StringVarP(&req.Title, "title", "t", "", "display title (default the version)")
	f.BoolVarP(&req.UpdateAliases, "update-aliases", "u", false, "move aliases that belong to other versions")
	f.StringVarP(&req.Message, "message", "m", "", "commit message")
	f.StringVar(&req.GeneratorVersion, "generator", "", "name and version of the site generator, used in the default message")
	addRedirectFlags(cmd)
	return cmd
}
