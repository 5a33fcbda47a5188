package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docvault/pkg/config"
	"docvault/pkg/server"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the docs branch over HTTP",
		Long:  `Serve files from the tip of the docs branch. New commits are visible on the next request.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := viper.GetString(config.KeyServerAddr)
			h := server.Handler(c.app.Backend, c.app.Service.Branch(), c.app.Logger)

			fmt.Fprintf(cmd.OutOrStdout(), "🚀 Serving %s on http://%s/\n", c.app.Service.Branch(), addr)
			if err := server.Serve(cmd.Context(), addr, h, c.app.Logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "👋 Server stopped.")
			return nil
		},
	}
	cmd.Flags().StringP("addr", "a", "", "listen address (default localhost:8000)")
	mustBind(cmd.Flags(), config.KeyServerAddr, "addr")
	return cmd
}
