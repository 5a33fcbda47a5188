// Package commands is the docvault command line.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"docvault/pkg/app"
	"docvault/pkg/config"
	"docvault/pkg/logging"
)

// cli holds what PersistentPreRunE built for the running subcommand.
type cli struct {
	cfgFile string
	app     *app.App
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "docvault",
		Short:         "Versioned documentation on a branch",
		Long:          `docvault publishes builds of a documentation site as versions on a branch, keeps aliases such as "latest" pointing at them, and serves the branch over HTTP.`,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(c.cfgFile); err != nil {
				return err
			}
			logger, err := logging.New(viper.GetString(config.KeyLogLevel), viper.GetString(config.KeyLogFormat))
			if err != nil {
				return err
			}
			if used := config.Used(); used != "" {
				logger.Debug("using config file " + used)
			}
			c.app, err = app.NewApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize docvault: %w", err)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default is ./config.yaml, .docvault/config.yaml or $HOME/.docvault/config.yaml)")
	pf.StringP("branch", "b", "", "branch to publish docs to (default gh-pages)")
	pf.String("backend", "", "storage backend: git or vault")
	pf.String("git-path", "", "path of the git repository (default .)")
	pf.String("log-level", "", "debug, info, warn, error or none")
	pf.String("log-format", "", "console or json")
	mustBind(pf, config.KeyBranch, "branch")
	mustBind(pf, config.KeyBackendType, "backend")
	mustBind(pf, config.KeyGitPath, "git-path")
	mustBind(pf, config.KeyLogLevel, "log-level")
	mustBind(pf, config.KeyLogFormat, "log-format")

	root.AddCommand(
		newDeployCmd(c),
		newDeleteCmd(c),
		newAliasCmd(c),
		newRetitleCmd(c),
		newSetDefaultCmd(c),
		newListCmd(c),
		newLogCmd(c),
		newServeCmd(c),
		newExportCmd(c),
	)
	// close even when the command fails
	for _, sub := range root.Commands() {
		if run := sub.RunE; run != nil {
			sub.RunE = func(cmd *cobra.Command, args []string) error {
				return errors.Join(run(cmd, args), c.close())
			}
		}
	}
	return root
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	_ = c.app.Logger.Sync()
	c.app = nil
	return err
}

func mustBind(fs *pflag.FlagSet, key, flag string) {
	if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
		panic(err)
	}
}

// template reads the file named by --template, falling back to the configured template.
func (c *cli) template(cmd *cobra.Command) ([]byte, error) {
	path, err := cmd.Flags().GetString("template")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c.app.Template, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read redirect template: %w", err)
	}
	return data, nil
}

// redirect resolves --redirect/--no-redirect against redirect.enabled.
func (c *cli) redirect(cmd *cobra.Command) (bool, error) {
	on, off := cmd.Flags().Changed("redirect"), cmd.Flags().Changed("no-redirect")
	switch {
	case on && off:
		return false, errors.New("--redirect and --no-redirect are mutually exclusive")
	case on:
		return cmd.Flags().GetBool("redirect")
	case off:
		v, err := cmd.Flags().GetBool("no-redirect")
		return !v, err
	}
	return c.app.Redirect, nil
}

func addRedirectFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("redirect", false, "make alias documents redirect to the version (default from redirect.enabled)")
	cmd.Flags().Bool("no-redirect", false, "copy documents into alias directories instead of redirecting")
	cmd.Flags().StringP("template", "T", "", "custom redirect template file")
}
