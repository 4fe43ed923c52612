// Package cmd wires the esctl command tree. Each entity managed in
// Splunk Enterprise Security gets its own subcommand with list/get and
// the write operations the API supports.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"esctl/internal/config"
	"esctl/internal/log"
	"esctl/internal/render"
	"esctl/internal/splunk"
)

var (
	cfgFile      string
	jsonOutput   bool
	noColor      bool
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "esctl",
	Short: "Manage Splunk Enterprise Security content",
	Long: `esctl manages Splunk Enterprise Security content over the REST API:
findings, investigations, investigation types, notes, response plan
templates, and response plans applied to investigations.

Connection settings come from ~/.esctl/config.yaml, a file passed with
--config, or ESCTL_-prefixed environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command with the given context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.esctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
}

// runtime bundles the dependencies commands need: resolved
// configuration, logger, API client, and output renderer.
type runtime struct {
	cfg    *config.Config
	logger *log.Logger
	client *splunk.Client
	out    *render.Renderer
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.New(cfg.LogConfig())
	client, err := splunk.NewClient(cfg.SplunkConfig(), logger)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		client: client,
		out:    render.New(cmd.OutOrStdout(), render.Options{JSON: jsonOutput, NoColor: noColor}),
	}, nil
}
