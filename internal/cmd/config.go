package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"esctl/internal/config"
	"esctl/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with the token masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Load without validating so a partial configuration can still be
	// inspected.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	red := cfg.Redacted()

	out := render.New(cmd.OutOrStdout(), render.Options{JSON: jsonOutput, NoColor: noColor})
	if out.JSONMode() {
		return out.JSON(red)
	}
	out.Detail([]render.Row{
		{Label: "Server URL", Value: red.ServerURL},
		{Label: "Token", Value: red.Token},
		{Label: "Namespace", Value: red.Namespace},
		{Label: "User", Value: red.User},
		{Label: "App", Value: red.App},
		{Label: "Timeout", Value: red.Timeout.String()},
		{Label: "Max Retries", Value: fmt.Sprintf("%d", red.MaxRetries)},
		{Label: "Log Level", Value: red.LogLevel},
	})
	return nil
}
