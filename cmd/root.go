package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/teemow/mailbot/internal/config"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI and the server.
func SetVersion(v string) {
	version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mailbot",
		Short: "Gmail label management gateway and MCP server",
		Long: `mailbot manages Gmail labels and applies them to recent emails.

It can run as:
  - A gateway server exposing a JSON API and MCP tools (serve)
  - A CLI talking to a running gateway (labels, emails)
  - A client of the daily digest backend (digest)`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "mailbot version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the TOML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newEmailsCmd())
	rootCmd.AddCommand(newDigestCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// loadConfig loads the file named by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mailbot version %s\n", version)
		},
	}
}
