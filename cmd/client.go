package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/teemow/mailbot/internal/client"
	"github.com/teemow/mailbot/internal/config"
	"github.com/teemow/mailbot/internal/logging"
)

// gatewayFlags are shared by the commands that talk to a running gateway.
type gatewayFlags struct {
	url     string
	token   string
	session string
	debug   bool
}

func (f *gatewayFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.url, "gateway-url", "", "Gateway API base URL including the prefix. Can also use MAILBOT_GATEWAY_URL env var.")
	cmd.PersistentFlags().StringVar(&f.token, "token", "", "Google access token sent as bearer. Can also use MAILBOT_TOKEN env var.")
	cmd.PersistentFlags().StringVar(&f.session, "session", "", "Session id sent with every request. Can also use MAILBOT_SESSION_ID env var.")
	cmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
}

// client builds a gateway client from cfg with the flags applied on top.
func (f *gatewayFlags) client(cmd *cobra.Command, cfg *config.Config) *client.Client {
	if f.url != "" {
		cfg.Client.GatewayURL = f.url
	}
	if f.token != "" {
		cfg.Client.Token = f.token
	}
	if f.session != "" {
		cfg.Client.SessionID = f.session
	}
	if f.debug {
		cfg.Log.Debug = true
	}

	return client.New(cfg.Client.GatewayURL,
		client.WithToken(cfg.Client.Token),
		client.WithSession(cfg.Client.SessionID),
		client.WithLogger(cliLogger(cmd, cfg)),
	)
}

// cliLogger is silent unless debugging. It writes to stderr so command
// output on stdout stays parseable.
func cliLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	if !cfg.Log.Debug {
		return slog.New(slog.DiscardHandler)
	}
	return logging.NewLogger(cmd.ErrOrStderr(), cfg.Log.Format, true)
}

// renderTable writes rows under headers as a bordered table.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

// parseCommaSeparatedList splits s on commas and drops blank entries.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// splitIDs flattens arguments that may each hold a comma-separated list.
func splitIDs(args []string) []string {
	var ids []string
	for _, a := range args {
		ids = append(ids, parseCommaSeparatedList(a)...)
	}
	return ids
}
