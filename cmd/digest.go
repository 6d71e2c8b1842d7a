package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/mailbot/internal/config"
	"github.com/teemow/mailbot/internal/digest"
)

// digestFlags are shared by the digest commands.
type digestFlags struct {
	url   string
	token string
	debug bool
}

func (f *digestFlags) client(cmd *cobra.Command) (*digest.Client, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if f.url != "" {
		cfg.Digest.BaseURL = f.url
	}
	if f.debug {
		cfg.Log.Debug = true
	}
	token := f.token
	if token == "" {
		token = digestToken(cfg)
	}
	if token == "" {
		return nil, "", fmt.Errorf("an access token is required (--token, MAILBOT_TOKEN or GOOGLE_ACCESS_TOKEN)")
	}
	return digest.NewClient(cfg.Digest.BaseURL, digest.WithLogger(cliLogger(cmd, cfg))), token, nil
}

// digestToken prefers the client token and falls back to the static
// Google access token.
func digestToken(cfg *config.Config) string {
	if cfg.Client.Token != "" {
		return cfg.Client.Token
	}
	return cfg.Google.AccessToken
}

func newDigestCmd() *cobra.Command {
	var flags digestFlags

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Read the daily digest and manage its delivery",
	}
	cmd.PersistentFlags().StringVar(&flags.url, "digest-url", "", "Digest backend base URL. Can also use MAILBOT_DIGEST_URL env var.")
	cmd.PersistentFlags().StringVar(&flags.token, "token", "", "Google access token. Can also use MAILBOT_TOKEN or GOOGLE_ACCESS_TOKEN env vars.")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newDigestShowCmd(&flags))
	cmd.AddCommand(newDigestPreferencesCmd(&flags))
	cmd.AddCommand(newDigestNotifyCmd(&flags))
	cmd.AddCommand(newDigestSummarizeCmd(&flags))
	return cmd
}

func newDigestShowCmd(flags *digestFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show today's digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, token, err := flags.client(cmd)
			if err != nil {
				return err
			}
			d, err := c.GetDailyDigest(cmd.Context(), token)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			printDigest(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the digest as JSON")
	return cmd
}

// scheduleFlags binds the delivery settings shared by preferences and notify.
func scheduleFlags(cmd *cobra.Command, s *digest.Settings) {
	cmd.Flags().StringVar(&s.DigestTime, "time", s.DigestTime, "Delivery time as HH:MM")
	cmd.Flags().StringVar(&s.Timezone, "timezone", s.Timezone, "IANA timezone of the delivery time")
	cmd.Flags().BoolVar(&s.Enabled, "enabled", s.Enabled, "Deliver the daily digest")
}

func newDigestPreferencesCmd(flags *digestFlags) *cobra.Command {
	settings := digest.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Update digest delivery preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.ValidateSchedule(); err != nil {
				return err
			}
			c, token, err := flags.client(cmd)
			if err != nil {
				return err
			}
			resp, err := c.UpdatePreferences(cmd.Context(), token, settings.Preferences())
			if err != nil {
				return err
			}
			p := resp.Preferences
			fmt.Fprintf(cmd.OutOrStdout(), "Preferences %s: %s %s, enabled=%t\n", resp.Status, p.DigestTime, p.Timezone, p.DigestEnabled)
			return nil
		},
	}
	scheduleFlags(cmd, &settings)
	return cmd
}

func newDigestNotifyCmd(flags *digestFlags) *cobra.Command {
	settings := digest.DefaultSettings()
	var sendOnly bool

	cmd := &cobra.Command{
		Use:   "notify EMAIL_ADDRESS",
		Short: "Save delivery settings and register an address for digest emails",
		Long: `Save the delivery preferences, then register EMAIL_ADDRESS for digest
notifications. With --send-only the preferences are left untouched and only
the notification is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.EmailAddress = args[0]
			if err := settings.Validate(); err != nil {
				return err
			}
			c, token, err := flags.client(cmd)
			if err != nil {
				return err
			}

			var resp *digest.NotificationResponse
			if sendOnly {
				resp, err = c.SendEmailNotification(cmd.Context(), token, digest.NotificationRequest{
					Token:        token,
					EmailAddress: strings.TrimSpace(settings.EmailAddress),
				})
			} else {
				resp, err = c.SaveSettings(cmd.Context(), token, settings)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", resp.Message, resp.ResendResponse.ID)
			return nil
		},
	}
	scheduleFlags(cmd, &settings)
	cmd.Flags().BoolVar(&sendOnly, "send-only", false, "Only send the notification")
	return cmd
}

func newDigestSummarizeCmd(flags *digestFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize the emails the digest backend sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, token, err := flags.client(cmd)
			if err != nil {
				return err
			}
			emails, err := c.FetchEmails(cmd.Context(), token)
			if err != nil {
				return err
			}
			summary, err := c.SummarizeEmails(cmd.Context(), token, emails)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%d emails\n\n%s\n", summary.TotalEmails, summary.SummaryText)
			for _, e := range summary.ImportantEmails {
				fmt.Fprintf(w, "  ! %s (%s)\n", e.Subject, e.From)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDigest(w io.Writer, d *digest.DailyDigest) {
	section := func(title string, items []string, note string) {
		if len(items) == 0 && note == "" {
			return
		}
		fmt.Fprintf(w, "\n%s\n", title)
		for _, item := range items {
			fmt.Fprintf(w, "  - %s\n", item)
		}
		if note != "" {
			fmt.Fprintf(w, "  %s\n", note)
		}
	}

	fmt.Fprintln(w, d.Overview.Description)
	if d.Overview.TotalEmailsProcessed != "" {
		fmt.Fprintf(w, "Emails processed: %s\n", d.Overview.TotalEmailsProcessed)
	}
	section("Main topics", d.Overview.MainTopics, "")
	section("Updates", d.ImportantUpdates.Updates, d.ImportantUpdates.Notes)
	section("Announcements", d.ImportantUpdates.Announcements, "")
	section("Action items", d.ActionItems.KeyActionItems, d.ActionItems.Deadlines)
	section("Follow-ups", d.ActionItems.FollowUps, "")
	section("Discussions", d.KeyDiscussions.Discussions, d.KeyDiscussions.Notes)
	section("Decisions", d.KeyDiscussions.Decisions, "")
	if d.AdditionalNotes != "" {
		fmt.Fprintf(w, "\n%s\n", d.AdditionalNotes)
	}
}
