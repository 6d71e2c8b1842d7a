package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/labelstore"
	"github.com/teemow/mailbot/internal/workflow"
)

const subjectWidth = 60

func newEmailsCmd() *cobra.Command {
	var (
		flags gatewayFlags
		count int
	)

	cmd := &cobra.Command{
		Use:   "emails",
		Short: "List recent emails and change their labels through a running gateway",
	}
	flags.register(cmd)
	cmd.PersistentFlags().IntVar(&count, "count", 0, "Number of recent emails to load (default from config, 10)")

	open := func(cmd *cobra.Command) (*workflow.Workflow, *labelstore.Store, error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, nil, err
		}
		if count > 0 {
			cfg.Client.EmailCount = count
		}
		c := flags.client(cmd, cfg)
		logger := cliLogger(cmd, cfg)
		wf := workflow.New(c, workflow.WithCount(cfg.Client.EmailCount), workflow.WithLogger(logger))
		return wf, labelstore.New(c, labelstore.WithLogger(logger)), nil
	}

	cmd.AddCommand(newEmailsListCmd(open))
	cmd.AddCommand(newEmailsApplyCmd(open))
	cmd.AddCommand(newEmailsRemoveCmd(open))
	return cmd
}

type workflowOpener func(cmd *cobra.Command) (*workflow.Workflow, *labelstore.Store, error)

func newEmailsListCmd(open workflowOpener) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent emails with their labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := wf.Load(cmd.Context()); err != nil {
				return err
			}
			emails := wf.Emails()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(emails)
			}

			// Label names are cosmetic; ids are shown when the list fails.
			names := map[string]string{}
			if err := store.Refresh(cmd.Context()); err == nil {
				for _, l := range store.Labels() {
					names[l.ID] = l.Name
				}
			}

			rows := make([][]string, 0, len(emails))
			for _, e := range emails {
				rows = append(rows, []string{e.ID, e.Date, e.From, truncate(e.Subject, subjectWidth), labelNames(e, names)})
			}
			return renderTable(cmd.OutOrStdout(), []string{"ID", "DATE", "FROM", "SUBJECT", "LABELS"}, rows)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print emails as JSON")
	return cmd
}

func newEmailsApplyCmd(open workflowOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "apply EMAIL_ID LABEL_ID...",
		Short: "Apply labels to an email",
		Long: `Apply one or more labels to an email. Label ids may be given as separate
arguments or as a comma-separated list.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, _, err := open(cmd)
			if err != nil {
				return err
			}
			labelIDs := splitIDs(args[1:])
			if err := selectEmail(cmd.Context(), wf, args[0]); err != nil {
				return err
			}
			for _, id := range labelIDs {
				wf.TogglePending(id)
			}
			if err := wf.ApplySelected(cmd.Context()); err != nil {
				if errors.Is(err, workflow.ErrNothingToApply) {
					return errors.New("no label ids given")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s to %s\n", strings.Join(labelIDs, ", "), args[0])
			return nil
		},
	}
}

func newEmailsRemoveCmd(open workflowOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "remove EMAIL_ID LABEL_ID...",
		Short: "Remove labels from an email",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, _, err := open(cmd)
			if err != nil {
				return err
			}
			labelIDs := splitIDs(args[1:])
			if len(labelIDs) == 0 {
				return errors.New("no label ids given")
			}
			if err := selectEmail(cmd.Context(), wf, args[0]); err != nil {
				return err
			}
			for _, id := range labelIDs {
				if err := wf.RemoveLabel(cmd.Context(), id); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", strings.Join(labelIDs, ", "), args[0])
			return nil
		},
	}
}

// selectEmail loads the recent emails and selects id among them.
func selectEmail(ctx context.Context, wf *workflow.Workflow, id string) error {
	if err := wf.Load(ctx); err != nil {
		return err
	}
	if err := wf.Select(id); err != nil {
		if errors.Is(err, workflow.ErrUnknownEmail) {
			return fmt.Errorf("email %s is not among the %d most recent emails (raise --count)", id, wf.Count())
		}
		return err
	}
	return nil
}

func labelNames(e gmail.Email, names map[string]string) string {
	out := make([]string, 0, len(e.LabelIDs))
	for _, id := range e.LabelIDs {
		if name, ok := names[id]; ok {
			out = append(out, name)
		} else {
			out = append(out, id)
		}
	}
	return strings.Join(out, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
