package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/labelstore"
)

func newLabelsCmd() *cobra.Command {
	var flags gatewayFlags

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Manage Gmail labels through a running gateway",
	}
	flags.register(cmd)

	openStore := func(cmd *cobra.Command) (*labelstore.Store, error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		c := flags.client(cmd, cfg)
		return labelstore.New(c, labelstore.WithLogger(cliLogger(cmd, cfg))), nil
	}

	cmd.AddCommand(newLabelsListCmd(openStore))
	cmd.AddCommand(newLabelsCreateCmd(openStore))
	cmd.AddCommand(newLabelsRenameCmd(openStore))
	cmd.AddCommand(newLabelsDeleteCmd(openStore))
	return cmd
}

type storeOpener func(cmd *cobra.Command) (*labelstore.Store, error)

func newLabelsListCmd(open storeOpener) *cobra.Command {
	var (
		asJSON   bool
		userOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := store.Refresh(cmd.Context()); err != nil {
				return err
			}

			labels := store.Labels()
			if userOnly {
				filtered := labels[:0]
				for _, l := range labels {
					if labelstore.Editable(l) {
						filtered = append(filtered, l)
					}
				}
				labels = filtered
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(labels)
			}

			rows := make([][]string, 0, len(labels))
			for _, l := range labels {
				rows = append(rows, []string{l.ID, l.Name, l.Type})
			}
			return renderTable(cmd.OutOrStdout(), []string{"ID", "NAME", "TYPE"}, rows)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print labels as JSON")
	cmd.Flags().BoolVar(&userOnly, "user", false, "Only list user labels")
	return cmd
}

func newLabelsCreateCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a user label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			label, err := store.CreateLabel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created label %q (%s)\n", label.Name, label.ID)
			return nil
		},
	}
}

func newLabelsRenameCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a user label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := requireEditable(cmd, store, args[0]); err != nil {
				return err
			}
			label, err := store.UpdateLabel(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed label %s to %q\n", label.ID, label.Name)
			return nil
		},
	}
}

func newLabelsDeleteCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := requireEditable(cmd, store, args[0]); err != nil {
				return err
			}
			if err := store.DeleteLabel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted label %s\n", args[0])
			return nil
		},
	}
}

// requireEditable loads the labels and rejects system labels before a
// mutation is sent. Unknown ids are left to the gateway to report.
func requireEditable(cmd *cobra.Command, store *labelstore.Store, id string) error {
	if err := store.Refresh(cmd.Context()); err != nil {
		return err
	}
	for _, l := range store.Labels() {
		if l.ID == id && !labelstore.Editable(l) {
			return fmt.Errorf("label %s is a %s label and cannot be changed", id, gmail.LabelTypeSystem)
		}
	}
	return nil
}
