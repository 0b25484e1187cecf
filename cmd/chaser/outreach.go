package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/engine"
	"github.com/spf13/cobra"
)

func kickoffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kickoff SENDER",
		Short: "Ask a sender for every invoice still expected from them",
		Long: `Start a new conversation with SENDER listing every invoice the ledger
still awaits from them. Their replies land on that thread.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.Kickoff(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.Sent {
				cmd.Println(cli.FormatInfo(fmt.Sprintf("Nothing outstanding for %s", result.Sender)))
				return nil
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Requested %d invoice(s) from %s on thread %s",
				len(result.Identifiers), result.Sender, result.ThreadID)))
			return nil
		},
	}
}

func remindCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send reminders to senders who owe invoices",
		Long: `Send one reminder to every sender with an outstanding invoice who has not
been reminded within the configured cadence (reminders.cadence).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.engine.RunReminders(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			printReminders(cmd, results, dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list who would be reminded without sending")

	return cmd
}

func printReminders(cmd *cobra.Command, results []engine.ReminderResult, dryRun bool) {
	if len(results) == 0 {
		cmd.Println(cli.FormatInfo("No reminders due"))
		return
	}

	for _, r := range results {
		ids := strings.Join(r.Identifiers, ", ")
		switch {
		case r.Err != nil:
			cmd.Println(cli.FormatError(fmt.Sprintf("%s: %v", r.Sender, r.Err)))
		case dryRun:
			cmd.Println(cli.FormatInfo(fmt.Sprintf("Would remind %s about %s", r.Sender, ids)))
		case r.Sent:
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Reminded %s about %s", r.Sender, ids)))
		}
	}
}
