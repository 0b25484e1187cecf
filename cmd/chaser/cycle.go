package main

import (
	"fmt"

	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/spf13/cobra"
)

func cycleCmd() *cobra.Command {
	var approveAll bool

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Reconcile unread replies, then review the drafts",
		Long: `Fetch unread messages, extract the invoice numbers their attachments
carry, match them against the ledger and queue a draft reply per sender.

The approval queue is then walked interactively. With --yes every drafted
reply is approved unedited; manual review items stay in the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			interrupts := cli.NewInterruptHandler(cmd.OutOrStdout())
			ctx := interrupts.HandleInterrupts(cmd.Context(), !approveAll)

			cmd.Println(cli.FormatHeading("Reconciling inbox..."))
			items, err := a.engine.RunCycle(ctx)
			if err != nil {
				return err
			}
			cmd.Println(cli.FormatInfo(fmt.Sprintf("Cycle produced %d item(s)", len(items))))

			if approveAll {
				return approveDrafts(cmd, a, items)
			}

			prompter := cli.NewCLIPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if _, err := prompter.Review(ctx, a.engine); err != nil {
				if interrupts.WasInterrupted() {
					return nil
				}
				return err
			}
			prompter.ShowCompletion()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&approveAll, "yes", "y", false, "approve every drafted reply without prompting")

	return cmd
}

// approveDrafts sends each new draft as written. One failure does not stop
// the rest; the failed item stays pending.
func approveDrafts(cmd *cobra.Command, a *app, items []model.ReportItem) error {
	failed := 0
	for _, item := range items {
		if !item.NeedsApproval() {
			if item.Kind == model.ItemManualReview {
				cmd.Println(cli.FormatWarning(fmt.Sprintf("%s needs manual review: %s", item.Sender, item.Reason)))
			}
			continue
		}

		applied, err := a.engine.Approve(cmd.Context(), item.ID, "")
		if err != nil {
			failed++
			cmd.Println(cli.FormatError(fmt.Sprintf("%s: %v", item.Sender, err)))
			continue
		}
		cmd.Println(cli.FormatSuccess(fmt.Sprintf("Replied to %s (%d received, %d missing)",
			applied.Sender, len(applied.Matched), len(applied.Missing))))
	}

	if failed > 0 {
		return fmt.Errorf("%d approval(s) failed and remain in the queue", failed)
	}
	return nil
}
