package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Work the approval queue",
		Long:  `List, review, approve or dismiss report items left by earlier cycles.`,
	}

	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueReviewCmd())
	cmd.AddCommand(queueApproveCmd())
	cmd.AddCommand(queueDismissCmd())

	return cmd
}

func queueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending report items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			items, err := store.PendingItems(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println(cli.FormatSuccess("Nothing awaiting approval"))
				return nil
			}

			cmd.Println(cli.RenderTable(
				[]string{"Item", "Kind", "Sender", "Received", "Missing", "Created"},
				queueRows(items),
			))
			return nil
		},
	}
}

func queueRows(items []model.ReportItem) [][]string {
	rows := make([][]string, len(items))
	for i, item := range items {
		rows[i] = []string{
			item.ID,
			cli.ItemKind(item.Kind),
			item.Sender,
			strings.Join(item.Matched, ", "),
			strings.Join(item.Missing, ", "),
			item.CreatedAt.Format("2006-01-02 15:04"),
		}
	}
	return rows
}

func queueReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Walk the pending items interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			interrupts := cli.NewInterruptHandler(cmd.OutOrStdout())
			ctx := interrupts.HandleInterrupts(cmd.Context(), true)

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
}

func queueApproveCmd() *cobra.Command {
	var body string

	cmd := &cobra.Command{
		Use:   "approve ITEM",
		Short: "Send an item's draft and commit its matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			item, err := a.engine.Approve(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Sent to %s, %d invoice(s) reconciled", item.Sender, len(item.Matched))))
			if item.Error != "" {
				cmd.Println(cli.FormatWarning(item.Error))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "send this text instead of the stored draft")

	return cmd
}

func queueDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss ITEM",
		Short: "Resolve an item without sending anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			item, err := a.engine.Dismiss(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatWarning(fmt.Sprintf("Dismissed %s from %s", item.ID, item.Sender)))
			return nil
		},
	}
}
