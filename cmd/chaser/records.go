package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/importer"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage the ledger of expected invoices",
		Long:  `Add, list and import the invoices you expect vendors to send.`,
	}

	cmd.AddCommand(recordsAddCmd())
	cmd.AddCommand(recordsListCmd())
	cmd.AddCommand(recordsImportCmd())

	return cmd
}

func recordsAddCmd() *cobra.Command {
	var (
		record model.ExpectedRecord
		amount string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one expected invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return common.NewUserError(fmt.Sprintf("amount %q is not a number", amount), err)
			}
			record.Amount = value

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Add(cmd.Context(), &record); err != nil {
				return fmt.Errorf("failed to add %s: %w", record.Identifier, err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Expecting %s from %s", record.Identifier, record.Sender)))
			return nil
		},
	}

	cmd.Flags().StringVar(&record.Identifier, "identifier", "", "invoice number as printed on the document")
	cmd.Flags().StringVar(&record.Sender, "sender", "", "email address expected to send it")
	cmd.Flags().StringVar(&amount, "amount", "0", "invoice amount")
	cmd.Flags().StringVar(&record.Tags.Issuer, "issuer", "", "issuer name, for reporting")
	cmd.Flags().StringVar(&record.Tags.Client, "client", "", "client or workspace, for reporting")
	cmd.Flags().StringVar(&record.Tags.TaxID, "tax-id", "", "issuer tax id, for reporting")
	_ = cmd.MarkFlagRequired("identifier")
	_ = cmd.MarkFlagRequired("sender")

	return cmd
}

func recordsListCmd() *cobra.Command {
	var filter service.RecordFilter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				filter.Status = model.RecordStatus(strings.ToUpper(status))
				if !filter.Status.Valid() {
					return common.NewUserError(fmt.Sprintf("unknown status %q, use awaiting or satisfied", status), common.ErrInvalidConfig)
				}
			}

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListRecords(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println(cli.FormatInfo("No records match"))
				return nil
			}

			cmd.Println(cli.RenderTable(recordHeaders, recordRows(records)))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Sender, "sender", "", "only records from this sender")
	cmd.Flags().StringVar(&status, "status", "", "only records in this status (awaiting, satisfied)")

	return cmd
}

var recordHeaders = []string{"Identifier", "Sender", "Amount", "Status", "Issuer", "Client", "Thread", "File"}

func recordRows(records []model.ExpectedRecord) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.Identifier,
			r.Sender,
			r.Amount.StringFixed(2),
			cli.RecordStatus(r.Status),
			r.Tags.Issuer,
			r.Tags.Client,
			r.ThreadID,
			r.Filename,
		}
	}
	return rows
}

func recordsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import expected invoices from a spreadsheet",
		Long: `Import expected invoices from an .xlsx or .csv file.

The first row names the columns. identifier, sender and amount are required;
issuer, client and tax_id are optional. Identifiers already in the ledger are
skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := importer.Load(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			added, skipped, err := store.AddAll(cmd.Context(), records)
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", args[0], err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d record(s) from %s", added, args[0])))
			if len(skipped) > 0 {
				cmd.Println(cli.FormatWarning(fmt.Sprintf("Skipped %d already in the ledger: %s",
					len(skipped), strings.Join(skipped, ", "))))
			}
			return nil
		},
	}
}
