package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/analytics"
	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/config"
	"github.com/Veraticus/invoice-chaser/internal/googleauth"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/service"
	"github.com/Veraticus/invoice-chaser/internal/sheets"
	"github.com/spf13/cobra"
)

// ledgerReader is the slice of the store the reporting commands need.
type ledgerReader interface {
	AllRecords(ctx context.Context) ([]model.ExpectedRecord, error)
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize received and outstanding invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.AllRecords(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Println(renderReport(analytics.Summarize(records)))
			return nil
		},
	}
}

func renderReport(summary analytics.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Received: %d invoice(s), %s\n", cli.SuccessIcon, summary.ReceivedCount, summary.ReceivedValue.StringFixed(2))
	fmt.Fprintf(&b, "%s Pending:  %d invoice(s)", cli.WarningIcon, summary.PendingCount)
	sections := []string{cli.RenderBox(cli.ChartIcon+" Reconciliation Summary", b.String())}

	if len(summary.ByClient) > 0 {
		rows := make([][]string, len(summary.ByClient))
		for i, c := range summary.ByClient {
			rows[i] = []string{c.Client, fmt.Sprint(c.Count), c.Value.StringFixed(2)}
		}
		sections = append(sections, cli.HeadingStyle.Render("By client"),
			cli.RenderTable([]string{"Client", "Invoices", "Value"}, rows))
	}

	if len(summary.ByIssuer) > 0 {
		rows := make([][]string, len(summary.ByIssuer))
		for i, is := range summary.ByIssuer {
			rows[i] = []string{is.Issuer, is.TaxID, fmt.Sprint(is.Count), is.Value.StringFixed(2)}
		}
		sections = append(sections, cli.HeadingStyle.Render("By issuer"),
			cli.RenderTable([]string{"Issuer", "Tax ID", "Invoices", "Value"}, rows))
	}

	if len(summary.Recent) > 0 {
		rows := make([][]string, len(summary.Recent))
		for i, r := range summary.Recent {
			when := ""
			if r.SatisfiedAt != nil {
				when = r.SatisfiedAt.Format("2006-01-02 15:04")
			}
			rows[i] = []string{r.Identifier, r.Sender, r.Amount.StringFixed(2), when}
		}
		sections = append(sections, cli.HeadingStyle.Render("Recently received"),
			cli.RenderTable([]string{"Identifier", "Sender", "Amount", "Received"}, rows))
	}

	return strings.Join(sections, "\n\n")
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the ledger and summary to Google Sheets",
		Long: `Write the ledger and its summary to a Google Sheets spreadsheet.

The spreadsheet is sheets.spreadsheet_id when set, otherwise one named
sheets.spreadsheet_name is created. Access uses the token from 'chaser auth',
or a service account when sheets.service_account_path is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sheetsConfig, err := config.LoadSheetsConfig()
			if err != nil {
				return err
			}

			var client *http.Client
			if sheetsConfig.ServiceAccountPath == "" {
				client, err = googleauth.HTTPClient(ctx, config.LoadGoogleAuthConfig())
				if err != nil {
					return err
				}
			}

			writer, err := sheets.NewWriter(ctx, client, *sheetsConfig, slog.Default())
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return runExport(ctx, store, writer, cmd.OutOrStdout())
		},
	}
}

func runExport(ctx context.Context, store ledgerReader, writer service.ReportWriter, out io.Writer) error {
	records, err := store.AllRecords(ctx)
	if err != nil {
		return err
	}

	location, err := writer.Write(ctx, records, analytics.Summarize(records))
	if err != nil {
		return fmt.Errorf("failed to export ledger: %w", err)
	}

	_, err = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Exported %d record(s) to %s", len(records), location)))
	return err
}
