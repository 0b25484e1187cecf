package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/invoice-chaser/internal/analytics"
	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/service"
)

const sheetTitle = "Reconciliation"

// Writer implements service.ReportWriter on the Sheets API.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	now     func() time.Time
	config  Config
}

// NewWriter creates a writer. client is an authorized HTTP client, normally
// the operator's OAuth client; when nil, the service account key is used.
func NewWriter(ctx context.Context, client *http.Client, config Config, logger *slog.Logger, opts ...option.ClientOption) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if client == nil {
		var err error
		client, err = serviceAccountClient(ctx, config)
		if err != nil {
			return nil, err
		}
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: srv,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func serviceAccountClient(ctx context.Context, config Config) (*http.Client, error) {
	if config.ServiceAccountPath == "" {
		return nil, fmt.Errorf("%w: no Google credentials; run 'chaser auth' or set sheets.service_account_path", common.ErrMissingConfig)
	}

	jsonKey, err := os.ReadFile(config.ServiceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account key file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse service account key: %v", common.ErrInvalidConfig, err)
	}

	return jwtConfig.Client(ctx), nil
}

// Write replaces the sheet contents with the summary and the full ledger and
// returns the spreadsheet id.
func (w *Writer) Write(ctx context.Context, records []model.ExpectedRecord, summary analytics.Summary) (string, error) {
	w.logger.Info("starting ledger export", "records", len(records))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if err := common.WithRetry(ctx, func() error {
		return w.clearSheet(ctx, spreadsheetID)
	}, retryOpts); err != nil {
		return "", fmt.Errorf("failed to clear sheet: %w", err)
	}

	values := w.prepareReportData(records, summary)

	if err := common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, values)
	}, retryOpts); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, len(values))
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("ledger export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return spreadsheetID, nil
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: sheetTitle}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// prepareReportData lays out the report: title, KPIs, the client and issuer
// breakdowns, then every record.
func (w *Writer) prepareReportData(records []model.ExpectedRecord, summary analytics.Summary) [][]any {
	values := make([][]any, 0, 16+len(summary.ByClient)+len(summary.ByIssuer)+len(records))

	values = append(values,
		[]any{"Invoice Reconciliation Report", w.now().Format("Jan 2, 2006")},
		[]any{},
		[]any{"Summary"},
		[]any{"Total Received", summary.ReceivedCount},
		[]any{"Total Value", summary.ReceivedValue.StringFixed(2)},
		[]any{"Total Pending", summary.PendingCount},
		[]any{},
		[]any{"Client Breakdown"},
		[]any{"Client", "Count", "Amount"},
	)
	for _, c := range summary.ByClient {
		values = append(values, []any{c.Client, c.Count, c.Value.StringFixed(2)})
	}

	values = append(values,
		[]any{},
		[]any{"Issuer / Tax ID Breakdown"},
		[]any{"Issuer", "Tax ID", "Count", "Amount"},
	)
	for _, i := range summary.ByIssuer {
		values = append(values, []any{i.Issuer, i.TaxID, i.Count, i.Value.StringFixed(2)})
	}

	values = append(values,
		[]any{},
		[]any{},
		[]any{"Ledger"},
		[]any{"Identifier", "Sender", "Amount", "Status", "Issuer", "Client", "Tax ID", "Received", "Filename"},
	)

	sorted := make([]model.ExpectedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Sender != sorted[j].Sender {
			return sorted[i].Sender < sorted[j].Sender
		}
		return sorted[i].Identifier < sorted[j].Identifier
	})

	for _, r := range sorted {
		received := ""
		if r.SatisfiedAt != nil {
			received = r.SatisfiedAt.Format("2006-01-02")
		}
		values = append(values, []any{
			r.Identifier,
			r.Sender,
			r.Amount.StringFixed(2),
			string(r.Status),
			r.Tags.Issuer,
			r.Tags.Client,
			r.Tags.TaxID,
			received,
			r.Filename,
		})
	}

	return values
}

func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		batch := values[i:end]
		rangeStr := fmt.Sprintf("A%d", i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}

	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, totalRows int) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: 0, StartRowIndex: 0, EndRowIndex: 1, StartColumnIndex: 0, EndColumnIndex: 2},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16}},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: 0, StartRowIndex: 2, EndRowIndex: int64(totalRows), StartColumnIndex: 0, EndColumnIndex: 1},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{SheetId: 0, Dimension: "COLUMNS", StartIndex: 0, EndIndex: 9},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        0,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}
