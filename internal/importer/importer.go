// Package importer loads expected records from spreadsheets.
//
// The first row is a header. Recognized columns, in any order and case:
// identifier, sender, amount (required) and issuer, client, tax_id (optional).
// A few aliases from older ledgers are accepted, e.g. "invoice_number",
// "vendor_email", "hotel_name", "workspace" and "gstin".
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
	ErrUnsupportedFormat = errors.New("unsupported import format")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrInvalidRow is returned for a row that cannot become a record.
	ErrInvalidRow = errors.New("invalid row")
)

type column int

const (
	colIdentifier column = iota
	colSender
	colAmount
	colIssuer
	colClient
	colTaxID
)

var headerAliases = map[string]column{
	"identifier":     colIdentifier,
	"invoice_number": colIdentifier,
	"invoice_no":     colIdentifier,
	"sender":         colSender,
	"vendor_email":   colSender,
	"email":          colSender,
	"amount":         colAmount,
	"issuer":         colIssuer,
	"hotel":          colIssuer,
	"hotel_name":     colIssuer,
	"client":         colClient,
	"workspace":      colClient,
	"tax_id":         colTaxID,
	"gstin":          colTaxID,
}

var requiredColumns = map[column]string{
	colIdentifier: "identifier",
	colSender:     "sender",
	colAmount:     "amount",
}

// Load reads records from an .xlsx (first sheet) or .csv file.
func Load(path string) ([]model.ExpectedRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return ParseRows(rows)
}

// ParseRows turns a header row plus data rows into awaiting records. Blank
// rows are skipped.
func ParseRows(rows [][]string) ([]model.ExpectedRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file has no header row", ErrMissingColumn)
	}

	index, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]model.ExpectedRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cell := func(c column) string {
			pos, ok := index[c]
			if !ok || pos >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[pos])
		}

		// Spreadsheet row numbers are 1-based and include the header.
		line := i + 2
		r := model.ExpectedRecord{
			Identifier: cell(colIdentifier),
			Sender:     cell(colSender),
			Status:     model.StatusAwaiting,
			Tags: model.Tags{
				Issuer: cell(colIssuer),
				Client: cell(colClient),
				TaxID:  cell(colTaxID),
			},
		}
		if r.Identifier == "" || r.Sender == "" {
			return nil, fmt.Errorf("%w %d: identifier and sender are required", ErrInvalidRow, line)
		}

		amount, err := parseAmount(cell(colAmount))
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrInvalidRow, line, err)
		}
		r.Amount = amount

		records = append(records, r)
	}
	return records, nil
}

func mapHeader(header []string) (map[column]int, error) {
	index := make(map[column]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(key)
		if c, ok := headerAliases[key]; ok {
			if _, seen := index[c]; !seen {
				index[c] = i
			}
		}
	}

	var missing []string
	for _, c := range []column{colIdentifier, colSender, colAmount} {
		if _, ok := index[c]; !ok {
			missing = append(missing, requiredColumns[c])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

// parseAmount accepts plain or formatted amounts such as "$1,234.50".
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("amount %q is not a number", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q is not a number", s)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("amount %q is negative", s)
	}
	return d, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet has no sheets", ErrMissingColumn)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied import file
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
