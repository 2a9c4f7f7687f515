package persistence

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/spec-kit/helpdesk-router/internal/config"
)

// NewSheetsService builds an authenticated Sheets API client.
func NewSheetsService(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*sheets.Service, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.Info("google sheets client ready")
	return srv, nil
}

var updatedRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// GoogleSheetTable stores rows in one tab of a spreadsheet. The first row is
// the header; data rows are addressed by their sheet row number.
type GoogleSheetTable struct {
	srv           *sheets.Service
	spreadsheetID string
	sheet         string
	columns       []string

	mu     sync.RWMutex
	header []string
}

// NewGoogleSheetTable returns a table over spreadsheetID/sheet. columns is the
// header used until the real header has been read from the sheet.
func NewGoogleSheetTable(srv *sheets.Service, spreadsheetID, sheet string, columns []string) *GoogleSheetTable {
	return &GoogleSheetTable{srv: srv, spreadsheetID: spreadsheetID, sheet: sheet, columns: columns}
}

func (t *GoogleSheetTable) Name() string { return t.sheet }

func (t *GoogleSheetTable) Rows(ctx context.Context) ([]Row, error) {
	resp, err := t.srv.Spreadsheets.Values.Get(t.spreadsheetID, t.sheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", t.sheet, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		header[i] = cellString(cell)
	}
	t.mu.Lock()
	t.header = header
	t.mu.Unlock()

	rows := make([]Row, 0, len(resp.Values)-1)
	for i, raw := range resp.Values[1:] {
		values := make(map[string]string, len(header))
		for col, name := range header {
			if col < len(raw) {
				values[name] = cellString(raw[col])
			} else {
				values[name] = ""
			}
		}
		rows = append(rows, Row{Number: i + 2, Values: values})
	}
	return rows, nil
}

func (t *GoogleSheetTable) Append(ctx context.Context, values map[string]string) (Row, error) {
	header := t.currentHeader()
	vr := &sheets.ValueRange{Values: [][]interface{}{t.ordered(header, values)}}
	resp, err := t.srv.Spreadsheets.Values.Append(t.spreadsheetID, t.sheet, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return Row{}, fmt.Errorf("append to sheet %s: %w", t.sheet, err)
	}

	row := Row{Values: map[string]string{}}
	for _, col := range header {
		row.Values[col] = values[col]
	}
	if resp.Updates != nil {
		row.Number = parseUpdatedRow(resp.Updates.UpdatedRange)
	}
	return row, nil
}

func (t *GoogleSheetTable) Save(ctx context.Context, row Row) error {
	if row.Number < 2 {
		return ErrRowNotFound
	}
	header := t.currentHeader()
	rng := fmt.Sprintf("%s!A%d", t.sheet, row.Number)
	vr := &sheets.ValueRange{Values: [][]interface{}{t.ordered(header, row.Values)}}
	_, err := t.srv.Spreadsheets.Values.Update(t.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update sheet %s row %d: %w", t.sheet, row.Number, err)
	}
	return nil
}

func (t *GoogleSheetTable) currentHeader() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.header) > 0 {
		return t.header
	}
	return t.columns
}

func (t *GoogleSheetTable) ordered(header []string, values map[string]string) []interface{} {
	out := make([]interface{}, len(header))
	for i, col := range header {
		out[i] = values[col]
	}
	return out
}

func cellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

func parseUpdatedRow(updatedRange string) int {
	m := updatedRowPattern.FindStringSubmatch(updatedRange)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
