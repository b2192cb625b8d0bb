// Package google implements the spreadsheet mirror on the Google Sheets
// API using service-account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ sheets.MirrorWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_NAME
// (default "Expenses").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Expenses"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// AppendExpense appends one expense row (date, title, amount, category,
// notes), the same column layout as the CSV export.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) error {
	vr := &gsheet.ValueRange{
		Values: [][]any{{
			e.Date.ISO(),
			e.Title,
			e.Amount.String(),
			string(e.Category),
			e.Notes,
		}},
	}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:E", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append expense row: %w", err)
	}

	slog.InfoContext(ctx, "Expense mirrored to sheet",
		"title", e.Title,
		"date", e.Date.ISO(),
		"sheet", c.sheetName)

	return nil
}

// RemoveExpense finds the first row matching the expense's date, title,
// amount, and category and deletes it. A missing row is not an error;
// the mirror may simply have never seen the expense.
func (c *Client) RemoveExpense(ctx context.Context, e core.Expense) error {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, c.sheetName+"!A:E").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("read sheet rows: %w", err)
	}

	rowIndex := -1
	for i, row := range resp.Values {
		if len(row) < 4 {
			continue
		}
		if cellString(row[0]) == e.Date.ISO() &&
			cellString(row[1]) == e.Title &&
			cellString(row[2]) == e.Amount.String() &&
			cellString(row[3]) == string(e.Category) {
			rowIndex = i
			break
		}
	}
	if rowIndex < 0 {
		slog.WarnContext(ctx, "Expense row not found in sheet, nothing to remove",
			"title", e.Title,
			"date", e.Date.ISO())
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete sheet row: %w", err)
	}

	slog.InfoContext(ctx, "Expense row removed from sheet",
		"title", e.Title,
		"row", rowIndex+1)

	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}

func cellString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
