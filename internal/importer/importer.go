// Package importer parses tabular expense files (CSV and xlsx) into
// domain expenses. Parsing is all-or-nothing per row, never per file:
// valid rows import even when others are rejected.
package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// Required and optional column names, matched case-insensitively against
// the file's header row.
const (
	colDate     = "date"
	colTitle    = "title"
	colAmount   = "amount"
	colCategory = "category"
	colNotes    = "notes"
)

// RowError describes one rejected row. Row numbers are 1-based and count
// the header, matching what the user sees in a spreadsheet.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) String() string {
	if e.Row == 0 {
		return e.Reason
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Result reports the outcome of an import run.
type Result struct {
	Expenses []core.Expense
	Rejected []RowError
}

// columnMap resolves header names to column indexes.
type columnMap map[string]int

var errMissingColumns = fmt.Errorf("file must have %s, %s and %s columns", colDate, colTitle, colAmount)

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, taken := cols[key]; !taken {
			cols[key] = i
		}
	}
	for _, required := range []string{colDate, colTitle, colAmount} {
		if _, ok := cols[required]; !ok {
			return nil, errMissingColumns
		}
	}
	return cols, nil
}

func (c columnMap) field(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseRow turns one record into an expense. rowNum is the 1-based file
// row for error reporting.
func parseRow(cols columnMap, record []string, rowNum int) (core.Expense, *RowError) {
	reject := func(format string, args ...any) (core.Expense, *RowError) {
		return core.Expense{}, &RowError{Row: rowNum, Reason: fmt.Sprintf(format, args...)}
	}

	title := cols.field(record, colTitle)
	if title == "" {
		return reject("missing title")
	}

	rawDate := cols.field(record, colDate)
	if rawDate == "" {
		return reject("missing date")
	}
	date, err := core.ParseDate(rawDate)
	if err != nil {
		return reject("invalid date %q, expected YYYY-MM-DD", rawDate)
	}

	rawAmount := cols.field(record, colAmount)
	if rawAmount == "" {
		return reject("missing amount")
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return reject("invalid amount %q", rawAmount)
	}

	// Unknown or missing categories fall back to Other rather than
	// rejecting the row.
	category, _ := core.ParseCategory(cols.field(record, colCategory))

	return core.Expense{
		Title:    title,
		Amount:   amount,
		Date:     date,
		Category: category,
		Notes:    cols.field(record, colNotes),
	}, nil
}

// parseAmount accepts decimal amounts with either separator ("12.34" or
// "12,34") and rounds half-up to whole cents.
func parseAmount(raw string) (core.Money, error) {
	normalized := strings.ReplaceAll(raw, ",", ".")
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return core.Money{}, err
	}
	if d.IsNegative() {
		return core.Money{}, core.ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsInteger() || !cents.BigInt().IsInt64() {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.Money{Cents: cents.IntPart()}, nil
}

// parseRecords runs the shared per-row pipeline over decoded records.
// The first record is the header.
func parseRecords(records [][]string) (Result, error) {
	if len(records) == 0 {
		return Result{}, fmt.Errorf("file is empty")
	}

	cols, err := mapColumns(records[0])
	if err != nil {
		return Result{}, err
	}

	var result Result
	for i, record := range records[1:] {
		rowNum := i + 2 // 1-based, after the header
		if isBlankRecord(record) {
			continue
		}
		e, rowErr := parseRow(cols, record, rowNum)
		if rowErr != nil {
			result.Rejected = append(result.Rejected, *rowErr)
			continue
		}
		result.Expenses = append(result.Expenses, e)
	}
	return result, nil
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
