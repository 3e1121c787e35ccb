// Package spreadsheet reads task lists from and writes Gantt charts to
// Excel workbooks.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"
)

// ImportOptions controls a task import
type ImportOptions struct {
	Mapping   *Mapping
	Location  *time.Location // zone for start times written without one
	DryRun    bool
	MaxErrors int // default 50
}

// TaskRow is one parsed sheet row
type TaskRow struct {
	Row              int        `json:"row"`
	Name             string     `json:"task_name"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	ExpectedDuration string     `json:"expected_duration"`
	Priority         string     `json:"priority,omitempty"`
	Members          []string   `json:"members,omitempty"`
	Description      string     `json:"description,omitempty"`
	EstimatedCost    float64    `json:"estimated_cost,omitempty"`
	Dependencies     []string   `json:"dependencies,omitempty"`
}

// Sink receives parsed rows in sheet order
type Sink interface {
	ImportTask(ctx context.Context, row TaskRow) error
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Sheet    string     `json:"sheet"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
	DryRun   bool       `json:"dry_run"`
}

const maxSamples = 20

var ErrTooManyErrors = errors.New("too many errors")

// ImportTasks parses the mapped sheet of an xlsx workbook and hands every
// non-empty row to sink, unless DryRun is set. Row failures are counted and
// sampled; the import stops once MaxErrors is exceeded.
func ImportTasks(ctx context.Context, r io.Reader, sink Sink, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{DryRun: opts.DryRun}
	if opts.Mapping == nil {
		opts.Mapping = DefaultMapping()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxErrors == 0 {
		opts.MaxErrors = 50
	}

	// xlsx needs the whole file in memory
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	sheet := pickSheet(xlFile, opts.Mapping.Sheet)
	if sheet == nil {
		return summary, errors.New("workbook has no sheets")
	}
	summary.Sheet = sheet.Name

	rows, err := readRows(sheet, opts)
	if err != nil {
		return summary, err
	}

	for _, res := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if res.err == nil && res.empty {
			summary.Skipped++
			continue
		}
		if res.err == nil && !opts.DryRun {
			res.err = sink.ImportTask(ctx, res.row)
		}
		if res.err != nil {
			summary.Errors++
			if len(summary.Samples) < maxSamples {
				summary.Samples = append(summary.Samples, RowError{Sheet: sheet.Name, Row: res.row.Row, Message: res.err.Error()})
			}
			if summary.Errors > opts.MaxErrors {
				return summary, fmt.Errorf("%w (%d), stopping import", ErrTooManyErrors, summary.Errors)
			}
			continue
		}
		summary.Inserted++
	}
	return summary, nil
}

func pickSheet(f *xlsx.File, name string) *xlsx.Sheet {
	if name != "" {
		for _, sh := range f.Sheets {
			if strings.EqualFold(sh.Name, name) {
				return sh
			}
		}
	}
	if len(f.Sheets) == 0 {
		return nil
	}
	return f.Sheets[0]
}

type parsedRow struct {
	row   TaskRow
	empty bool
	err   error
}

func readRows(sheet *xlsx.Sheet, opts ImportOptions) ([]parsedRow, error) {
	if sheet.MaxRow == 0 {
		return nil, nil
	}
	header, err := sheet.Row(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	columns := make(map[int]string)
	for col := 0; col < sheet.MaxCol; col++ {
		if field, ok := opts.Mapping.fieldFor(header.GetCell(col).String()); ok {
			columns[col] = field
		}
	}
	if !hasField(columns, FieldName) {
		return nil, fmt.Errorf("sheet %q has no %s column", sheet.Name, FieldName)
	}

	var out []parsedRow
	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}
		out = append(out, parseRow(row, rowIdx+1, columns, opts))
	}
	return out, nil
}

func hasField(columns map[int]string, field string) bool {
	for _, f := range columns {
		if f == field {
			return true
		}
	}
	return false
}

func parseRow(row *xlsx.Row, number int, columns map[int]string, opts ImportOptions) parsedRow {
	res := parsedRow{row: TaskRow{Row: number}, empty: true}
	t := &res.row
	for col, field := range columns {
		cell := row.GetCell(col)
		value := strings.TrimSpace(cell.String())
		if value == "" {
			continue
		}
		res.empty = false

		switch field {
		case FieldName:
			t.Name = value
		case FieldExpectedDuration:
			t.ExpectedDuration = value
		case FieldPriority:
			t.Priority = value
		case FieldDescription:
			t.Description = value
		case FieldMembers:
			t.Members = opts.Mapping.splitList(value)
		case FieldDependencies:
			t.Dependencies = opts.Mapping.splitList(value)
		case FieldEstimatedCost:
			cost, err := cellFloat(cell, value)
			if err != nil {
				res.err = fmt.Errorf("estimated_cost %q is not a number", value)
				return res
			}
			t.EstimatedCost = cost
		case FieldStartTime:
			start, err := cellTime(cell, value, opts.Location)
			if err != nil {
				res.err = err
				return res
			}
			t.StartTime = &start
		}
	}
	if !res.empty && t.Name == "" {
		res.err = errors.New("task_name is required")
	}
	return res
}

func cellFloat(cell *xlsx.Cell, value string) (float64, error) {
	if f, err := cell.Float(); err == nil {
		return f, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
}

var startLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

// cellTime reads date cells directly and text cells as RFC3339 or a local
// wall time in loc.
func cellTime(cell *xlsx.Cell, value string, loc *time.Location) (time.Time, error) {
	if cell.IsTime() {
		if t, err := cell.GetTime(false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("start_time %q is not a date", value)
}
