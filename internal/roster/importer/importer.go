// Package importer parses roster spreadsheets (.csv and .xlsx) into roster entries.
// Every row is validated before any entry is returned.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"soc-portal/internal/roster/domain"
)

// Header is the required first row, in order.
var Header = []string{"date", "soc_portal_id", "shift"}

// maxReportedErrors bounds the row errors collected from one file.
const maxReportedErrors = 10

var (
	ErrUnsupportedFormat = errors.New("roster file must be .csv or .xlsx")
	ErrEmptyFile         = errors.New("roster file has no data rows")
	ErrBadHeader         = errors.New("roster header must be date,soc_portal_id,shift")
)

// RowError is a validation failure on one spreadsheet row (1-based, header is row 1).
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// ValidationError collects the row errors of a rejected file.
type ValidationError struct {
	Rows []*RowError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		parts[i] = r.Error()
	}
	return strings.Join(parts, "; ")
}

// Parse dispatches on the file extension of name.
func Parse(name string, r io.Reader) ([]*domain.Entry, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ParseCSV parses a comma-separated roster.
func ParseCSV(r io.Reader) ([]*domain.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records)
}

// ParseXLSX parses the first sheet of an Excel workbook.
func ParseXLSX(r io.Reader) ([]*domain.Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(rows)
}

func fromRecords(records [][]string) ([]*domain.Entry, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	if !headerMatches(records[0]) {
		return nil, ErrBadHeader
	}
	var (
		entries []*domain.Entry
		verr    ValidationError
		seen    = make(map[string]int)
	)
	for i, rec := range records[1:] {
		row := i + 2
		if blank(rec) {
			continue
		}
		if len(rec) < len(Header) {
			verr.add(row, fmt.Errorf("expected %d columns, got %d", len(Header), len(rec)))
			continue
		}
		e := &domain.Entry{
			Date:        strings.TrimSpace(rec[0]),
			SocPortalID: strings.ToUpper(strings.TrimSpace(rec[1])),
			Shift:       strings.ToUpper(strings.TrimSpace(rec[2])),
		}
		if err := e.Validate(); err != nil {
			verr.add(row, err)
			continue
		}
		key := e.Date + "/" + e.SocPortalID
		if first, dup := seen[key]; dup {
			verr.add(row, fmt.Errorf("duplicate of row %d", first))
			continue
		}
		seen[key] = row
		entries = append(entries, e)
	}
	if len(verr.Rows) > 0 {
		return nil, &verr
	}
	if len(entries) == 0 {
		return nil, ErrEmptyFile
	}
	return entries, nil
}

func (v *ValidationError) add(row int, err error) {
	if len(v.Rows) < maxReportedErrors {
		v.Rows = append(v.Rows, &RowError{Row: row, Err: err})
	}
}

func headerMatches(rec []string) bool {
	if len(rec) < len(Header) {
		return false
	}
	for i, h := range Header {
		// Excel exports sometimes carry a UTF-8 BOM on the first cell.
		if strings.ToLower(strings.TrimSpace(strings.TrimPrefix(rec[i], "\ufeff"))) != h {
			return false
		}
	}
	return true
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
