package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	in := "date,soc_portal_id,shift\n2026-05-01,u01socp,m\n\n2026-05-01, U02SOCP ,OFF\n"
	entries, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].SocPortalID != "U01SOCP" || entries[0].Shift != "M" || entries[1].Shift != "OFF" {
		t.Errorf("entries = %+v %+v", entries[0], entries[1])
	}
}

func TestParseCSV_BOMHeader(t *testing.T) {
	in := "\ufeffDate,SOC_Portal_ID,Shift\n2026-05-01,U01SOCP,N\n"
	if _, err := ParseCSV(strings.NewReader(in)); err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
}

func TestParseCSV_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrEmptyFile},
		{"header only", "date,soc_portal_id,shift\n", ErrEmptyFile},
		{"bad header", "day,id,shift\n2026-05-01,U01SOCP,M\n", ErrBadHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseCSV_RowErrorsRejectWholeFile(t *testing.T) {
	in := "date,soc_portal_id,shift\n" +
		"2026-05-01,U01SOCP,M\n" +
		"2026-13-01,U02SOCP,M\n" +
		"2026-05-01,U03SOCP,X\n" +
		"2026-05-01,U01SOCP,N\n" +
		"2026-05-02,U04SOCP\n"
	entries, err := ParseCSV(strings.NewReader(in))
	if entries != nil {
		t.Error("no entries may be returned when any row is invalid")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	rows := []int{}
	for _, r := range verr.Rows {
		rows = append(rows, r.Row)
	}
	if len(rows) != 4 || rows[0] != 3 || rows[1] != 4 || rows[2] != 5 || rows[3] != 6 {
		t.Errorf("error rows = %v, want [3 4 5 6]", rows)
	}
	if !strings.Contains(err.Error(), "duplicate of row 2") {
		t.Errorf("err = %v", err)
	}
}

func TestParseCSV_ErrorCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("date,soc_portal_id,shift\n")
	for i := 0; i < 30; i++ {
		b.WriteString("bad,U01SOCP,M\n")
	}
	_, err := ParseCSV(strings.NewReader(b.String()))
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Rows) != maxReportedErrors {
		t.Fatalf("err = %v", err)
	}
}

func xlsxBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := xlsxBytes(t, [][]any{
		{"date", "soc_portal_id", "shift"},
		{"2026-05-01", "U01SOCP", "E"},
		{"2026-05-02", "U01SOCP", "G"},
	})
	entries, err := Parse("roster.XLSX", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 || entries[1].Shift != "G" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestParseXLSX_Corrupt(t *testing.T) {
	if _, err := ParseXLSX(strings.NewReader("not a zip")); err == nil {
		t.Fatal("ParseXLSX should reject a non-xlsx file")
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	if _, err := Parse("roster.xls", strings.NewReader("")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}
