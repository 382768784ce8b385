// Package spreadsheet reads uploaded workbooks into header-keyed rows and
// writes export workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheet is returned for a workbook without sheets or without a header row.
var ErrNoSheet = errors.New("spreadsheet: workbook has no data sheet")

const maxSheetName = 31

// ReadRows parses the first sheet. The first row holds the headers; columns
// with a blank header are dropped and rows with only blank cells are skipped.
func ReadRows(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: rows: %w", err)
	}
	defer rows.Close()

	var (
		headers []string
		out     []map[string]string
	)
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("spreadsheet: row %d: %w", len(out)+2, err)
		}
		if headers == nil {
			headers = make([]string, len(cols))
			for i, c := range cols {
				headers[i] = strings.TrimSpace(c)
			}
			continue
		}
		if row := toRow(headers, cols); row != nil {
			out = append(out, row)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("spreadsheet: rows: %w", err)
	}
	if headers == nil {
		return nil, ErrNoSheet
	}
	return out, nil
}

func toRow(headers, cols []string) map[string]string {
	row := make(map[string]string, len(headers))
	blank := true
	for i, h := range headers {
		if h == "" {
			continue
		}
		v := ""
		if i < len(cols) {
			v = cols[i]
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		row[h] = v
	}
	if blank {
		return nil
	}
	return row
}

// WriteRows writes a single-sheet workbook with headers on the first row.
func WriteRows(w io.Writer, sheet string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	name := sheetName(sheet)
	if name != "Sheet1" {
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("spreadsheet: sheet name: %w", err)
		}
	}
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("spreadsheet: stream writer: %w", err)
	}
	if err := writeRow(sw, 1, headers); err != nil {
		return err
	}
	for i, r := range rows {
		if err := writeRow(sw, i+2, r); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("spreadsheet: flush: %w", err)
	}
	return f.Write(w)
}

func writeRow(sw *excelize.StreamWriter, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := sw.SetRow(cell, vals); err != nil {
		return fmt.Errorf("spreadsheet: row %d: %w", n, err)
	}
	return nil
}

func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "Sheet1"
	}
	if len([]rune(s)) > maxSheetName {
		s = string([]rune(s)[:maxSheetName])
	}
	return s
}
