// Package importer parses spreadsheet files into the raw row mappings the
// normalizer consumes. It does no validation of its own; every row, complete
// or not, is handed on so rejections carry proper row numbers.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx/v3"
)

// Sheet is one parsed worksheet: its name and the raw header-keyed rows.
type Sheet struct {
	Name string              `json:"name"`
	Rows []map[string]string `json:"-"`
}

// ParseXLSX parses a workbook. Each sheet's first row is the header; data
// rows map header text to trimmed cell text, dropping empty cells. Sheets
// without a header row are skipped.
func ParseXLSX(data []byte) ([]Sheet, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	sheets := make([]Sheet, 0, len(file.Sheets))
	for _, sheet := range file.Sheets {
		if sheet.MaxRow < 1 {
			continue
		}

		headers := make([]string, sheet.MaxCol)
		for col := 0; col < sheet.MaxCol; col++ {
			cell, err := sheet.Cell(0, col)
			if err != nil {
				continue
			}
			headers[col] = strings.TrimSpace(cell.String())
		}

		parsed := Sheet{Name: sheet.Name, Rows: []map[string]string{}}
		for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
			row := map[string]string{}
			for col := 0; col < sheet.MaxCol; col++ {
				if headers[col] == "" {
					continue
				}
				cell, err := sheet.Cell(rowIdx, col)
				if err != nil {
					continue
				}
				value := strings.TrimSpace(cell.String())
				if value == "" {
					continue
				}
				row[headers[col]] = value
			}
			if len(row) == 0 {
				continue
			}
			parsed.Rows = append(parsed.Rows, row)
		}
		sheets = append(sheets, parsed)
	}
	return sheets, nil
}

// ParseCSV parses a comma-separated file with a header row into raw rows.
func ParseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := []map[string]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		row := map[string]string{}
		for i, value := range record {
			if i >= len(header) || header[i] == "" {
				continue
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			row[header[i]] = value
		}
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
