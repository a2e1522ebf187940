package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// decodeCSV parses CSV bytes into Rows. The first line must be the header.
// Malformed lines are skipped and counted.
func decodeCSV(data []byte) ([]Row, int, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read CSV headers: %w", err)
	}

	idx, err := newColumnIndex(headers)
	if err != nil {
		return nil, 0, err
	}

	var rows []Row
	skipped := 0
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if isBlank(cells) {
			continue
		}
		rows = append(rows, idx.row(cells))
	}

	return rows, skipped, nil
}

// decodeXLSX parses the first worksheet of an XLSX workbook into Rows.
// Cells are read as raw values, so date cells arrive as Excel serial numbers
// and are rewritten to DateLayout here.
func decodeXLSX(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	lines, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("read sheet %q: no header row", sheets[0])
	}

	idx, err := newColumnIndex(lines[0])
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(lines)-1)
	for _, cells := range lines[1:] {
		if isBlank(cells) {
			continue
		}
		row := idx.row(cells)
		row.Birthdate = excelSerialToText(row.Birthdate)
		row.Date = excelSerialToText(row.Date)
		rows = append(rows, row)
	}

	return rows, nil
}

// excelSerialToText converts an Excel date serial ("36526") to DateLayout text.
// Non-numeric values are returned unchanged.
func excelSerialToText(v string) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial <= 0 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format("02-01-2006")
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
