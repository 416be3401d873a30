package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// Declared data types of raw cells.
const (
	DataTypeEmpty   = "empty"
	DataTypeInteger = "integer"
	DataTypeNumber  = "number"
	DataTypeBoolean = "boolean"
	DataTypeDate    = "date"
	DataTypeString  = "string"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Sheet is a parsed CSV file. Row i of Rows is spreadsheet row i+2.
type Sheet struct {
	Columns  []string
	Rows     [][]string
	Warnings []string
}

// Decode converts data to UTF-8 and strips any byte order mark. Input that is
// neither UTF-16 with a BOM nor valid UTF-8 is read as Latin-1.
func Decode(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, "", fmt.Errorf("UTF-16 decode failed: %w", err)
		}
		return decoded, "utf-16", nil
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], "utf-8-bom", nil
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("latin-1 decode failed: %w", err)
		}
		return decoded, "latin-1", nil
	}
}

// ParseCSV reads a CSV file with a header row. Text is NFC-normalised. Short
// rows are padded and long rows truncated to the header width, with a warning.
func ParseCSV(data []byte) (*Sheet, error) {
	decoded, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: no header row found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	sheet := &Sheet{Columns: make([]string, len(header))}
	for i, h := range header {
		sheet.Columns[i] = normalize(h)
	}

	rowNumber := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNumber++
		if err != nil {
			sheet.Warnings = append(sheet.Warnings, fmt.Sprintf("row %d: parse error: %v", rowNumber, err))
			sheet.Rows = append(sheet.Rows, nil)
			continue
		}

		switch {
		case len(row) < len(sheet.Columns):
			sheet.Warnings = append(sheet.Warnings, fmt.Sprintf("row %d: %d columns, expected %d; padded", rowNumber, len(row), len(sheet.Columns)))
			padded := make([]string, len(sheet.Columns))
			copy(padded, row)
			row = padded
		case len(row) > len(sheet.Columns):
			sheet.Warnings = append(sheet.Warnings, fmt.Sprintf("row %d: %d columns, expected %d; truncated", rowNumber, len(row), len(sheet.Columns)))
			row = row[:len(sheet.Columns)]
		}
		for i := range row {
			row[i] = normalize(row[i])
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// RawCells flattens the sheet into one cell per column of every parsed row.
// Rows that failed to parse keep their row number but produce no cells.
func (s *Sheet) RawCells(tenantID, batchID, sheetName string) []*model.RawCell {
	cells := make([]*model.RawCell, 0, len(s.Rows)*len(s.Columns))
	for i, row := range s.Rows {
		for j, value := range row {
			cells = append(cells, &model.RawCell{
				TenantID:   tenantID,
				BatchID:    batchID,
				SheetName:  sheetName,
				RowNumber:  i + 2,
				ColumnName: s.Columns[j],
				Value:      value,
				DataType:   InferDataType(value),
			})
		}
	}
	return cells
}

func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// InferDataType classifies a cell value.
func InferDataType(value string) string {
	if value == "" {
		return DataTypeEmpty
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return DataTypeInteger
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return DataTypeNumber
	}
	switch strings.ToLower(value) {
	case "true", "false":
		return DataTypeBoolean
	}
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return DataTypeDate
	}
	return DataTypeString
}

// TypedValue converts a raw cell value to the Go value of its declared type.
func TypedValue(value, dataType string) interface{} {
	switch dataType {
	case DataTypeEmpty:
		return nil
	case DataTypeInteger:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case DataTypeNumber:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case DataTypeBoolean:
		return strings.EqualFold(value, "true")
	}
	return value
}
