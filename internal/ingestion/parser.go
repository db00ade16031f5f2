package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type table struct {
	headers []string
	rows    [][]string
}

// parseCSV decodes payload (UTF-8, or UTF-16 when a byte order mark says so),
// takes the first non-blank record as the header row and pads or truncates
// every data row to the header width. Blank rows are dropped.
func parseCSV(payload []byte) (table, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	reader := csv.NewReader(transform.NewReader(bytes.NewReader(payload), decoder))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return table{}, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}

	headerIndex := -1
	for idx, record := range records {
		if !blankRow(record) {
			headerIndex = idx
			break
		}
	}
	if headerIndex < 0 {
		return table{}, ErrEmptyFile
	}

	headers := make([]string, len(records[headerIndex]))
	for i, h := range records[headerIndex] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for _, record := range records[headerIndex+1:] {
		if blankRow(record) {
			continue
		}
		rows = append(rows, padRow(record, len(headers)))
	}
	return table{headers: headers, rows: rows}, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
