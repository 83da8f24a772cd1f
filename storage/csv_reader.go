package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"basic-cleaning/models"
)

const utf8BOM = "\ufeff"

// DecodeTable reads a delimited table with a header row. The header is checked
// against models.RequiredColumns and every row must match the header width.
func DecodeTable(r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)
	// width is checked per row below so the error carries the line number
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file has no header row", models.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	table, err := models.NewTable(header)
	if err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		line, _ := reader.FieldPos(0)
		if err := table.Append(&models.Listing{Line: line, Fields: record}); err != nil {
			return nil, err
		}
	}

	return table, nil
}
