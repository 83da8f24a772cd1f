package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

// CSVWriter handles writing a cleaned table to a CSV file
type CSVWriter struct {
	filePath string
	logger   *utils.Logger
}

// NewCSVWriter creates a new CSVWriter
func NewCSVWriter(filePath string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{filePath: filePath, logger: logger}
}

// WriteTable writes the header and every row of the table, without an index column
func (w *CSVWriter) WriteTable(table *models.Table) error {
	file, err := os.Create(w.filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}

	if err := EncodeTable(file, table); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close CSV file: %w", err)
	}

	w.logger.Debug("table written", "path", w.filePath, "rows", table.Len())
	return nil
}

// EncodeTable writes a table as CSV to out
func EncodeTable(out io.Writer, table *models.Table) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(table.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row.Fields); err != nil {
			return fmt.Errorf("failed to write CSV row for line %d: %w", row.Line, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
