package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

// Canonical layouts for the last_review column. The whole column uses DateLayout
// unless some value carries a time of day, and a fractional layout when some value
// carries sub-second digits.
const (
	DateLayout          = "2006-01-02"
	DateTimeLayout      = "2006-01-02 15:04:05"
	DateTimeMicroLayout = "2006-01-02 15:04:05.000000"
	DateTimeNanoLayout  = "2006-01-02 15:04:05.000000000"
)

// inputDateLayouts are tried in order when parsing last_review
var inputDateLayouts = []string{
	DateLayout,
	DateTimeLayout,
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// nullTokens mark a missing value in a numeric or date cell
var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"none": true,
	"nat":  true,
}

// DataCleaner filters listings to a price range and canonicalizes last_review
type DataCleaner struct {
	logger *utils.Logger
}

// NewDataCleaner creates a new DataCleaner
func NewDataCleaner(logger *utils.Logger) *DataCleaner {
	return &DataCleaner{logger: logger}
}

// Clean returns a new table holding the rows with minPrice <= price <= maxPrice,
// in source order, with last_review rewritten in canonical form. Rows with a
// missing price are dropped; a non-numeric price or an unparseable date in a kept
// row is returned as a *models.CoercionError.
func (c *DataCleaner) Clean(table *models.Table, minPrice, maxPrice float64) (*models.Table, models.CleaningStats, error) {
	stats := models.CleaningStats{RowsRead: table.Len()}

	priceIdx, ok := table.Column(models.PriceColumn)
	if !ok {
		return nil, stats, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.PriceColumn)
	}
	reviewIdx, ok := table.Column(models.LastReviewColumn)
	if !ok {
		return nil, stats, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.LastReviewColumn)
	}

	kept := make([]*models.Listing, 0, table.Len())
	for _, row := range table.Rows {
		raw := row.Fields[priceIdx]
		price, present, err := parsePrice(raw)
		if err != nil {
			return nil, stats, &models.CoercionError{Column: models.PriceColumn, Line: row.Line, Value: raw, Err: err}
		}
		if !present {
			stats.DroppedMissingPrice++
			continue
		}
		// NaN bounds keep nothing
		if !(price >= minPrice && price <= maxPrice) {
			stats.DroppedOutOfRange++
			continue
		}
		row.Price, row.HasPrice = price, true
		kept = append(kept, row)
	}

	// dates are only coerced on retained rows
	withTime, withMicros, withNanos := false, false, false
	for _, row := range kept {
		raw := row.Fields[reviewIdx]
		ts, present, err := parseDate(raw)
		if err != nil {
			return nil, stats, &models.CoercionError{Column: models.LastReviewColumn, Line: row.Line, Value: raw, Err: err}
		}
		if !present {
			stats.NullLastReview++
			continue
		}
		row.LastReview, row.HasLastReview = ts, true
		if !isMidnight(ts) {
			withTime = true
		}
		if ns := ts.Nanosecond(); ns%1000 != 0 {
			withNanos = true
		} else if ns != 0 {
			withMicros = true
		}
	}

	switch {
	case withNanos:
		stats.DateLayout = DateTimeNanoLayout
	case withMicros:
		stats.DateLayout = DateTimeMicroLayout
	case withTime:
		stats.DateLayout = DateTimeLayout
	default:
		stats.DateLayout = DateLayout
	}

	out := make([]*models.Listing, 0, len(kept))
	for _, row := range kept {
		fields := append([]string(nil), row.Fields...)
		fields[reviewIdx] = ""
		if row.HasLastReview {
			fields[reviewIdx] = row.LastReview.Format(stats.DateLayout)
		}
		out = append(out, &models.Listing{
			Line:          row.Line,
			Fields:        fields,
			Price:         row.Price,
			HasPrice:      true,
			LastReview:    row.LastReview,
			HasLastReview: row.HasLastReview,
		})
	}
	stats.RowsKept = len(out)

	c.logger.Info("cleaned dataset",
		"rows_read", stats.RowsRead,
		"rows_kept", stats.RowsKept,
		"dropped_out_of_range", stats.DroppedOutOfRange,
		"dropped_missing_price", stats.DroppedMissingPrice,
		"null_last_review", stats.NullLastReview,
	)
	return table.WithRows(out), stats, nil
}

// parsePrice returns the numeric price, or present=false for an empty or null cell
func parsePrice(raw string) (float64, bool, error) {
	s := strings.TrimSpace(raw)
	if nullTokens[strings.ToLower(s)] {
		return 0, false, nil
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, false, err
	}
	if math.IsNaN(val) {
		return 0, false, nil
	}
	return val, true, nil
}

// parseDate parses a last_review value, or returns present=false for an empty or null cell.
// A zone offset is dropped so the wall-clock date is kept as written.
func parseDate(raw string) (time.Time, bool, error) {
	s := strings.TrimSpace(raw)
	if nullTokens[strings.ToLower(s)] {
		return time.Time{}, false, nil
	}
	for _, layout := range inputDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			wall := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC)
			return wall, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date format")
}

func isMidnight(ts time.Time) bool {
	return ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 && ts.Nanosecond() == 0
}
