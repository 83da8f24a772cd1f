package services

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basic-cleaning/models"
	"basic-cleaning/storage"
	"basic-cleaning/utils"
)

func quietLogger() *utils.Logger {
	return utils.NewLogger("off", "text")
}

func decode(t *testing.T, csvText string) *models.Table {
	t.Helper()
	table, err := storage.DecodeTable(strings.NewReader(csvText))
	require.NoError(t, err)
	return table
}

func encode(t *testing.T, table *models.Table) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, storage.EncodeTable(&buf, table))
	return buf.String()
}

func prices(table *models.Table) []float64 {
	out := make([]float64, 0, table.Len())
	for _, row := range table.Rows {
		out = append(out, row.Price)
	}
	return out
}

func TestClean_FiltersToRange(t *testing.T) {
	table := decode(t, "id,price,last_review\n1,50,2019-05-21\n2,150,2019-05-22\n3,300,2019-05-23\n")

	cleaned, stats, err := NewDataCleaner(quietLogger()).Clean(table, 100, 250)
	require.NoError(t, err)

	assert.Equal(t, []float64{150}, prices(cleaned))
	assert.Equal(t, "id,price,last_review\n2,150,2019-05-22\n", encode(t, cleaned))
	assert.Equal(t, 3, stats.RowsRead)
	assert.Equal(t, 1, stats.RowsKept)
	assert.Equal(t, 2, stats.DroppedOutOfRange)
}

func TestClean_BoundsAreInclusive(t *testing.T) {
	table := decode(t, "price,last_review\n10,2020-01-01\n20,2020-01-02\n9.99,2020-01-03\n20.01,2020-01-04\n")

	cleaned, _, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, prices(cleaned))
}

func TestClean_RangeEdges(t *testing.T) {
	input := "price,last_review\n10,2020-01-01\n20,2020-01-02\n20,2020-01-03\n"

	tests := []struct {
		name     string
		min, max float64
		want     []float64
	}{
		{"min equals max", 20, 20, []float64{20, 20}},
		{"min above max", 30, 10, []float64{}},
		{"nothing in range", 100, 200, []float64{}},
		{"everything in range", 0, 1000, []float64{10, 20, 20}},
		{"NaN bounds", math.NaN(), math.NaN(), []float64{}},
		{"NaN min", math.NaN(), 1000, []float64{}},
		{"NaN max", 0, math.NaN(), []float64{}},
		{"infinite bounds", math.Inf(-1), math.Inf(1), []float64{10, 20, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, stats, err := NewDataCleaner(quietLogger()).Clean(decode(t, input), tt.min, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.want, prices(cleaned))
			assert.Equal(t, len(tt.want), stats.RowsKept)
		})
	}
}

func TestClean_EmptyResultKeepsHeader(t *testing.T) {
	table := decode(t, "id,price,last_review\n1,5,2020-01-01\n")

	cleaned, _, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "id,price,last_review\n", encode(t, cleaned))
}

func TestClean_MissingPriceIsDropped(t *testing.T) {
	table := decode(t, "price,last_review\n,2020-01-01\nNaN,2020-01-02\nnull,2020-01-03\n15,2020-01-04\n")

	cleaned, stats, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, []float64{15}, prices(cleaned))
	assert.Equal(t, 3, stats.DroppedMissingPrice)
}

func TestClean_NonNumericPrice(t *testing.T) {
	table := decode(t, "price,last_review\n15,2020-01-01\n$12,2020-01-02\n")

	_, _, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.Error(t, err)

	var coercion *models.CoercionError
	require.ErrorAs(t, err, &coercion)
	assert.Equal(t, models.PriceColumn, coercion.Column)
	assert.Equal(t, 3, coercion.Line)
	assert.Equal(t, "$12", coercion.Value)
}

func TestClean_InvalidDateInKeptRow(t *testing.T) {
	table := decode(t, "price,last_review\n15,not-a-date\n")

	_, _, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)

	var coercion *models.CoercionError
	require.ErrorAs(t, err, &coercion)
	assert.Equal(t, models.LastReviewColumn, coercion.Column)
	assert.Equal(t, "not-a-date", coercion.Value)
}

func TestClean_InvalidDateInDroppedRowIsIgnored(t *testing.T) {
	table := decode(t, "price,last_review\n500,not-a-date\n15,2020-01-01\n")

	cleaned, _, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "price,last_review\n15,2020-01-01\n", encode(t, cleaned))
}

func TestClean_EmptyLastReviewStaysEmpty(t *testing.T) {
	table := decode(t, "price,last_review\n15,\n16,NaT\n17,2020-01-01\n")

	cleaned, stats, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "price,last_review\n15,\n16,\n17,2020-01-01\n", encode(t, cleaned))
	assert.Equal(t, 2, stats.NullLastReview)
}

func TestClean_NormalizesDates(t *testing.T) {
	table := decode(t, "price,last_review\n"+
		"11,2019-05-21\n"+
		"12,05/22/2019\n"+
		"13,2019/05/23\n"+
		"14,2019-05-24T00:00:00Z\n"+
		"15,2019-05-25T00:00:00+02:00\n"+
		"16,\"May 26, 2019\"\n")

	cleaned, stats, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, DateLayout, stats.DateLayout)

	var got []string
	for _, row := range cleaned.Rows {
		got = append(got, cleaned.Value(row, models.LastReviewColumn))
	}
	assert.Equal(t, []string{
		"2019-05-21", "2019-05-22", "2019-05-23", "2019-05-24", "2019-05-25", "2019-05-26",
	}, got)
}

func TestClean_DatesRoundTrip(t *testing.T) {
	table := decode(t, "price,last_review\n15,2019-05-21\n16,2011-12-31\n")

	cleaned, _, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)

	reparsed := decode(t, encode(t, cleaned))
	for i, row := range reparsed.Rows {
		ts, present, err := parseDate(reparsed.Value(row, models.LastReviewColumn))
		require.NoError(t, err)
		require.True(t, present)
		assert.True(t, ts.Equal(cleaned.Rows[i].LastReview))
	}
}

func TestClean_TimeOfDaySwitchesColumnLayout(t *testing.T) {
	table := decode(t, "price,last_review\n15,2019-05-21\n16,2019-05-22 13:45:00\n")

	cleaned, stats, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, DateTimeLayout, stats.DateLayout)
	assert.Equal(t, "price,last_review\n15,2019-05-21 00:00:00\n16,2019-05-22 13:45:00\n", encode(t, cleaned))
}

func TestClean_FractionalSecondsAreKept(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		layout string
		want   string
	}{
		{
			name:   "microseconds",
			input:  "price,last_review\n15,2019-05-21\n16,2019-05-22T13:45:00.25Z\n",
			layout: DateTimeMicroLayout,
			want:   "price,last_review\n15,2019-05-21 00:00:00.000000\n16,2019-05-22 13:45:00.250000\n",
		},
		{
			name:   "nanoseconds",
			input:  "price,last_review\n15,2019-05-22 13:45:00.123456789\n",
			layout: DateTimeNanoLayout,
			want:   "price,last_review\n15,2019-05-22 13:45:00.123456789\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, stats, err := NewDataCleaner(quietLogger()).Clean(decode(t, tt.input), 10, 20)
			require.NoError(t, err)
			assert.Equal(t, tt.layout, stats.DateLayout)
			assert.Equal(t, tt.want, encode(t, cleaned))

			reparsed := decode(t, encode(t, cleaned))
			for i, row := range reparsed.Rows {
				ts, _, err := parseDate(reparsed.Value(row, models.LastReviewColumn))
				require.NoError(t, err)
				assert.True(t, ts.Equal(cleaned.Rows[i].LastReview))
			}
		})
	}
}

func TestClean_OtherColumnsUntouched(t *testing.T) {
	input := "id,name,price,last_review,reviews_per_month\n" +
		"2539,\"Clean & quiet apt, home by the park\",149,2018-10-19,0.21\n" +
		"2595,Skylit Midtown Castle ,225,2019-05-21,\n"

	cleaned, _, err := NewDataCleaner(quietLogger()).Clean(decode(t, input), 100, 250)
	require.NoError(t, err)
	assert.Equal(t, input, encode(t, cleaned))
}

func TestClean_DoesNotAliasInputFields(t *testing.T) {
	table := decode(t, "price,last_review\n15,05/22/2019\n")

	_, _, err := NewDataCleaner(quietLogger()).Clean(table, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "05/22/2019", table.Value(table.Rows[0], models.LastReviewColumn))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		present bool
		wantErr bool
	}{
		{"150", 150, true, false},
		{" 99.5 ", 99.5, true, false},
		{"1e3", 1000, true, false},
		{"", 0, false, false},
		{"N/A", 0, false, false},
		{"None", 0, false, false},
		{"abc", 0, false, true},
		{"1,000", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, present, err := parsePrice(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.present, present)
			assert.Equal(t, tt.want, got)
		})
	}
}
