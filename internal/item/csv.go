package item

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Columns is the positional column order of an items sheet.
var Columns = []string{
	"text", "filename", "subtitle", "voice", "highpass", "lowpass", "nfilter",
	"volume", "noise", "emphasis", "rate", "pitch", "clickin", "clickout",
}

const (
	colText = iota
	colFilename
	colSubtitle
	colVoice
	colHighPass
	colLowPass
	colNFilter
	colVolume
	colNoise
	colEmphasis
	colRate
	colPitch
	colClickIn
	colClickOut
)

// ErrInvalidCell is returned when a cell cannot be parsed for its column.
var ErrInvalidCell = errors.New("invalid cell")

// missingMarkers are the only cell values read as unset.
var missingMarkers = map[string]struct{}{
	"":     {},
	"nil":  {},
	"nan":  {},
	"none": {},
}

var falseWords = map[string]struct{}{
	"0":     {},
	"false": {},
	"no":    {},
	"n":     {},
	"off":   {},
}

// IsMissing reports whether a raw cell is a missing marker.
func IsMissing(cell string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(cell))]

	return ok
}

// Warner receives warnings about rows skipped while reading a sheet.
type Warner interface {
	Warn(format string, args ...any)
}

// ReadOption configures ReadCSV and ReadFile.
type ReadOption func(*readOptions)

type readOptions struct {
	warner Warner
}

// WithWarner reports skipped spacer rows to warner.
func WithWarner(warner Warner) ReadOption {
	return func(o *readOptions) {
		o.warner = warner
	}
}

const (
	logSkippedSpacerRow = "Skipping row %d (filename %q): no text"
	logSkippedEmptyItem = "Skipping item %d (filename %q): no text"
)

// ReadCSV parses an items sheet. The first row is a header and is skipped.
// Rows without text are spacer rows and are skipped with a warning. Other
// row problems such as an empty filename are left to item processing.
func ReadCSV(reader io.Reader, separator rune, opts ...ReadOption) ([]Record, error) {
	options := readOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = separator
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read items csv: %w", err)
	}

	if len(rows) <= 1 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)

	for index, row := range rows[1:] {
		rowNumber := index + 2

		record, rowErr := parseRow(row)
		if rowErr != nil {
			return nil, fmt.Errorf("row %d: %w", rowNumber, rowErr)
		}

		if strings.TrimSpace(record.Text) == "" {
			if options.warner != nil {
				options.warner.Warn(logSkippedSpacerRow, rowNumber, record.Filename)
			}

			continue
		}

		records = append(records, record)
	}

	return records, nil
}

func parseRow(row []string) (Record, error) {
	cell := func(column int) string {
		if column < len(row) {
			return strings.TrimSpace(row[column])
		}

		return ""
	}

	record := Record{
		Subtitle: parseString(cell(colSubtitle)),
		Voice:    parseString(cell(colVoice)),
		Emphasis: parseString(cell(colEmphasis)),
		Rate:     parseString(cell(colRate)),
		Pitch:    parseString(cell(colPitch)),
		ClickIn:  parseFlag(cell(colClickIn)),
		ClickOut: parseFlag(cell(colClickOut)),
	}

	if !IsMissing(cell(colText)) {
		record.Text = cell(colText)
	}

	if !IsMissing(cell(colFilename)) {
		record.Filename = cell(colFilename)
	}

	integers := []struct {
		column int
		target *Optional[int]
	}{
		{colHighPass, &record.HighPass},
		{colLowPass, &record.LowPass},
		{colNFilter, &record.NFilter},
		{colVolume, &record.Volume},
		{colNoise, &record.Noise},
	}

	for _, field := range integers {
		value, err := parseInt(cell(field.column))
		if err != nil {
			return Record{}, fmt.Errorf("column %s: %w", Columns[field.column], err)
		}

		*field.target = value
	}

	return record, nil
}

func parseString(cell string) Optional[string] {
	if IsMissing(cell) {
		return None[string]()
	}

	return Some(cell)
}

// parseInt accepts integers and integral floats such as "4000.0".
func parseInt(cell string) (Optional[int], error) {
	if IsMissing(cell) {
		return None[int](), nil
	}

	value, err := strconv.Atoi(cell)
	if err == nil {
		return Some(value), nil
	}

	floatValue, floatErr := strconv.ParseFloat(cell, 64)
	if floatErr != nil || floatValue != math.Trunc(floatValue) || math.IsInf(floatValue, 0) {
		return None[int](), fmt.Errorf("%w: %q is not an integer", ErrInvalidCell, cell)
	}

	return Some(int(floatValue)), nil
}

// parseFlag treats any present cell as enabled unless it is a false word.
func parseFlag(cell string) Optional[bool] {
	if IsMissing(cell) {
		return None[bool]()
	}

	_, isFalse := falseWords[strings.ToLower(cell)]

	return Some(!isFalse)
}
