package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads a whole CSV table into memory.
// The first row is the header; every following row becomes a Record whose
// Index is its position among the data rows.
func Parse(r io.Reader, cols Columns) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Read header row
	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	latIdx, lonIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case cols.Lat:
			latIdx = i
		case cols.Lon:
			lonIdx = i
		}
	}
	if latIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, cols.Lat)
	}
	if lonIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, cols.Lon)
	}

	var records []Record
	for index := 0; ; index++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", index, err)
		}

		lat, err := parseField(row, latIdx, cols.Lat)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", index, err)
		}
		lon, err := parseField(row, lonIdx, cols.Lon)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", index, err)
		}

		rec := Record{Index: index, Lat: lat, Lon: lon}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", index, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseField(row []string, idx int, name string) (float64, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("%w: %s has no value", ErrInvalidCoordinate, name)
	}
	raw := strings.TrimSpace(row[idx])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, fmt.Errorf("%w: %s %q is not numeric (%v)", ErrInvalidCoordinate, name, raw, err)
	}
	return v, nil
}

// Load opens a table through src and parses it fully
func Load(ctx context.Context, src Source, location string, cols Columns) ([]Record, error) {
	rc, err := src.Open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", location, err)
	}
	defer rc.Close()

	records, err := Parse(rc, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %s: %w", location, err)
	}
	return records, nil
}
