// Package dataset loads the coordinate tables that drive a fetch run.
package dataset

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	// ErrMissingColumn is returned when the header lacks a required column
	ErrMissingColumn = errors.New("missing column")
	// ErrEmptyTable is returned when the table has no header row at all
	ErrEmptyTable = errors.New("table is empty")
	// ErrInvalidCoordinate is returned for non-numeric or out-of-range values
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Record is one row of a coordinate table
type Record struct {
	Index int // zero-based data row position, used to name artifacts
	Lat   float64
	Lon   float64
}

// Point returns the record as an orb point (lon, lat order)
func (r Record) Point() orb.Point {
	return orb.Point{r.Lon, r.Lat}
}

// Validate checks that the coordinates are finite and within WGS84 bounds
func (r Record) Validate() error {
	if math.IsNaN(r.Lat) || math.IsInf(r.Lat, 0) || r.Lat < -90 || r.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinate, r.Lat)
	}
	if math.IsNaN(r.Lon) || math.IsInf(r.Lon, 0) || r.Lon < -180 || r.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinate, r.Lon)
	}
	return nil
}

// Columns names the header fields holding latitude and longitude
type Columns struct {
	Lat string
	Lon string
}

// DefaultColumns matches the house-sales tables
var DefaultColumns = Columns{Lat: "lat", Lon: "long"}
