// Package dataset holds the in-memory representation of station
// measurement data. A Frame is column-oriented: statistics and cleaning
// both operate on whole columns, so rows are only materialized at the
// CSV boundary.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Canonical measurement column names as they appear in the station CSV
// exports. Optional columns may be absent from a given export.
const (
	ColGHI           = "GHI"
	ColDNI           = "DNI"
	ColDHI           = "DHI"
	ColModA          = "ModA"
	ColModB          = "ModB"
	ColTModA         = "TModA"
	ColTModB         = "TModB"
	ColTamb          = "Tamb"
	ColRH            = "RH"
	ColWS            = "WS"
	ColWSgust        = "WSgust"
	ColWSstdev       = "WSstdev"
	ColBP            = "BP"
	ColCleaning      = "Cleaning"
	ColPrecipitation = "Precipitation"
)

// Derived temporal columns added by the cleaning stage.
const (
	ColHour      = "Hour"
	ColMonth     = "Month"
	ColDayOfWeek = "DayOfWeek"
	ColSeason    = "Season"
)

// ErrEmptyFrame is returned by operations that require at least one row.
var ErrEmptyFrame = errors.New("dataset: frame has no rows")

// Frame is a column-oriented table of observations. Every column slice
// has the same length as Timestamps. Missing cells are NaN.
type Frame struct {
	Timestamps []time.Time
	columns    map[string][]float64
	order      []string
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{columns: make(map[string][]float64)}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Timestamps) }

// ColumnNames returns column names in their original order.
func (f *Frame) ColumnNames() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns the raw column slice, NaNs included. The slice is the
// frame's backing storage; callers that mutate it mutate the frame.
func (f *Frame) Column(name string) ([]float64, error) {
	col, ok := f.columns[name]
	if !ok {
		return nil, fmt.Errorf("dataset: no column %q", name)
	}
	return col, nil
}

// ColumnDropNA returns a copy of the named column with NaNs removed.
func (f *Frame) ColumnDropNA(name string) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// AddColumn appends a column. The values slice must match the row count
// unless the frame is empty, in which case it sets the row count and
// timestamps must be added separately by the caller.
func (f *Frame) AddColumn(name string, values []float64) error {
	if f.Has(name) {
		return fmt.Errorf("dataset: column %q already exists", name)
	}
	if f.Len() > 0 && len(values) != f.Len() {
		return fmt.Errorf("dataset: column %q has %d values, frame has %d rows", name, len(values), f.Len())
	}
	f.columns[name] = values
	f.order = append(f.order, name)
	return nil
}

// SetColumn replaces an existing column's values.
func (f *Frame) SetColumn(name string, values []float64) error {
	if !f.Has(name) {
		return fmt.Errorf("dataset: no column %q", name)
	}
	if len(values) != f.Len() {
		return fmt.Errorf("dataset: column %q has %d values, frame has %d rows", name, len(values), f.Len())
	}
	f.columns[name] = values
	return nil
}

// Filter returns a new frame keeping only rows where keep[i] is true.
func (f *Frame) Filter(keep []bool) (*Frame, error) {
	if len(keep) != f.Len() {
		return nil, fmt.Errorf("dataset: keep mask has %d entries, frame has %d rows", len(keep), f.Len())
	}
	out := NewFrame()
	out.order = make([]string, len(f.order))
	copy(out.order, f.order)

	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	out.Timestamps = make([]time.Time, 0, n)
	for i, k := range keep {
		if k {
			out.Timestamps = append(out.Timestamps, f.Timestamps[i])
		}
	}
	for name, col := range f.columns {
		filtered := make([]float64, 0, n)
		for i, k := range keep {
			if k {
				filtered = append(filtered, col[i])
			}
		}
		out.columns[name] = filtered
	}
	return out, nil
}

// NumericColumns returns the names of all columns, which are numeric by
// construction, excluding any listed in skip.
func (f *Frame) NumericColumns(skip ...string) []string {
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}
	out := make([]string, 0, len(f.order))
	for _, name := range f.order {
		if !skipSet[name] {
			out = append(out, name)
		}
	}
	return out
}

// MissingCount returns the number of NaN cells in the named column.
func (f *Frame) MissingCount(name string) (int, error) {
	col, err := f.Column(name)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range col {
		if math.IsNaN(v) {
			n++
		}
	}
	return n, nil
}
