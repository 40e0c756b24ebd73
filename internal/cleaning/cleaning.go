// Package cleaning implements the data cleaning stage: median
// imputation of missing cells, z-score outlier detection and removal,
// and temporal feature extraction from the timestamp column.
package cleaning

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"helioscan/internal/config"
	"helioscan/internal/dataset"
	"helioscan/internal/stats"
)

// Report summarizes what a cleaning pass did to a frame.
type Report struct {
	Station         string
	InitialRows     int
	FinalRows       int
	Imputed         map[string]int // column -> cells imputed
	OutliersFound   map[string]int // column -> |z| > threshold count
	OutliersRemoved int            // rows dropped
}

// Cleaner applies the configured cleaning pipeline.
type Cleaner struct {
	cfg config.CleaningConfig
}

// New returns a Cleaner for the given cleaning config.
func New(cfg config.CleaningConfig) *Cleaner {
	return &Cleaner{cfg: cfg}
}

// Clean runs the full pass: impute, detect, remove, derive temporal
// features. The input frame is mutated by imputation; the returned
// frame is the filtered result.
func (c *Cleaner) Clean(station string, frame *dataset.Frame) (*dataset.Frame, *Report, error) {
	if frame.Len() == 0 {
		return nil, nil, dataset.ErrEmptyFrame
	}

	report := &Report{
		Station:     station,
		InitialRows: frame.Len(),
	}

	var err error
	report.Imputed, err = c.ImputeMedian(frame)
	if err != nil {
		return nil, nil, fmt.Errorf("cleaning: impute: %w", err)
	}

	report.OutliersFound, err = c.DetectOutliers(frame)
	if err != nil {
		return nil, nil, fmt.Errorf("cleaning: detect outliers: %w", err)
	}

	cleaned, removed, err := c.RemoveOutliers(frame)
	if err != nil {
		return nil, nil, fmt.Errorf("cleaning: remove outliers: %w", err)
	}
	report.OutliersRemoved = removed

	if err := AddTemporalFeatures(cleaned); err != nil {
		return nil, nil, fmt.Errorf("cleaning: temporal features: %w", err)
	}

	report.FinalRows = cleaned.Len()
	return cleaned, report, nil
}

// ImputeMedian fills NaN cells in the configured columns with the
// column median. Columns absent from the frame or entirely NaN are
// skipped. Returns imputed cell counts per column.
func (c *Cleaner) ImputeMedian(frame *dataset.Frame) (map[string]int, error) {
	imputed := make(map[string]int)
	for _, name := range c.cfg.ImputeColumns {
		if !frame.Has(name) {
			continue
		}
		col, err := frame.Column(name)
		if err != nil {
			return nil, err
		}
		present, err := frame.ColumnDropNA(name)
		if err != nil {
			return nil, err
		}
		if len(present) == 0 {
			continue // nothing to impute from
		}
		med := median(present)
		n := 0
		for i, v := range col {
			if math.IsNaN(v) {
				col[i] = med
				n++
			}
		}
		if n > 0 {
			imputed[name] = n
		}
	}
	return imputed, nil
}

// DetectOutliers counts |z| > threshold cells per configured column
// without modifying the frame. Z-scores use the population standard
// deviation over non-NaN values; zero-variance columns yield none.
func (c *Cleaner) DetectOutliers(frame *dataset.Frame) (map[string]int, error) {
	found := make(map[string]int)
	for _, name := range c.cfg.OutlierColumns {
		if !frame.Has(name) {
			continue
		}
		mask, err := c.outlierMask(frame, name)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, o := range mask {
			if o {
				n++
			}
		}
		if n > 0 {
			found[name] = n
		}
	}
	return found, nil
}

// RemoveOutliers drops every row where any configured column exceeds
// the z threshold. Returns the filtered frame and the number of rows
// removed.
func (c *Cleaner) RemoveOutliers(frame *dataset.Frame) (*dataset.Frame, int, error) {
	drop := make([]bool, frame.Len())
	for _, name := range c.cfg.OutlierColumns {
		if !frame.Has(name) {
			continue
		}
		mask, err := c.outlierMask(frame, name)
		if err != nil {
			return nil, 0, err
		}
		for i, o := range mask {
			if o {
				drop[i] = true
			}
		}
	}

	keep := make([]bool, len(drop))
	removed := 0
	for i, d := range drop {
		keep[i] = !d
		if d {
			removed++
		}
	}

	cleaned, err := frame.Filter(keep)
	if err != nil {
		return nil, 0, err
	}
	return cleaned, removed, nil
}

// outlierMask marks rows whose value in the named column has
// |z| > threshold. NaN cells are never outliers.
func (c *Cleaner) outlierMask(frame *dataset.Frame, name string) ([]bool, error) {
	col, err := frame.Column(name)
	if err != nil {
		return nil, err
	}
	present, err := frame.ColumnDropNA(name)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, len(col))
	if len(present) == 0 {
		return mask, nil
	}
	mean := stat.Mean(present, nil)
	std := stat.PopStdDev(present, nil)
	if std == 0 {
		return mask, nil
	}

	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		if math.Abs((v-mean)/std) > c.cfg.ZThreshold {
			mask[i] = true
		}
	}
	return mask, nil
}

// AddTemporalFeatures derives Hour, Month, DayOfWeek (Monday=0), and
// Season (1=winter .. 4=autumn) columns from the timestamps.
func AddTemporalFeatures(frame *dataset.Frame) error {
	n := frame.Len()
	hour := make([]float64, n)
	month := make([]float64, n)
	dow := make([]float64, n)
	season := make([]float64, n)

	for i, ts := range frame.Timestamps {
		m := int(ts.Month())
		hour[i] = float64(ts.Hour())
		month[i] = float64(m)
		dow[i] = float64((int(ts.Weekday()) + 6) % 7)
		season[i] = float64((m%12 + 3) / 3)
	}

	for _, col := range []struct {
		name string
		vals []float64
	}{
		{dataset.ColHour, hour},
		{dataset.ColMonth, month},
		{dataset.ColDayOfWeek, dow},
		{dataset.ColSeason, season},
	} {
		if frame.Has(col.name) {
			if err := frame.SetColumn(col.name, col.vals); err != nil {
				return err
			}
			continue
		}
		if err := frame.AddColumn(col.name, col.vals); err != nil {
			return err
		}
	}
	return nil
}

// median returns the closest-ranks-interpolated median of vals. The
// input slice is not modified.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return stats.Quantile(0.5, sorted)
}
