// Package potential computes solar-potential metrics per station and
// the composite ranking across stations.
package potential

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"helioscan/internal/config"
	"helioscan/internal/dataset"
	"helioscan/internal/stats"
)

// Metrics are the solar-potential figures for one station, computed
// from its GHI column.
type Metrics struct {
	MeanGHI            float64
	StdGHI             float64
	CV                 float64 // coefficient of variation, percent
	Consistency        float64 // 100 - CV
	PeakGHI            float64
	Peak95th           float64 // 95th percentile
	OperationalHours   int     // observations with GHI above the solar threshold
	HighPotentialHours int     // observations with GHI above the high-potential threshold
}

// Ranked is one entry of the station ranking.
type Ranked struct {
	Rank           int
	Station        string
	CompositeScore float64
	Metrics        Metrics
}

// Analyzer computes metrics and rankings under one analysis config.
type Analyzer struct {
	cfg config.AnalysisConfig
}

// New returns an Analyzer.
func New(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Metrics computes the solar-potential metrics from a station frame.
// The frame must carry a GHI column with at least one value.
func (a *Analyzer) Metrics(frame *dataset.Frame) (Metrics, error) {
	ghi, err := frame.ColumnDropNA(dataset.ColGHI)
	if err != nil {
		return Metrics{}, fmt.Errorf("potential: %w", err)
	}
	if len(ghi) == 0 {
		return Metrics{}, fmt.Errorf("potential: no GHI values")
	}

	sorted := make([]float64, len(ghi))
	copy(sorted, ghi)
	sort.Float64s(sorted)

	m := Metrics{
		MeanGHI:  stat.Mean(ghi, nil),
		PeakGHI:  sorted[len(sorted)-1],
		Peak95th: stats.Quantile(0.95, sorted),
	}
	if len(ghi) > 1 {
		m.StdGHI = stat.StdDev(ghi, nil)
	}
	if m.MeanGHI != 0 {
		m.CV = m.StdGHI / m.MeanGHI * 100
	}
	m.Consistency = 100 - m.CV

	for _, v := range ghi {
		if v > a.cfg.SolarThreshold {
			m.OperationalHours++
		}
		if v > a.cfg.HighPotentialThreshold {
			m.HighPotentialHours++
		}
	}
	return m, nil
}

// Score computes the weighted composite score for a station's metrics.
func (a *Analyzer) Score(m Metrics) float64 {
	w := a.cfg.Weights
	return w.MeanGHI*m.MeanGHI +
		w.Consistency*m.Consistency +
		w.HighPotentialHours*float64(m.HighPotentialHours) +
		w.PeakPercentile*m.Peak95th
}

// Rank orders stations by composite score, descending. Ties break by
// station name so results are deterministic.
func (a *Analyzer) Rank(metrics map[string]Metrics) []Ranked {
	out := make([]Ranked, 0, len(metrics))
	for station, m := range metrics {
		out = append(out, Ranked{
			Station:        station,
			CompositeScore: a.Score(m),
			Metrics:        m,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompositeScore != out[j].CompositeScore {
			return out[i].CompositeScore > out[j].CompositeScore
		}
		return out[i].Station < out[j].Station
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
