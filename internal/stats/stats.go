// Package stats implements the descriptive and inferential statistics
// behind the analysis stage: per-column summaries, correlations against
// a target metric, one-way ANOVA, and the Kruskal-Wallis H test.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"helioscan/internal/dataset"
)

// ErrInsufficientGroups is returned when a comparison needs more groups
// than were supplied.
var ErrInsufficientGroups = errors.New("stats: need at least 2 groups")

// Quantile returns the p-quantile of sorted by linear interpolation
// between closest ranks: h = (n-1)p, interpolating between sorted[⌊h⌋]
// and sorted[⌊h⌋+1]. This matches the default quantile method of the
// measurement toolchains the exports come from, which differs from
// gonum's empirical-CDF interpolation (e.g. median of 1..5 must be 3,
// not 2.5).
func Quantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	i := int(math.Floor(h))
	if i >= n-1 {
		return sorted[n-1]
	}
	if i < 0 {
		return sorted[0]
	}
	return sorted[i] + (h-float64(i))*(sorted[i+1]-sorted[i])
}

// Summary holds descriptive statistics for one column.
type Summary struct {
	Column string
	Count  int
	Mean   float64
	Median float64
	Std    float64 // sample standard deviation
	Min    float64
	Max    float64
	Q25    float64
	Q75    float64
}

// Correlation is one column's Pearson correlation against the target.
type Correlation struct {
	Column string
	R      float64
}

// TestResult holds one statistical test's outcome.
type TestResult struct {
	Statistic   float64
	PValue      float64
	Significant bool
}

// Comparison bundles the cross-station tests on a shared metric.
type Comparison struct {
	Metric        string
	Groups        []string
	SampleSizes   map[string]int
	ANOVA         TestResult
	KruskalWallis TestResult
}

// Summarize computes descriptive statistics for every numeric column in
// the frame, in column order. Columns with no non-NaN values are
// skipped.
func Summarize(frame *dataset.Frame) ([]Summary, error) {
	if frame.Len() == 0 {
		return nil, dataset.ErrEmptyFrame
	}

	var out []Summary
	for _, name := range frame.NumericColumns() {
		vals, err := frame.ColumnDropNA(name)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			continue
		}
		out = append(out, summarize(name, vals))
	}
	return out, nil
}

func summarize(name string, vals []float64) Summary {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s := Summary{
		Column: name,
		Count:  len(vals),
		Mean:   stat.Mean(vals, nil),
		Median: Quantile(0.5, sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q25:    Quantile(0.25, sorted),
		Q75:    Quantile(0.75, sorted),
	}
	if len(vals) > 1 {
		s.Std = stat.StdDev(vals, nil)
	}
	return s
}

// Correlations computes the Pearson correlation of every numeric column
// against the target column over pairwise-complete observations, keeps
// those with |r| >= threshold, and sorts them by r descending.
func Correlations(frame *dataset.Frame, target string, threshold float64) ([]Correlation, error) {
	tcol, err := frame.Column(target)
	if err != nil {
		return nil, fmt.Errorf("stats: target: %w", err)
	}

	var out []Correlation
	for _, name := range frame.NumericColumns(target) {
		col, err := frame.Column(name)
		if err != nil {
			return nil, err
		}

		var xs, ys []float64
		for i := range col {
			if math.IsNaN(col[i]) || math.IsNaN(tcol[i]) {
				continue
			}
			xs = append(xs, col[i])
			ys = append(ys, tcol[i])
		}
		if len(xs) < 2 {
			continue
		}

		r := stat.Correlation(xs, ys, nil)
		if math.IsNaN(r) {
			continue // zero-variance column
		}
		if math.Abs(r) >= threshold {
			out = append(out, Correlation{Column: name, R: r})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].R > out[j].R })
	return out, nil
}

// OneWayANOVA performs a one-way analysis of variance across groups.
// Each group needs at least 2 values.
func OneWayANOVA(groups [][]float64, alpha float64) (TestResult, error) {
	if len(groups) < 2 {
		return TestResult{}, ErrInsufficientGroups
	}

	n := 0
	grandSum := 0.0
	for i, g := range groups {
		if len(g) < 2 {
			return TestResult{}, fmt.Errorf("stats: anova group %d has %d values, need at least 2", i, len(g))
		}
		n += len(g)
		for _, v := range g {
			grandSum += v
		}
	}
	grandMean := grandSum / float64(n)

	ssb := 0.0 // between-group sum of squares
	ssw := 0.0 // within-group sum of squares
	for _, g := range groups {
		mean := stat.Mean(g, nil)
		ssb += float64(len(g)) * (mean - grandMean) * (mean - grandMean)
		for _, v := range g {
			ssw += (v - mean) * (v - mean)
		}
	}

	dfb := float64(len(groups) - 1)
	dfw := float64(n - len(groups))
	if ssw == 0 {
		// All groups internally constant. Identical means give F=0,
		// differing means give an unbounded statistic.
		if ssb == 0 {
			return TestResult{Statistic: 0, PValue: 1}, nil
		}
		return TestResult{Statistic: math.Inf(1), PValue: 0, Significant: true}, nil
	}

	f := (ssb / dfb) / (ssw / dfw)
	dist := distuv.F{D1: dfb, D2: dfw}
	p := 1 - dist.CDF(f)

	return TestResult{Statistic: f, PValue: p, Significant: p < alpha}, nil
}

// KruskalWallis performs the Kruskal-Wallis H test (rank-based,
// non-parametric alternative to ANOVA) with tie correction.
func KruskalWallis(groups [][]float64, alpha float64) (TestResult, error) {
	if len(groups) < 2 {
		return TestResult{}, ErrInsufficientGroups
	}

	type obs struct {
		value float64
		group int
	}
	var all []obs
	for gi, g := range groups {
		if len(g) == 0 {
			return TestResult{}, fmt.Errorf("stats: kruskal-wallis group %d is empty", gi)
		}
		for _, v := range g {
			all = append(all, obs{value: v, group: gi})
		}
	}
	n := len(all)

	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Average ranks over ties, accumulating the tie correction term.
	ranks := make([]float64, n)
	tieTerm := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && all[j].value == all[i].value {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		t := float64(j - i)
		tieTerm += t*t*t - t
		i = j
	}

	rankSums := make([]float64, len(groups))
	for i, o := range all {
		rankSums[o.group] += ranks[i]
	}

	h := 0.0
	for gi, g := range groups {
		h += rankSums[gi] * rankSums[gi] / float64(len(g))
	}
	nf := float64(n)
	h = 12/(nf*(nf+1))*h - 3*(nf+1)

	correction := 1 - tieTerm/(nf*nf*nf-nf)
	if correction == 0 {
		// Every value identical; no evidence of difference.
		return TestResult{Statistic: 0, PValue: 1}, nil
	}
	h /= correction

	dist := distuv.ChiSquared{K: float64(len(groups) - 1)}
	p := 1 - dist.CDF(h)

	return TestResult{Statistic: h, PValue: p, Significant: p < alpha}, nil
}

// Compare runs both cross-group tests on the named metric, dropping
// NaNs per group.
func Compare(metric string, byGroup map[string][]float64, alpha float64) (*Comparison, error) {
	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([][]float64, 0, len(names))
	sizes := make(map[string]int, len(names))
	for _, name := range names {
		clean := make([]float64, 0, len(byGroup[name]))
		for _, v := range byGroup[name] {
			if !math.IsNaN(v) {
				clean = append(clean, v)
			}
		}
		groups = append(groups, clean)
		sizes[name] = len(clean)
	}

	anova, err := OneWayANOVA(groups, alpha)
	if err != nil {
		return nil, fmt.Errorf("stats: anova on %s: %w", metric, err)
	}
	kw, err := KruskalWallis(groups, alpha)
	if err != nil {
		return nil, fmt.Errorf("stats: kruskal-wallis on %s: %w", metric, err)
	}

	return &Comparison{
		Metric:        metric,
		Groups:        names,
		SampleSizes:   sizes,
		ANOVA:         anova,
		KruskalWallis: kw,
	}, nil
}
