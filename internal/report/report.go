// Package report builds the per-station and comparative analysis
// reports as markdown, renders them for the terminal, and writes them
// to disk.
package report

import (
	"fmt"
	"strings"
	"time"

	"helioscan/internal/cleaning"
	"helioscan/internal/dataset"
	"helioscan/internal/potential"
	"helioscan/internal/stats"
)

// Metrics that get a distribution sparkline in station reports, when
// present.
var sparklineColumns = []string{dataset.ColGHI, dataset.ColTamb, dataset.ColRH, dataset.ColWS}

// StationReport bundles everything a per-station report needs.
type StationReport struct {
	Station      string
	Location     string
	Cleaning     *cleaning.Report
	Summaries    []stats.Summary
	Correlations []stats.Correlation
	Metrics      potential.Metrics
	Frame        *dataset.Frame
}

// StationMarkdown renders one station's analysis report as markdown.
func StationMarkdown(r *StationReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Solar Analysis — %s\n\n", titleCase(r.Station))
	if r.Location != "" {
		fmt.Fprintf(&sb, "Station location: %s\n\n", r.Location)
	}

	if r.Cleaning != nil {
		sb.WriteString("## Cleaning Summary\n\n")
		fmt.Fprintf(&sb, "| | |\n|---|---|\n")
		fmt.Fprintf(&sb, "| Initial records | %d |\n", r.Cleaning.InitialRows)
		fmt.Fprintf(&sb, "| Final records | %d |\n", r.Cleaning.FinalRows)
		fmt.Fprintf(&sb, "| Outlier rows removed | %d |\n", r.Cleaning.OutliersRemoved)
		fmt.Fprintf(&sb, "| Cells imputed | %d |\n\n", totalImputed(r.Cleaning))
	}

	if len(r.Summaries) > 0 {
		sb.WriteString("## Summary Statistics\n\n")
		sb.WriteString("| Column | Count | Mean | Median | Std | Min | Max |\n")
		sb.WriteString("|--------|-------|------|--------|-----|-----|-----|\n")
		for _, s := range r.Summaries {
			fmt.Fprintf(&sb, "| %s | %d | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
				s.Column, s.Count, s.Mean, s.Median, s.Std, s.Min, s.Max)
		}
		sb.WriteString("\n")
	}

	if len(r.Correlations) > 0 {
		fmt.Fprintf(&sb, "## Correlations with %s\n\n", dataset.ColGHI)
		for _, c := range r.Correlations {
			direction := "positive"
			if c.R < 0 {
				direction = "negative"
			}
			fmt.Fprintf(&sb, "- %s: %.3f (%s)\n", c.Column, c.R, direction)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Solar Potential\n\n")
	m := r.Metrics
	fmt.Fprintf(&sb, "- Average GHI: %.2f W/m² (±%.2f)\n", m.MeanGHI, m.StdGHI)
	fmt.Fprintf(&sb, "- Peak GHI (95th percentile): %.2f W/m²\n", m.Peak95th)
	fmt.Fprintf(&sb, "- Consistency: %.2f%% (CV %.2f%%)\n", m.Consistency, m.CV)
	fmt.Fprintf(&sb, "- Operational hours: %d\n", m.OperationalHours)
	fmt.Fprintf(&sb, "- High-potential hours: %d\n\n", m.HighPotentialHours)

	if r.Frame != nil {
		var lines []string
		for _, col := range sparklineColumns {
			if !r.Frame.Has(col) {
				continue
			}
			vals, err := r.Frame.ColumnDropNA(col)
			if err != nil || len(vals) == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %-5s `%s`", col, Sparkline(vals, 16)))
		}
		if len(lines) > 0 {
			sb.WriteString("## Distributions\n\n")
			sb.WriteString(strings.Join(lines, "\n"))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// ComparativeMarkdown renders the cross-station report: test results,
// ranking, recommendation, and methodology note.
func ComparativeMarkdown(cmp *stats.Comparison, ranked []potential.Ranked, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Solar Data Challenge — Final Analysis Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", generatedAt.Format("2006-01-02 15:04:05"))

	if len(ranked) > 0 {
		sb.WriteString("## Recommendation\n\n")
		top := ranked[0]
		fmt.Fprintf(&sb, "Recommended station: **%s** (composite score %.2f)\n\n", titleCase(top.Station), top.CompositeScore)
		if cmp != nil {
			if cmp.ANOVA.Significant {
				sb.WriteString("Differences between stations are statistically significant; the ranking is supported by the data.\n\n")
			} else {
				sb.WriteString("Differences between stations are not statistically significant; consider local factors before committing.\n\n")
			}
		}
	}

	if cmp != nil {
		fmt.Fprintf(&sb, "## Statistical Comparison (%s)\n\n", cmp.Metric)
		sb.WriteString("| Test | Statistic | p-value | Significant |\n")
		sb.WriteString("|------|-----------|---------|-------------|\n")
		fmt.Fprintf(&sb, "| One-way ANOVA | %.4f | %.4g | %v |\n",
			cmp.ANOVA.Statistic, cmp.ANOVA.PValue, cmp.ANOVA.Significant)
		fmt.Fprintf(&sb, "| Kruskal-Wallis | %.4f | %.4g | %v |\n\n",
			cmp.KruskalWallis.Statistic, cmp.KruskalWallis.PValue, cmp.KruskalWallis.Significant)

		sb.WriteString("Sample sizes: ")
		for i, name := range cmp.Groups {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%d", name, cmp.SampleSizes[name])
		}
		sb.WriteString("\n\n")
	}

	if len(ranked) > 0 {
		sb.WriteString("## Rankings\n\n")
		sb.WriteString("| Rank | Station | Score | Avg GHI | Consistency | High-Potential Hours |\n")
		sb.WriteString("|------|---------|-------|---------|-------------|----------------------|\n")
		for _, r := range ranked {
			fmt.Fprintf(&sb, "| %d | %s | %.2f | %.2f | %.2f%% | %d |\n",
				r.Rank, titleCase(r.Station), r.CompositeScore,
				r.Metrics.MeanGHI, r.Metrics.Consistency, r.Metrics.HighPotentialHours)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Methodology\n\n")
	sb.WriteString("- Cleaning: median imputation of missing cells, |z| > threshold outlier removal\n")
	sb.WriteString("- Testing: one-way ANOVA and Kruskal-Wallis on GHI\n")
	sb.WriteString("- Ranking: composite score over mean GHI, consistency, high-potential hours, and peak percentile\n")

	return sb.String()
}

func totalImputed(rep *cleaning.Report) int {
	n := 0
	for _, v := range rep.Imputed {
		n += v
	}
	return n
}

// titleCase renders a station key like "sierra_leone" as "Sierra Leone".
func titleCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
