package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"helioscan/internal/cleaning"
	"helioscan/internal/potential"
	"helioscan/internal/stats"
)

func sampleStationReport() *StationReport {
	return &StationReport{
		Station:  "sierra_leone",
		Location: "Sierra Leone",
		Cleaning: &cleaning.Report{
			Station:         "sierra_leone",
			InitialRows:     1000,
			FinalRows:       980,
			Imputed:         map[string]int{"GHI": 15, "Tamb": 5},
			OutliersRemoved: 20,
		},
		Summaries: []stats.Summary{
			{Column: "GHI", Count: 980, Mean: 240.1, Median: 120.5, Std: 310.2, Min: 0, Max: 1100},
		},
		Correlations: []stats.Correlation{
			{Column: "Tamb", R: 0.71},
			{Column: "RH", R: -0.45},
		},
		Metrics: potential.Metrics{
			MeanGHI:            240.1,
			StdGHI:             310.2,
			CV:                 129.2,
			Consistency:        -29.2,
			Peak95th:           890,
			OperationalHours:   4100,
			HighPotentialHours: 1700,
		},
	}
}

func TestStationMarkdown(t *testing.T) {
	md := StationMarkdown(sampleStationReport())

	for _, want := range []string{
		"# Solar Analysis — Sierra Leone",
		"## Cleaning Summary",
		"| Initial records | 1000 |",
		"| Cells imputed | 20 |",
		"## Summary Statistics",
		"## Correlations with GHI",
		"Tamb: 0.710 (positive)",
		"RH: -0.450 (negative)",
		"## Solar Potential",
		"High-potential hours: 1700",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestComparativeMarkdown(t *testing.T) {
	cmp := &stats.Comparison{
		Metric:      "GHI",
		Groups:      []string{"benin", "togo"},
		SampleSizes: map[string]int{"benin": 950, "togo": 900},
		ANOVA: stats.TestResult{
			Statistic: 182.4, PValue: 0.0001, Significant: true,
		},
		KruskalWallis: stats.TestResult{
			Statistic: 240.9, PValue: 0.0002, Significant: true,
		},
	}
	ranked := []potential.Ranked{
		{Rank: 1, Station: "benin", CompositeScore: 251.3, Metrics: potential.Metrics{MeanGHI: 400, Consistency: 60, HighPotentialHours: 1900}},
		{Rank: 2, Station: "togo", CompositeScore: 198.7, Metrics: potential.Metrics{MeanGHI: 300, Consistency: 55, HighPotentialHours: 1500}},
	}

	md := ComparativeMarkdown(cmp, ranked, time.Date(2023, 7, 1, 9, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"Recommended station: **Benin**",
		"statistically significant",
		"| One-way ANOVA | 182.4000 |",
		"| Kruskal-Wallis | 240.9000 |",
		"benin=950, togo=900",
		"| 1 | Benin | 251.30 |",
		"## Methodology",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestComparativeMarkdown_NotSignificant(t *testing.T) {
	cmp := &stats.Comparison{
		Metric: "GHI",
		Groups: []string{"benin", "togo"},
		SampleSizes: map[string]int{
			"benin": 10, "togo": 10,
		},
	}
	ranked := []potential.Ranked{{Rank: 1, Station: "togo", CompositeScore: 100}}

	md := ComparativeMarkdown(cmp, ranked, time.Now())
	if !strings.Contains(md, "not statistically significant") {
		t.Error("expected non-significance wording")
	}
}

func TestSparkline(t *testing.T) {
	line := Sparkline([]float64{1, 1, 1, 1, 2, 3, 10}, 4)
	if len([]rune(line)) != 4 {
		t.Errorf("expected 4 runes, got %q", line)
	}
	// First bin holds most values, so it must carry the tallest block.
	if []rune(line)[0] != '█' {
		t.Errorf("expected full block first, got %q", line)
	}

	if Sparkline(nil, 4) != "" {
		t.Error("expected empty string for no values")
	}
	if got := Sparkline([]float64{5, 5, 5}, 3); []rune(got)[0] != '█' {
		t.Errorf("constant values should fill the first bin: %q", got)
	}
}

func TestRankingTable(t *testing.T) {
	ranked := []potential.Ranked{
		{Rank: 1, Station: "benin", CompositeScore: 251.3, Metrics: potential.Metrics{MeanGHI: 400, Consistency: 60}},
		{Rank: 2, Station: "togo", CompositeScore: 198.7, Metrics: potential.Metrics{MeanGHI: 300, Consistency: 55}},
	}
	out := RankingTable(ranked)
	if !strings.Contains(out, "Benin") || !strings.Contains(out, "Togo") {
		t.Errorf("table missing stations:\n%s", out)
	}
	if !strings.Contains(out, "Rank") {
		t.Errorf("table missing header:\n%s", out)
	}
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteStationReport(dir, "benin", "# report\n")
	if err != nil {
		t.Fatalf("WriteStationReport failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if string(data) != "# report\n" {
		t.Errorf("unexpected content: %q", data)
	}

	final, err := WriteFinalReport(dir, "# final\n", time.Date(2023, 7, 1, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteFinalReport failed: %v", err)
	}
	if !strings.Contains(final, "final_analysis_report_20230701_093000.md") {
		t.Errorf("unexpected final report name: %s", final)
	}
}
