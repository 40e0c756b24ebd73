package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"helioscan/internal/config"
	"helioscan/internal/store"
)

// writeStationCSV writes a day of hourly readings. GHI ramps linearly
// so no row trips the outlier filter; Tamb and RH track GHI so the
// correlation stage has something to find.
func writeStationCSV(t *testing.T, path string, offset float64) {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("Timestamp,GHI,DNI,DHI,Tamb,RH,WS\n")
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		ghi := float64(i)*40 + offset
		fmt.Fprintf(&sb, "%s,%.1f,%.1f,%.1f,%.1f,%.1f,%.1f\n",
			base.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04"),
			ghi, ghi*0.8, ghi*0.2, 20+ghi/50, 90-ghi/20, 3.0)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("writing station csv: %v", err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Stations = map[string]config.Station{
		"alpha": {File: "alpha.csv", CleanedFile: "alpha_clean.csv", Location: "Alpha"},
		"beta":  {File: "beta.csv", CleanedFile: "beta_clean.csv", Location: "Beta"},
	}
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.OutputDir = filepath.Join(root, "outputs")
	cfg.Paths.ReportsDir = filepath.Join(root, "reports")
	if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
		t.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(cfg, st, zap.NewNop()), st
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	writeStationCSV(t, filepath.Join(cfg.Paths.DataDir, "alpha.csv"), 0)
	writeStationCSV(t, filepath.Join(cfg.Paths.DataDir, "beta.csv"), 120)

	p, st := newTestPipeline(t, cfg)
	result, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != StatusOK {
		t.Errorf("expected status %s, got %s", StatusOK, result.Status)
	}
	if len(result.Stations) != 2 {
		t.Fatalf("expected 2 station results, got %d", len(result.Stations))
	}
	for name, res := range result.Stations {
		if res.Err != nil {
			t.Fatalf("station %s failed: %v", name, res.Err)
		}
		if res.Cleaning == nil || res.Cleaning.FinalRows == 0 {
			t.Errorf("station %s has no cleaning report", name)
		}
		if res.ReportPath == "" {
			t.Errorf("station %s has no report path", name)
		} else if _, err := os.Stat(res.ReportPath); err != nil {
			t.Errorf("station report missing: %v", err)
		}
	}

	// beta runs 120 W/m2 hotter everywhere, so it must rank first.
	if result.Comparison == nil {
		t.Fatal("expected comparative analysis")
	}
	if len(result.Ranked) != 2 || result.Ranked[0].Station != "beta" {
		t.Errorf("unexpected ranking: %+v", result.Ranked)
	}
	if result.FinalReportPath == "" {
		t.Error("expected final report path")
	} else if _, err := os.Stat(result.FinalReportPath); err != nil {
		t.Errorf("final report missing: %v", err)
	}

	for _, name := range []string{"alpha_clean.csv", "beta_clean.csv"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, name)); err != nil {
			t.Errorf("cleaned export missing: %v", err)
		}
	}

	latest, err := st.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest == nil || latest.ID != result.RunID || latest.Status != StatusOK {
		t.Errorf("unexpected persisted run: %+v", latest)
	}
	rows, err := st.RankingsForRun(result.RunID)
	if err != nil {
		t.Fatalf("RankingsForRun failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 persisted rankings, got %d", len(rows))
	}
}

func TestRun_PartialFailure(t *testing.T) {
	cfg := testConfig(t)
	// alpha.csv is deliberately absent.
	writeStationCSV(t, filepath.Join(cfg.Paths.DataDir, "beta.csv"), 0)

	p, st := newTestPipeline(t, cfg)
	result, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != StatusPartial {
		t.Errorf("expected status %s, got %s", StatusPartial, result.Status)
	}
	if result.Stations["alpha"].Err == nil {
		t.Error("expected alpha to fail")
	}
	if result.Stations["beta"].Err != nil {
		t.Errorf("beta failed: %v", result.Stations["beta"].Err)
	}
	if result.Comparison != nil {
		t.Error("comparative analysis should be skipped with one station")
	}

	latest, err := st.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest.Status != StatusPartial {
		t.Errorf("expected persisted partial status, got %s", latest.Status)
	}
	if !strings.Contains(latest.Error, "alpha") {
		t.Errorf("expected persisted error to name the station, got %q", latest.Error)
	}
}

func TestRun_UnknownStation(t *testing.T) {
	cfg := testConfig(t)
	p, _ := newTestPipeline(t, cfg)

	if _, err := p.Run(context.Background(), []string{"mars"}); err == nil {
		t.Error("expected error for unknown station")
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	writeStationCSV(t, filepath.Join(cfg.Paths.DataDir, "alpha.csv"), 0)
	writeStationCSV(t, filepath.Join(cfg.Paths.DataDir, "beta.csv"), 0)

	p, _ := newTestPipeline(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProcessStation(t *testing.T) {
	cfg := testConfig(t)
	writeStationCSV(t, filepath.Join(cfg.Paths.DataDir, "alpha.csv"), 50)

	p, _ := newTestPipeline(t, cfg)
	res, err := p.ProcessStation(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("ProcessStation failed: %v", err)
	}

	if res.Cleaning.InitialRows != 24 {
		t.Errorf("expected 24 initial rows, got %d", res.Cleaning.InitialRows)
	}
	if res.Metrics.MeanGHI <= 0 {
		t.Errorf("expected positive mean GHI, got %v", res.Metrics.MeanGHI)
	}
	if len(res.Summaries) == 0 {
		t.Error("expected summary statistics")
	}
	// Tamb tracks GHI exactly in the fixture, so it must correlate.
	found := false
	for _, c := range res.Correlations {
		if c.Column == "Tamb" && c.R > 0.9 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected strong Tamb correlation, got %+v", res.Correlations)
	}
}
