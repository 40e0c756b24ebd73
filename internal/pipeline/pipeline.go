// Package pipeline orchestrates the full analysis run: per-station
// cleaning and statistics (processed concurrently), cross-station
// comparison and ranking, persistence, and report generation.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"helioscan/internal/cleaning"
	"helioscan/internal/config"
	"helioscan/internal/dataset"
	"helioscan/internal/potential"
	"helioscan/internal/report"
	"helioscan/internal/stats"
	"helioscan/internal/store"
)

// maxConcurrentStations bounds the station fan-out. Station files run
// to millions of rows; unbounded fan-out mostly buys memory pressure.
const maxConcurrentStations = 4

// Run statuses persisted with each run.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// StationResult is the outcome of processing a single station.
type StationResult struct {
	Station      string
	Frame        *dataset.Frame
	Cleaning     *cleaning.Report
	Summaries    []stats.Summary
	Correlations []stats.Correlation
	Metrics      potential.Metrics
	ReportPath   string
	Err          error
}

// RunResult is the outcome of a full pipeline run.
type RunResult struct {
	RunID           string
	Status          string
	Stations        map[string]*StationResult
	Comparison      *stats.Comparison
	Ranked          []potential.Ranked
	FinalReportPath string
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	logger   *zap.Logger
	cleaner  *cleaning.Cleaner
	analyzer *potential.Analyzer
}

// New builds a Pipeline. The store may be nil, in which case results
// are not persisted (used by the bare clean command).
func New(cfg *config.Config, st *store.Store, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		cleaner:  cleaning.New(cfg.Cleaning),
		analyzer: potential.New(cfg.Analysis),
	}
}

// EnsureDirectories creates the data, output, and reports directories.
func (p *Pipeline) EnsureDirectories() error {
	for _, dir := range []string{p.cfg.Paths.DataDir, p.cfg.Paths.OutputDir, p.cfg.Paths.ReportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("pipeline: create %s: %w", dir, err)
		}
	}
	return nil
}

// ProcessStation loads, cleans, and analyzes one station. The cleaned
// frame is written next to the raw file and a station report is written
// under the reports directory.
func (p *Pipeline) ProcessStation(ctx context.Context, station string) (*StationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rawPath, cleanedPath, err := p.cfg.StationPaths(station)
	if err != nil {
		return nil, err
	}

	log := p.logger.With(zap.String("station", station))
	log.Info("processing station", zap.String("file", rawPath))

	frame, err := dataset.ReadCSV(rawPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load %s: %w", station, err)
	}

	cleaned, cleanRep, err := p.cleaner.Clean(station, frame)
	if err != nil {
		return nil, fmt.Errorf("pipeline: clean %s: %w", station, err)
	}
	log.Info("cleaned station data",
		zap.Int("initial_rows", cleanRep.InitialRows),
		zap.Int("final_rows", cleanRep.FinalRows),
		zap.Int("outliers_removed", cleanRep.OutliersRemoved),
	)

	if err := dataset.WriteCSV(cleaned, cleanedPath); err != nil {
		return nil, fmt.Errorf("pipeline: export %s: %w", station, err)
	}

	summaries, err := stats.Summarize(cleaned)
	if err != nil {
		return nil, fmt.Errorf("pipeline: summarize %s: %w", station, err)
	}
	correlations, err := stats.Correlations(cleaned, dataset.ColGHI, p.cfg.Analysis.CorrelationThreshold)
	if err != nil {
		log.Warn("correlation analysis skipped", zap.Error(err))
	}
	metrics, err := p.analyzer.Metrics(cleaned)
	if err != nil {
		return nil, fmt.Errorf("pipeline: metrics %s: %w", station, err)
	}

	result := &StationResult{
		Station:      station,
		Frame:        cleaned,
		Cleaning:     cleanRep,
		Summaries:    summaries,
		Correlations: correlations,
		Metrics:      metrics,
	}

	md := report.StationMarkdown(&report.StationReport{
		Station:      station,
		Location:     p.cfg.Stations[station].Location,
		Cleaning:     cleanRep,
		Summaries:    summaries,
		Correlations: correlations,
		Metrics:      metrics,
		Frame:        cleaned,
	})
	path, err := report.WriteStationReport(p.cfg.Paths.ReportsDir, station, md)
	if err != nil {
		return nil, err
	}
	result.ReportPath = path
	log.Info("station report written", zap.String("path", path))

	return result, nil
}

// Run executes the pipeline over the named stations (all configured
// stations when none are given). Per-station failures do not abort the
// batch; they surface in the run status and the station results.
func (p *Pipeline) Run(ctx context.Context, stations []string) (*RunResult, error) {
	if len(stations) == 0 {
		stations = p.cfg.StationNames()
	}
	for _, name := range stations {
		if _, ok := p.cfg.Stations[name]; !ok {
			return nil, fmt.Errorf("pipeline: unknown station %q", name)
		}
	}

	if err := p.EnsureDirectories(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	if p.store != nil {
		if err := p.store.CreateRun(runID, startedAt); err != nil {
			return nil, err
		}
	}
	p.logger.Info("pipeline run started",
		zap.String("run_id", runID),
		zap.Strings("stations", stations),
	)

	result := &RunResult{
		RunID:    runID,
		Stations: make(map[string]*StationResult, len(stations)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentStations)

	for _, station := range stations {
		station := station
		g.Go(func() error {
			res, err := p.ProcessStation(gctx, station)
			if err != nil {
				// Context cancellation aborts the batch; a bad station
				// file does not.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Error("station failed", zap.String("station", station), zap.Error(err))
				res = &StationResult{Station: station, Err: err}
			}
			mu.Lock()
			result.Stations[station] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.finishRun(result, stations)
		return result, err
	}

	succeeded := result.successes()
	if len(succeeded) >= 2 {
		if err := p.compareAndRank(result, succeeded); err != nil {
			p.logger.Error("comparative analysis failed", zap.Error(err))
		}
	} else {
		p.logger.Info("skipping comparative analysis",
			zap.Int("succeeded", len(succeeded)),
		)
	}

	p.persist(result)
	p.finishRun(result, stations)

	p.logger.Info("pipeline run finished",
		zap.String("run_id", runID),
		zap.String("status", result.Status),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
	return result, nil
}

// successes returns successfully processed stations, sorted by name.
func (r *RunResult) successes() []*StationResult {
	var out []*StationResult
	for _, res := range r.Stations {
		if res.Err == nil {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
	return out
}

// compareAndRank runs the cross-station tests and ranking and writes
// the final report.
func (p *Pipeline) compareAndRank(result *RunResult, succeeded []*StationResult) error {
	byStation := make(map[string][]float64, len(succeeded))
	metrics := make(map[string]potential.Metrics, len(succeeded))
	for _, res := range succeeded {
		ghi, err := res.Frame.ColumnDropNA(dataset.ColGHI)
		if err != nil {
			return err
		}
		byStation[res.Station] = ghi
		metrics[res.Station] = res.Metrics
	}

	cmp, err := stats.Compare(dataset.ColGHI, byStation, p.cfg.Analysis.SignificanceLevel)
	if err != nil {
		return err
	}
	result.Comparison = cmp
	result.Ranked = p.analyzer.Rank(metrics)

	generatedAt := time.Now()
	md := report.ComparativeMarkdown(cmp, result.Ranked, generatedAt)
	path, err := report.WriteFinalReport(p.cfg.Paths.OutputDir, md, generatedAt)
	if err != nil {
		return err
	}
	result.FinalReportPath = path
	return nil
}

// persist writes everything the run produced to the store.
func (p *Pipeline) persist(result *RunResult) {
	if p.store == nil {
		return
	}
	for _, res := range result.Stations {
		if res.Err != nil {
			continue
		}
		if err := p.store.SaveCleaningReport(result.RunID, res.Cleaning); err != nil {
			p.logger.Error("persisting cleaning report failed", zap.Error(err))
		}
		if err := p.store.SaveMetrics(result.RunID, res.Station, res.Metrics); err != nil {
			p.logger.Error("persisting metrics failed", zap.Error(err))
		}
	}
	if len(result.Ranked) > 0 {
		if err := p.store.SaveRankings(result.RunID, result.Ranked); err != nil {
			p.logger.Error("persisting rankings failed", zap.Error(err))
		}
	}
}

// finishRun computes the final status and records it.
func (p *Pipeline) finishRun(result *RunResult, stations []string) {
	succeeded := len(result.successes())
	var errMsg string
	switch {
	case succeeded == len(stations):
		result.Status = StatusOK
	case succeeded > 0:
		result.Status = StatusPartial
		errMsg = firstError(result)
	default:
		result.Status = StatusFailed
		errMsg = firstError(result)
	}

	if p.store != nil {
		if err := p.store.FinishRun(result.RunID, result.Status, errMsg, succeeded, time.Now()); err != nil {
			p.logger.Error("finishing run failed", zap.Error(err))
		}
	}
}

func firstError(result *RunResult) string {
	names := make([]string, 0, len(result.Stations))
	for name := range result.Stations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if res := result.Stations[name]; res.Err != nil {
			return fmt.Sprintf("%s: %v", name, res.Err)
		}
	}
	return ""
}
