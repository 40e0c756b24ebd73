package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helioscan/internal/pipeline"
	"helioscan/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [station]",
	Short: "Clean and analyze a single station, rendering its report",
	Long: `Runs the full per-station pipeline for one station: cleaning,
summary statistics, correlations against GHI, and solar potential
metrics. The report is written under the reports directory and rendered
to the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	station := args[0]

	p := pipeline.New(cfg, nil, logger)
	if err := p.EnsureDirectories(); err != nil {
		return err
	}
	res, err := p.ProcessStation(cmd.Context(), station)
	if err != nil {
		return err
	}

	md := report.StationMarkdown(&report.StationReport{
		Station:      res.Station,
		Location:     cfg.Stations[station].Location,
		Cleaning:     res.Cleaning,
		Summaries:    res.Summaries,
		Correlations: res.Correlations,
		Metrics:      res.Metrics,
		Frame:        res.Frame,
	})
	fmt.Print(report.RenderTerminal(md))
	fmt.Printf("Report written to %s\n", res.ReportPath)
	return nil
}
