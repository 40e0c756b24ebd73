package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helioscan/internal/pipeline"
	"helioscan/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run [station...]",
	Short: "Run the full pipeline: clean, analyze, compare, rank",
	Long: `Processes the named stations (all configured stations when none are
given) concurrently, runs the cross-station ANOVA and Kruskal-Wallis
tests when at least two stations succeed, ranks them by composite solar
potential score, persists everything to the results database, and
writes the final analysis report.`,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p := pipeline.New(cfg, st, logger)
	result, err := p.Run(cmd.Context(), args)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s finished: %s\n\n", result.RunID, result.Status)
	for _, name := range cfg.StationNames() {
		res, ok := result.Stations[name]
		if !ok {
			continue
		}
		if res.Err != nil {
			fmt.Printf("  %s: FAILED (%v)\n", name, res.Err)
			continue
		}
		fmt.Printf("  %s: %d rows, report %s\n", name, res.Cleaning.FinalRows, res.ReportPath)
	}

	if len(result.Ranked) > 0 {
		fmt.Println()
		fmt.Print(report.RankingTable(result.Ranked))
	}
	if result.FinalReportPath != "" {
		fmt.Printf("\nFinal report: %s\n", result.FinalReportPath)
	}
	return nil
}
