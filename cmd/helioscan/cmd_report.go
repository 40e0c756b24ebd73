package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"helioscan/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [station]",
	Short: "Render an analysis report to the terminal",
	Long: `Renders a previously generated report. With a station argument, the
station's analysis report is rendered; without one, the most recent
final analysis report is rendered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		station := args[0]
		if _, ok := cfg.Stations[station]; !ok {
			return fmt.Errorf("unknown station %q", station)
		}
		path = filepath.Join(cfg.Paths.ReportsDir, station+"_analysis.md")
	} else {
		var err error
		path, err = latestFinalReport(cfg.Paths.OutputDir)
		if err != nil {
			return err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no report at %s; run 'helioscan run' first", path)
		}
		return err
	}
	fmt.Print(report.RenderTerminal(string(data)))
	return nil
}

// latestFinalReport finds the newest final report. The timestamped
// names sort chronologically, so the lexicographic maximum is newest.
func latestFinalReport(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "final_analysis_report_*.md"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no final reports in %s; run 'helioscan run' first", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
