package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helioscan/internal/potential"
	"helioscan/internal/report"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Show the station ranking from the latest run",
	RunE:  runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	latest, err := st.LatestRun()
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no runs recorded yet; run 'helioscan run' first")
	}

	rows, err := st.RankingsForRun(latest.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s has no ranking (status %s)", latest.ID, latest.Status)
	}

	metrics, err := st.MetricsForRun(latest.ID)
	if err != nil {
		return err
	}

	ranked := make([]potential.Ranked, 0, len(rows))
	for _, row := range rows {
		r := potential.Ranked{
			Rank:           row.Rank,
			Station:        row.Station,
			CompositeScore: row.CompositeScore,
		}
		if m, ok := metrics[row.Station]; ok {
			r.Metrics.MeanGHI = m["mean_ghi"]
			r.Metrics.Consistency = m["consistency"]
			r.Metrics.HighPotentialHours = int(m["high_potential_hours"])
		}
		ranked = append(ranked, r)
	}

	fmt.Printf("Ranking from run %s (%s)\n\n", latest.ID, latest.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Print(report.RankingTable(ranked))
	return nil
}
