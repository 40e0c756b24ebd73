package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"helioscan/internal/cleaning"
	"helioscan/internal/dataset"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [station...]",
	Short: "Clean station exports and write *_clean.csv files",
	Long: `Cleans the named stations (all configured stations when none are
given): imputes missing measurement cells with the column median,
removes rows whose key columns sit more than the configured number of
standard deviations from the mean, and derives hour/month/day-of-week/
season columns. Cleaned data lands next to the raw export.`,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	stations := args
	if len(stations) == 0 {
		stations = cfg.StationNames()
	}

	cleaner := cleaning.New(cfg.Cleaning)
	for _, station := range stations {
		rawPath, cleanedPath, err := cfg.StationPaths(station)
		if err != nil {
			return err
		}

		frame, err := dataset.ReadCSV(rawPath)
		if err != nil {
			return fmt.Errorf("loading %s: %w", station, err)
		}
		cleaned, rep, err := cleaner.Clean(station, frame)
		if err != nil {
			return fmt.Errorf("cleaning %s: %w", station, err)
		}
		if err := dataset.WriteCSV(cleaned, cleanedPath); err != nil {
			return fmt.Errorf("writing %s: %w", station, err)
		}

		logger.Info("station cleaned",
			zap.String("station", station),
			zap.Int("initial_rows", rep.InitialRows),
			zap.Int("final_rows", rep.FinalRows),
			zap.Int("outliers_removed", rep.OutliersRemoved),
		)
		fmt.Printf("%s: %d -> %d rows (%d outlier rows removed) -> %s\n",
			station, rep.InitialRows, rep.FinalRows, rep.OutliersRemoved, cleanedPath)
	}
	return nil
}
