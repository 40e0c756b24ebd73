package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"helioscan/internal/pipeline"
	"helioscan/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the data directory and reprocess stations on change",
	Long: `Watches the data directory for changes to raw station exports and
re-runs the pipeline for the affected station once writes settle.
Cleaned exports are ignored, so a reprocess never triggers itself.
Runs until interrupted.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p := pipeline.New(cfg, st, logger)
	if err := p.EnsureDirectories(); err != nil {
		return err
	}

	w, err := watch.New(cfg, logger, func(ctx context.Context, station string) {
		if _, err := p.Run(ctx, []string{station}); err != nil {
			logger.Error("reprocessing failed", zap.String("station", station), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	if err := w.Start(cmd.Context()); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Printf("Watching %s for station exports (Ctrl-C to stop)\n", cfg.Paths.DataDir)
	<-cmd.Context().Done()
	fmt.Println()

	stats := w.GetStats()
	fmt.Printf("Events seen: %d, reprocess runs: %d, errors: %d\n",
		stats.EventsSeen, stats.Triggered, stats.Errors)
	return nil
}
