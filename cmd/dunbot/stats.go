package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dunbot/dunbot/internal/config"
	"github.com/dunbot/dunbot/internal/storage"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.NewStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open run log: %w", err)
		}
		defer store.Close()

		stats, err := store.GetStats(context.Background())
		if err != nil {
			return err
		}

		if statsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("Total runs: %d\n", stats.TotalRuns)
		fmt.Printf("  Running:   %d\n", stats.RunningRuns)
		fmt.Printf("  Completed: %d\n", stats.CompletedRuns)
		fmt.Printf("  Failed:    %d\n", stats.FailedRuns)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statsCmd)
}
