package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dunbot/dunbot/internal/config"
	"github.com/dunbot/dunbot/internal/storage"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
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

		runs, err := store.ListRuns(context.Background(), runsLimit)
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			status := string(run.Status)
			if run.Status == storage.RunStatusFailed && run.ErrorKind != "" {
				status = fmt.Sprintf("%s (%s)", run.Status, run.ErrorKind)
			}
			fmt.Printf("%s  %-22s  %-28s  %s\n",
				run.ReceivedAt.Format(time.RFC3339),
				status,
				run.FromAddr,
				run.Subject,
			)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(runsCmd)
}
