package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "dunbot",
	Short: "dunbot - LLM assistant for B2B payment collections email",
	Long: "Dunbot receives forwarded collections email threads, extracts per-invoice\n" +
		"payment status with an LLM and replies into the original thread with a\n" +
		"summary, a suggested reply and an invoice table.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Secrets referenced from the config file may live in .env
		_ = godotenv.Load()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dunbot version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "dunbot.yaml", "Path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
