package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polaris",
		Short: "Polaris - multi-agent geopolitical crisis simulation",
		Long: `polaris simulates how a panel of world leader archetypes would react to
a geopolitical crisis.

Each crisis is embedded, matched against historical events, and judged
concurrently by one persona agent per leader profile. Results are stored
and can be served over HTTP, MCP or published to NATS.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.polaris/config.yaml)")
	rootCmd.PersistentFlags().Bool("memory", false, "Use an in-memory store seeded on startup")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newSimulateCmd(),
		newSeedCmd(),
		newLeadersCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
		newSetupCmd(),
	)
	return rootCmd
}
