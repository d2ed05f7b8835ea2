package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/polaris/internal/config"
	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/notify"
	"github.com/nvandessel/polaris/internal/simulation"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <event text>",
		Short: "Simulate every leader's reaction to a crisis",
		Long: `Run one simulation and store the result.

The event is embedded and stored, the most similar historical events are
retrieved, and every leader profile judges the crisis concurrently.

Examples:
  polaris simulate "A naval blockade is declared around a disputed strait"
  polaris simulate --isolate --ordered "Border clashes follow a contested election"
  polaris --memory simulate "..."    # no database, seeded in memory`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			isolate, _ := cmd.Flags().GetBool("isolate")
			ordered, _ := cmd.Flags().GetBool("ordered")

			opts := appOptions{embedder: true, generator: true, publish: true}
			if isolate {
				opts.failurePolicy = config.Isolate
			}
			a, err := newApp(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.service.Simulate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if ordered {
				leaders, err := a.store.ListLeaders(cmd.Context())
				if err != nil {
					return fmt.Errorf("loading leaders: %w", err)
				}
				resp.Results = simulation.SortByProfiles(resp.Results, leaders)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
			}
			printSimulation(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().Bool("isolate", false, "Record failed agents as unavailable instead of failing the run")
	cmd.Flags().Bool("ordered", false, "Order results by leader name instead of completion order")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <simulation-id>",
		Short: "Show a stored simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := newApp(cmd.Context(), cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.store.GetSimulation(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("simulation %s: %w", args[0], err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
			}
			printSimulation(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func printSimulation(w io.Writer, resp models.SimulationResponse) {
	summary := notify.NewSimulationCompleted(resp)

	fmt.Fprintf(w, "Simulation %s (%s)\n", resp.SimulationID, resp.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Event: %s\n\n", resp.EventText)

	for _, j := range resp.Results {
		fmt.Fprintf(w, "%s  escalation %.1f  [%s]\n", j.Leader, j.EscalationScore, j.Outcome)
		fmt.Fprintf(w, "  Reaction:  %s\n", j.Reaction)
		fmt.Fprintf(w, "  Rationale: %s\n", j.Rationale)
		if j.Error != "" {
			fmt.Fprintf(w, "  Error:     %s\n", j.Error)
		}
		fmt.Fprintln(w)
	}

	if len(resp.Results) > 0 {
		fmt.Fprintf(w, "Similar events:\n")
		for _, text := range resp.Results[0].SimilarEvents {
			fmt.Fprintf(w, "  - %s\n", text)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Average escalation: %.2f", summary.AvgEscalation)
	if summary.Degraded > 0 {
		fmt.Fprintf(w, " (%d degraded)", summary.Degraded)
	}
	fmt.Fprintln(w)
}
