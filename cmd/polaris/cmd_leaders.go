package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newLeadersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaders",
		Short: "List leader profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := newApp(cmd.Context(), cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			leaders, err := a.store.ListLeaders(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing leaders: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(leaders)
			}
			if len(leaders) == 0 {
				fmt.Fprintln(out, "No leaders found. Run 'polaris seed' first.")
				return nil
			}

			fmt.Fprintf(out, "%-28s %4s %4s %4s %4s %4s\n", "NAME", "AGG", "DIP", "RISK", "DOM", "ESC")
			for _, l := range leaders {
				fmt.Fprintf(out, "%-28s %4d %4d %4d %4d %4d\n",
					l.Name, l.Aggression, l.Diplomacy, l.RiskTolerance, l.DomesticPressure, l.EscalationThreshold)
			}
			return nil
		},
	}
}
