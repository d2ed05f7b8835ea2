package main

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			a, err := newApp(cmd.Context(), cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.store.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No simulations yet.")
				return nil
			}

			for _, item := range items {
				fmt.Fprintf(out, "%s  %s  avg %.2f  %s\n",
					item.SimulationID, item.CreatedAt.Format("2006-01-02 15:04"), item.AvgEscalation, truncate(item.EventText, 60))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Maximum simulations to list")
	return cmd
}

// truncate shortens s to at most n characters, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
