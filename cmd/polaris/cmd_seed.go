package main

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/polaris/internal/seed"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the default leaders and historical events",
		Long: `Seed the database with the four default leader archetypes and the
historical crisis events used as retrieval context.

Seeding is idempotent: existing leaders are kept, and events are only
embedded and inserted when the store holds fewer than the seed set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := newApp(cmd.Context(), cmd, appOptions{embedder: true})
			if err != nil {
				return err
			}
			defer a.Close()

			seeder := seed.NewSeeder(a.store, a.embedder, a.logger)
			leaders, events, err := seeder.SeedAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"leaders": leaders,
					"events":  events,
				})
			}

			fmt.Fprintf(out, "Leaders: %d added, %d already present (%d total)\n",
				len(leaders.Added), len(leaders.Skipped), leaders.Total)
			for _, name := range leaders.Added {
				fmt.Fprintf(out, "  + %s\n", name)
			}
			if len(events.Added) == 0 {
				fmt.Fprintf(out, "Events: already seeded (%d total)\n", events.Total)
			} else {
				fmt.Fprintf(out, "Events: %d added (%d total)\n", len(events.Added), events.Total)
			}
			return nil
		},
	}
}
