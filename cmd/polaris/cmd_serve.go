package main

import (
	"context"
	"time"

	"github.com/nvandessel/polaris/internal/api"
	"github.com/nvandessel/polaris/internal/ratelimit"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the simulation API over HTTP.

Routes:
  GET  /                      liveness message
  GET  /health                store health
  POST /api/simulate          run a simulation for {"event_text": "..."}
  GET  /api/leaders           list leader profiles
  GET  /api/history?limit=N   recent simulations with average escalation
  GET  /api/simulations/:id   one stored simulation

Completed simulations are published to NATS when notify.nats_url is set, or
to an in-process server when notify.embedded_port is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cmd, appOptions{
				embedder:     true,
				generator:    true,
				publish:      true,
				embeddedNATS: true,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			var limiter *ratelimit.Limiter
			if a.cfg.Server.SimulateRate > 0 {
				limiter = ratelimit.PerMinute(a.cfg.Server.SimulateRate, a.cfg.Server.SimulateBurst)
				go pruneLimiter(ctx, limiter, limiterIdle)
			}

			router := api.NewRouter(a.service, api.Options{
				CORSOrigins:     a.cfg.Server.CORSOrigins,
				SimulateLimiter: limiter,
				Version:         version,
				Logger:          a.logger,
			})
			return api.Serve(ctx, addr, router, a.logger)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	return cmd
}

// limiterIdle is how long a client's bucket may sit unused before it is dropped.
const limiterIdle = 10 * time.Minute

// pruneLimiter drops idle client buckets every idle interval until ctx ends.
func pruneLimiter(ctx context.Context, l *ratelimit.Limiter, idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune(idle)
		}
	}
}
