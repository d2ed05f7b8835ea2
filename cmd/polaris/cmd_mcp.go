package main

import (
	"github.com/nvandessel/polaris/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve simulations to MCP clients over stdio",
		Long: `Run an MCP server on stdin/stdout.

Tools:
  polaris_simulate   run a simulation for a crisis description
  polaris_leaders    list leader profiles
  polaris_history    recent simulations

Resources:
  polaris://leaders  leader profiles as a markdown table

Tool calls are audited to <logging.dir>/audit.jsonl. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cmd, appOptions{
				embedder:  true,
				generator: true,
				publish:   true,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcp.NewServer(&mcp.Config{
				Name:     "polaris",
				Version:  version,
				AuditDir: a.cfg.Logging.Dir,
				Logger:   a.logger,
			}, a.service)
			defer server.Close()

			return server.Run(ctx)
		},
	}
}
