// Package mcp exposes the simulation engine as MCP (Model Context Protocol)
// tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/ratelimit"
)

// Simulator is the application surface the tools call.
type Simulator interface {
	Simulate(ctx context.Context, text string) (models.SimulationResponse, error)
	Leaders(ctx context.Context) ([]models.LeaderProfile, error)
	History(ctx context.Context, limit int) ([]models.SimulationSummary, error)
}

// Server wraps the MCP SDK server and routes tool calls to the simulator.
type Server struct {
	server       *sdk.Server
	svc          Simulator
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "polaris")
	Version string

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates an MCP server with the polaris tools registered.
func NewServer(cfg *Config, svc Simulator) *Server {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:       mcpServer,
		svc:          svc,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logging.OrDefault(cfg.Logger),
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
// Callers own signal handling and cancel ctx on shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting on stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	s.Close()
	return err
}

// Close releases the audit log.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
