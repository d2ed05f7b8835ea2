package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/notify"
	"github.com/nvandessel/polaris/internal/ratelimit"
)

const (
	maxHistoryLimit = 100
	leadersResource = "polaris://leaders"
	leadersMIMEType = "text/markdown"
)

// registerTools registers all polaris MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "polaris_simulate",
		Description: "Simulate how every leader archetype reacts to a geopolitical crisis event and store the result",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "polaris_leaders",
		Description: "List the leader archetypes and their behavioral traits",
	}, s.handleLeaders)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "polaris_history",
		Description: "List recent simulations, newest first, with their average escalation",
	}, s.handleHistory)
}

// registerResources exposes the leader roster as a readable resource.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         leadersResource,
		Name:        "polaris-leaders",
		Description: "Leader archetypes used by every simulation, with trait scores on a 0-10 scale.",
		MIMEType:    leadersMIMEType,
	}, s.handleLeadersResource)
}

func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("polaris_simulate", start, retErr, sanitizeToolParams(map[string]any{"text": args.Text}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "polaris_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	resp, err := s.svc.Simulate(ctx, args.Text)
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	summary := notify.NewSimulationCompleted(resp)
	out := SimulateOutput{
		SimulationID:  resp.SimulationID,
		EventText:     resp.EventText,
		CreatedAt:     resp.CreatedAt.Format(time.RFC3339Nano),
		AvgEscalation: summary.AvgEscalation,
		Results:       make([]JudgmentResult, len(resp.Results)),
	}
	for i, j := range resp.Results {
		out.Results[i] = JudgmentResult{
			Leader:          j.Leader,
			EscalationScore: j.EscalationScore,
			Reaction:        j.Reaction,
			Rationale:       j.Rationale,
			SimilarEvents:   j.SimilarEvents,
			Outcome:         string(j.Outcome),
			Error:           j.Error,
		}
	}
	return nil, out, nil
}

func (s *Server) handleLeaders(ctx context.Context, req *sdk.CallToolRequest, args LeadersInput) (_ *sdk.CallToolResult, _ LeadersOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("polaris_leaders", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "polaris_leaders"); err != nil {
		return nil, LeadersOutput{}, err
	}

	leaders, err := s.svc.Leaders(ctx)
	if err != nil {
		return nil, LeadersOutput{}, fmt.Errorf("failed to list leaders: %w", err)
	}
	if leaders == nil {
		leaders = []models.LeaderProfile{}
	}
	return nil, LeadersOutput{Leaders: leaders, Count: len(leaders)}, nil
}

func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("polaris_history", start, retErr, sanitizeToolParams(map[string]any{"limit": args.Limit}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "polaris_history"); err != nil {
		return nil, HistoryOutput{}, err
	}

	limit := args.Limit
	switch {
	case limit == 0:
		limit = constants.DefaultHistoryLimit
	case limit < 0 || limit > maxHistoryLimit:
		return nil, HistoryOutput{}, fmt.Errorf("limit must be between 1 and %d, got %d", maxHistoryLimit, limit)
	}

	history, err := s.svc.History(ctx, limit)
	if err != nil {
		return nil, HistoryOutput{}, fmt.Errorf("failed to load history: %w", err)
	}

	out := HistoryOutput{Simulations: make([]HistoryItem, len(history)), Count: len(history)}
	for i, h := range history {
		out.Simulations[i] = HistoryItem{
			SimulationID:  h.SimulationID,
			EventText:     h.EventText,
			CreatedAt:     h.CreatedAt.Format(time.RFC3339Nano),
			AvgEscalation: h.AvgEscalation,
		}
	}
	return nil, out, nil
}

// handleLeadersResource renders the leader roster as markdown.
func (s *Server) handleLeadersResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	leaders, err := s.svc.Leaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaders: %w", err)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      leadersResource,
				MIMEType: leadersMIMEType,
				Text:     renderLeaders(leaders),
			},
		},
	}, nil
}

func renderLeaders(leaders []models.LeaderProfile) string {
	var sb strings.Builder
	sb.WriteString("# Leader Archetypes\n\n")
	if len(leaders) == 0 {
		sb.WriteString("No leaders seeded yet. Run `polaris seed` first.\n")
		return sb.String()
	}
	sb.WriteString("| Leader | Aggression | Diplomacy | Risk Tolerance | Domestic Pressure | Escalation Threshold |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, p := range leaders {
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %d | %d |\n",
			p.Name, p.Aggression, p.Diplomacy, p.RiskTolerance, p.DomesticPressure, p.EscalationThreshold)
	}
	return sb.String()
}
