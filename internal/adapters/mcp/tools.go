// Package mcp exposes contest standings as Model Context Protocol tools
// served over streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/internal/domain/standings"
	"github.com/okian/predictor/pkg/logger"
	"github.com/okian/predictor/pkg/metrics"
)

// Tool names.
const (
	ToolLeaderboard   = "leaderboard"
	ToolWeeklyWinners = "weekly_winners"
	ToolFixtures      = "fixtures"
)

// Dependencies are the read operations the tools call.
type Dependencies interface {
	Leaderboard(ctx context.Context, limit int) ([]standings.LeaderboardRow, error)
	Weekly(ctx context.Context) ([]service.WeekSummary, error)
	Week(ctx context.Context, week int) (service.WeekSummary, error)
	Fixtures(ctx context.Context) ([]model.FixtureResult, error)
}

// LeaderboardArgs is the input schema for the leaderboard tool.
type LeaderboardArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum rows to return (0 = all)"`
}

// WeeklyArgs is the input schema for the weekly_winners tool.
type WeeklyArgs struct {
	Week *int `json:"week,omitempty" jsonschema:"Single week to report (omit for every week)"`
}

// FixturesArgs is the input schema for the fixtures tool.
type FixturesArgs struct {
	Week *int   `json:"week,omitempty" jsonschema:"Only fixtures in this week"`
	Team string `json:"team,omitempty" jsonschema:"Only fixtures involving this team"`
	Open bool   `json:"open,omitempty" jsonschema:"Only fixtures without a result"`
}

// Tools implements the tool handlers.
type Tools struct {
	deps     Dependencies
	maxLimit int
	logger   logger.Logger
}

// NewTools creates the tool handlers. Leaderboard limits are capped at
// maxLimit when it is positive.
func NewTools(deps Dependencies, maxLimit int, log logger.Logger) *Tools {
	if log == nil {
		log = logger.Get().Named("mcp")
	}
	return &Tools{deps: deps, maxLimit: maxLimit, logger: log}
}

// NewServer registers every tool on a new MCP server.
func NewServer(t *Tools, version string) *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "predictor", Version: version}, nil)

	sdk.AddTool(server, &sdk.Tool{
		Name:        ToolLeaderboard,
		Description: "Ranked overall standings with match and season points",
	}, t.HandleLeaderboard)
	sdk.AddTool(server, &sdk.Tool{
		Name:        ToolWeeklyWinners,
		Description: "Weekly match-point winners and scores; weeks without results have no winner yet",
	}, t.HandleWeeklyWinners)
	sdk.AddTool(server, &sdk.Tool{
		Name:        ToolFixtures,
		Description: "Scheduled fixtures with results where known",
	}, t.HandleFixtures)

	return server
}

// Handler serves server over streamable HTTP with plain JSON responses.
func Handler(server *sdk.Server) http.Handler {
	return sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server {
		return server
	}, &sdk.StreamableHTTPOptions{JSONResponse: true})
}

// HandleLeaderboard implements the leaderboard tool.
func (t *Tools) HandleLeaderboard(ctx context.Context, _ *sdk.CallToolRequest, args LeaderboardArgs) (*sdk.CallToolResult, any, error) {
	if args.Limit < 0 {
		return t.fail(ctx, ToolLeaderboard, fmt.Errorf("limit must not be negative")), nil, nil
	}
	limit := args.Limit
	if t.maxLimit > 0 && (limit == 0 || limit > t.maxLimit) {
		limit = t.maxLimit
	}
	rows, err := t.deps.Leaderboard(ctx, limit)
	if err != nil {
		return t.fail(ctx, ToolLeaderboard, err), nil, nil
	}
	return t.ok(ctx, ToolLeaderboard, rows), nil, nil
}

// HandleWeeklyWinners implements the weekly_winners tool.
func (t *Tools) HandleWeeklyWinners(ctx context.Context, _ *sdk.CallToolRequest, args WeeklyArgs) (*sdk.CallToolResult, any, error) {
	if args.Week != nil {
		sum, err := t.deps.Week(ctx, *args.Week)
		if err != nil {
			return t.fail(ctx, ToolWeeklyWinners, err), nil, nil
		}
		return t.ok(ctx, ToolWeeklyWinners, sum), nil, nil
	}
	weeks, err := t.deps.Weekly(ctx)
	if err != nil {
		return t.fail(ctx, ToolWeeklyWinners, err), nil, nil
	}
	return t.ok(ctx, ToolWeeklyWinners, weeks), nil, nil
}

// HandleFixtures implements the fixtures tool.
func (t *Tools) HandleFixtures(ctx context.Context, _ *sdk.CallToolRequest, args FixturesArgs) (*sdk.CallToolResult, any, error) {
	fixtures, err := t.deps.Fixtures(ctx)
	if err != nil {
		return t.fail(ctx, ToolFixtures, err), nil, nil
	}
	team := strings.TrimSpace(args.Team)
	out := make([]model.FixtureResult, 0, len(fixtures))
	for _, f := range fixtures {
		if args.Week != nil && (f.Week == nil || *f.Week != *args.Week) {
			continue
		}
		if team != "" && !strings.EqualFold(f.TeamA, team) && !strings.EqualFold(f.TeamB, team) {
			continue
		}
		if args.Open && f.Completed() {
			continue
		}
		out = append(out, f)
	}
	return t.ok(ctx, ToolFixtures, out), nil, nil
}

func (t *Tools) ok(ctx context.Context, tool string, v any) *sdk.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return t.fail(ctx, tool, err)
	}
	metrics.RecordToolCall(tool, "ok")
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: string(b)}},
	}
}

func (t *Tools) fail(ctx context.Context, tool string, err error) *sdk.CallToolResult {
	metrics.RecordToolCall(tool, "error")
	t.logger.Warn(ctx, "tool call failed", logger.String("tool", tool), logger.Error(err))
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: fmt.Sprintf("error: %v", err)}},
	}
}
