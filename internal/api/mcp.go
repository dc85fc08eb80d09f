package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/trajectory/internal/coach"
	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Profile  *profile.Manager
	Machine  *coach.Machine
	Sessions *coach.Sessions
	Taxonomy *taxonomy.Taxonomy
}

// NewMCPServer creates an MCP server exposing career goals tools and the
// skill taxonomy.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"trajectory",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("trajectory keeps each user's career goals: target role, skills, learning preferences and the latest skill analysis."),
		server.WithRecovery(),
	)

	// Tool: get_target_profile
	s.AddTool(
		mcp.NewTool("get_target_profile",
			mcp.WithDescription("Return a user's saved career goals as a short summary followed by the JSON record."),
			mcp.WithString("user_id", mcp.Description("User identity"), mcp.Required()),
		),
		mcpGetTargetProfile(deps),
	)

	// Tool: resolve_skill_options
	s.AddTool(
		mcp.NewTool("resolve_skill_options",
			mcp.WithDescription("List the target skills selectable for a role, including the user's own custom skills."),
			mcp.WithString("user_id", mcp.Description("User identity"), mcp.Required()),
			mcp.WithString("role", mcp.Description("Target role; unknown roles list every taxonomy skill"), mcp.Required()),
		),
		mcpResolveOptions(deps),
	)

	// Tool: add_custom_skill
	s.AddTool(
		mcp.NewTool("add_custom_skill",
			mcp.WithDescription("Add a free-text skill to a user's current and/or target skills. Existing entries are left alone."),
			mcp.WithString("user_id", mcp.Description("User identity"), mcp.Required()),
			mcp.WithString("current_skill", mcp.Description("Skill the user already has")),
			mcp.WithString("target_skill", mcp.Description("Skill the user wants to learn")),
		),
		mcpAddCustomSkill(deps),
	)

	// Tool: get_analysis
	s.AddTool(
		mcp.NewTool("get_analysis",
			mcp.WithDescription("Return the latest skill analysis stored for a user."),
			mcp.WithString("user_id", mcp.Description("User identity"), mcp.Required()),
		),
		mcpGetAnalysis(deps),
	)

	// Resource: trajectory://taxonomy
	s.AddResource(
		mcp.NewResource(
			"trajectory://taxonomy",
			"Skill Taxonomy",
			mcp.WithResourceDescription("Skill categories, roles, learning modes and timeframes as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTaxonomy(deps),
	)

	return s
}

func mcpGetTargetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		// Load profile and summary.
		p, exists, err := deps.Profile.Load(user)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}
		summary, err := deps.Profile.GetSummary(user)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to summarize profile: %v", err)), nil
		}
		if !exists {
			return mcpText(summary), nil
		}

		// The raw analysis can be large; get_analysis returns it.
		p.AnalysisOutput = nil
		b, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(summary + "\n\n" + string(b)), nil
	}
}

func mcpResolveOptions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		role, err := req.RequireString("role")
		if err != nil {
			return mcpError("role is required"), nil
		}

		// Resolve options, keeping stored custom skills.
		opts, err := deps.Machine.TargetOptions(user, role)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to resolve options: %v", err)), nil
		}
		b, err := json.Marshal(opts)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal options: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddCustomSkill(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		form := coach.FormState{
			NewCurrentSkill: req.GetString("current_skill", ""),
			NewTargetSkill:  req.GetString("target_skill", ""),
		}
		if !form.HasCustomSkillText() {
			return mcpError("at least one of current_skill or target_skill is required"), nil
		}

		// Submit through the form machine at the current generation.
		out, err := deps.Machine.Submit(ctx, deps.Sessions.Current(user), form, nil)
		if errors.Is(err, coach.ErrStaleForm) || errors.Is(err, coach.ErrSubmissionInProgress) {
			return mcpError(fmt.Sprintf("try again: %v", err)), nil
		}
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if out.State != coach.Rerendered {
			return mcpError(fmt.Sprintf("skill not added (%s): %v", out.State, out.Err)), nil
		}

		return mcpText(fmt.Sprintf("Current skills: %s\nTarget skills: %s",
			strings.Join(out.Profile.CurrentSkills, ", "),
			strings.Join(out.Profile.TargetSkills, ", "),
		)), nil
	}
}

func mcpGetAnalysis(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		p, _, err := deps.Profile.Load(user)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}
		// Check analysis exists.
		if !p.HasAnalysis() {
			return mcpText("No analysis available yet. Save career goals with a resume to generate one."), nil
		}
		return mcpText(string(p.AnalysisOutput)), nil
	}
}

func mcpResourceTaxonomy(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{
			"categories":     deps.Taxonomy.Categories(),
			"roles":          taxonomy.Roles(),
			"learning_modes": taxonomy.LearningModes(),
			"timeframes":     taxonomy.Timeframes(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal taxonomy: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
