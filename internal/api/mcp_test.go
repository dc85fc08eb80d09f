package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	app := setupApp(t)
	return MCPDeps{
		Profile:  app.profiles,
		Machine:  app.machine,
		Sessions: app.sessions,
		Taxonomy: taxonomy.Default(),
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_GetTargetProfile_NotConfigured(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGetTargetProfile(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_target_profile", map[string]interface{}{
		"user_id": "alice",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "not yet configured") {
		t.Errorf("got %q", toolText(t, result))
	}
}

func TestMCPTool_GetTargetProfile(t *testing.T) {
	deps := newTestMCPDeps(t)
	p := profile.Default()
	p.TargetRole = "Data Engineer"
	p.AnalysisOutput = json.RawMessage(`{"big":"blob"}`)
	if err := deps.Profile.Save("alice", p); err != nil {
		t.Fatal(err)
	}

	result, err := mcpGetTargetProfile(deps)(context.Background(), makeCallToolRequest("get_target_profile", map[string]interface{}{
		"user_id": "alice",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := toolText(t, result)
	if !strings.Contains(text, "Data Engineer") {
		t.Errorf("missing role: %s", text)
	}
	if strings.Contains(text, "blob") {
		t.Errorf("analysis output should be omitted: %s", text)
	}
}

func TestMCPTool_MissingUserID(t *testing.T) {
	deps := newTestMCPDeps(t)
	for name, h := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"get_target_profile":    mcpGetTargetProfile(deps),
		"resolve_skill_options": mcpResolveOptions(deps),
		"add_custom_skill":      mcpAddCustomSkill(deps),
		"get_analysis":          mcpGetAnalysis(deps),
	} {
		result, err := h(context.Background(), makeCallToolRequest(name, map[string]interface{}{}))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !result.IsError {
			t.Errorf("%s: expected tool error", name)
		}
	}
}

func TestMCPTool_ResolveSkillOptions(t *testing.T) {
	deps := newTestMCPDeps(t)
	p := profile.Default()
	p.TargetSkills = []string{"Custom: Rust"}
	if err := deps.Profile.Save("alice", p); err != nil {
		t.Fatal(err)
	}

	result, err := mcpResolveOptions(deps)(context.Background(), makeCallToolRequest("resolve_skill_options", map[string]interface{}{
		"user_id": "alice",
		"role":    "Data Analyst",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var opts []string
	if err := json.Unmarshal([]byte(toolText(t, result)), &opts); err != nil {
		t.Fatalf("failed to parse options: %v", err)
	}
	found := false
	for _, o := range opts {
		if o == "Custom: Rust" {
			found = true
		}
	}
	if !found {
		t.Errorf("custom skill missing from %v", opts)
	}
}

func TestMCPTool_AddCustomSkill(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpAddCustomSkill(deps)

	req := makeCallToolRequest("add_custom_skill", map[string]interface{}{
		"user_id":       "alice",
		"current_skill": "  Negotiation ",
	})
	for range 2 {
		result, err := handler(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %s", toolText(t, result))
		}
	}

	p, _, err := deps.Profile.Reload("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.CurrentSkills) != 1 || p.CurrentSkills[0] != "Negotiation" {
		t.Errorf("current_skills = %v", p.CurrentSkills)
	}
	if deps.Sessions.Current("alice").Generation != 2 {
		t.Errorf("generation = %d, want 2", deps.Sessions.Current("alice").Generation)
	}
}

func TestMCPTool_AddCustomSkill_Empty(t *testing.T) {
	deps := newTestMCPDeps(t)
	result, err := mcpAddCustomSkill(deps)(context.Background(), makeCallToolRequest("add_custom_skill", map[string]interface{}{
		"user_id":      "alice",
		"target_skill": "   ",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for blank skill")
	}
}

func TestMCPTool_GetAnalysis(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGetAnalysis(deps)
	req := makeCallToolRequest("get_analysis", map[string]interface{}{"user_id": "alice"})

	result, _ := handler(context.Background(), req)
	if !strings.Contains(toolText(t, result), "No analysis") {
		t.Errorf("got %q", toolText(t, result))
	}

	p := profile.Default()
	p.AnalysisOutput = json.RawMessage(`{"roadmap":[]}`)
	if err := deps.Profile.Save("alice", p); err != nil {
		t.Fatal(err)
	}
	result, _ = handler(context.Background(), req)
	if toolText(t, result) != `{"roadmap":[]}` {
		t.Errorf("got %q", toolText(t, result))
	}
}

func TestMCPResource_Taxonomy(t *testing.T) {
	deps := newTestMCPDeps(t)
	contents, err := mcpResourceTaxonomy(deps)(context.Background(), makeReadResourceRequest("trajectory://taxonomy"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var body struct {
		Categories []taxonomy.Category `json:"categories"`
		Roles      []string            `json:"roles"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &body); err != nil {
		t.Fatalf("failed to parse taxonomy: %v", err)
	}
	if len(body.Categories) == 0 || body.Roles[0] != taxonomy.UnselectedRole {
		t.Errorf("unexpected taxonomy: %+v", body)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
