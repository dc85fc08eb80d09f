package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kalambet/trajectory/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
	Form   map[string][]string
	Files  map[string]string // field -> filename
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Auth:   r.Header.Get("Authorization"),
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				rec.Form = r.MultipartForm.Value
				rec.Files = make(map[string]string)
				for field, headers := range r.MultipartForm.File {
					rec.Files[field] = headers[0].Filename
				}
			}
		} else {
			var body bytes.Buffer
			body.ReadFrom(r.Body)
			rec.Body = body.String()
		}
		ts.requests = append(ts.requests, rec)

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useClient points the CLI commands at ts for the duration of the test.
func (ts *testServer) useClient(t *testing.T) {
	t.Helper()
	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = orig })
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

var ctx = context.Background()

const aliceForm = `{
  "generation": 7,
  "roles": ["Select Target Role", "Data Analyst", "Data Engineer"],
  "role_index": 1,
  "learning_modes": ["Self-paced Online Courses", "Bootcamp"],
  "learning_mode_index": 1,
  "timeframes": ["3 months", "6 months", "Flexible"],
  "timeframe_index": 2,
  "custom_timeframe_months": 18,
  "motivation": "growth",
  "current_skills": ["SQL"],
  "target_skills": ["Python", "Statistics"],
  "target_skill_options": ["Python", "Statistics", "Custom: Rust"],
  "submit_label": "Save Career Goals"
}`

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /users/alice/profile": `{"exists":false}`,
	})

	resp, err := ts.client().get(ctx, userPath("alice", "/profile"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestUserPathEscapes(t *testing.T) {
	if got := userPath("a b/c", "/goals"); got != "/users/a%20b%2Fc/goals" {
		t.Errorf("userPath = %q", got)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to mention 404", err.Error())
	}
}

func TestPostForm_Multipart(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /users/alice/goals": `{"state":"persisted"}`,
	})

	resumePath := filepath.Join(t.TempDir(), "cv.txt")
	if err := os.WriteFile(resumePath, []byte("ten years of SQL"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := postGoals(ctx, ts.client(), "alice", goalsForm{
		fields: map[string][]string{
			"generation":     {"3"},
			"current_skills": {"SQL", "Excel"},
		},
		resumePath: resumePath,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != "persisted" {
		t.Errorf("state = %q", res.State)
	}

	r := ts.requests[0]
	if got := r.Form["current_skills"]; len(got) != 2 || got[1] != "Excel" {
		t.Errorf("current_skills = %v", got)
	}
	if r.Files["resume"] != "cv.txt" {
		t.Errorf("resume filename = %q, want cv.txt", r.Files["resume"])
	}
}

func TestPostGoals_AdmissionError(t *testing.T) {
	ts := newTestServer(t, nil)

	_, err := postGoals(ctx, ts.client(), "alice", goalsForm{fields: map[string][]string{"generation": {"1"}}})
	if err == nil {
		t.Fatal("expected error for a body without state")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestGoalsSubmit_KeepsSavedValues(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /users/alice/goals":  aliceForm,
		"POST /users/alice/goals": `{"state":"persisted","saved":true,"next":"form"}`,
	})
	ts.useClient(t)

	if err := execute(t, "goals", "submit", "--user", "alice", "--role", "Data Engineer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	form := ts.requests[1].Form
	want := map[string]string{
		"generation":              "7",
		"target_role":             "Data Engineer",
		"learning_mode":           "Bootcamp",
		"timeframe":               "Flexible",
		"custom_timeframe_months": "18",
		"motivation":              "growth",
	}
	for k, v := range want {
		if got := form[k]; len(got) != 1 || got[0] != v {
			t.Errorf("%s = %v, want %q", k, got, v)
		}
	}
	if got := form["target_skills"]; len(got) != 2 {
		t.Errorf("target_skills = %v", got)
	}
}

func TestGoalsAddSkill_MissingArgs(t *testing.T) {
	err := execute(t, "goals", "add-skill")
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestGoalsAddSkill(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /users/bob/goals":  aliceForm,
		"POST /users/bob/goals": `{"state":"rerendered","profile":{"current_skills":["SQL","Go"],"target_skills":["Python"]}}`,
	})
	ts.useClient(t)

	if err := execute(t, "goals", "add-skill", "--user", "bob", "--current", "Go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	form := ts.requests[1].Form
	if form["new_current_skill"][0] != "Go" || form["generation"][0] != "7" {
		t.Errorf("form = %v", form)
	}
	if _, ok := form["target_role"]; ok {
		t.Error("add-skill should not send form selections")
	}
}

func newSubmitFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "submit"}
	addSubmitFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd
}

func TestSubmitFormFromFlags_FixedTimeframeDropsMonths(t *testing.T) {
	var view formView
	if err := json.Unmarshal([]byte(aliceForm), &view); err != nil {
		t.Fatal(err)
	}
	form, err := submitFormFromFlags(newSubmitFlags(t, "--timeframe", "3 months", "--target", "SQL,Go"), view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := form.fields["custom_timeframe_months"]; ok {
		t.Error("months sent for a fixed timeframe")
	}
	if got := form.fields["target_skills"]; len(got) != 2 || got[1] != "Go" {
		t.Errorf("target_skills = %v", got)
	}
}

func TestSubmitFormFromFlags_MissingResume(t *testing.T) {
	var view formView
	json.Unmarshal([]byte(aliceForm), &view)
	_, err := submitFormFromFlags(newSubmitFlags(t, "--resume", filepath.Join(t.TempDir(), "missing.pdf")), view)
	if err == nil {
		t.Fatal("expected error for missing resume file")
	}
}

func TestReportSubmit(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"persisted", `{"state":"persisted"}`, ""},
		{"rerendered", `{"state":"rerendered"}`, ""},
		{"analysis done", `{"state":"analysis_done","analysis":{"roadmap":[]},"analysis_saved":true}`, ""},
		{"analysis failed", `{"state":"analysis_failed","error":{"message":"pipeline down","type":"pipeline_error"}}`, "pipeline down"},
		{"validation", `{"state":"validation_rejected","error":{"message":"target role is required","type":"validation_error"}}`, "target role"},
		{"persist failed", `{"state":"persist_failed","error":{"message":"Failed to save profile: disk","type":"persistence_error"}}`, "Failed to save profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res submitResult
			if err := json.Unmarshal([]byte(tt.body), &res); err != nil {
				t.Fatal(err)
			}
			err := reportSubmit(res)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAnalysisRuns(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /users/alice/analysis/runs": `[{"id":"0123456789abcdef","status":"failed","target_role":"Data Engineer","error":"boom","started_at":"2026-01-01T00:00:00Z"}]`,
	})
	ts.useClient(t)

	if err := execute(t, "analysis", "runs", "--user", "alice", "--limit", "5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/users/alice/analysis/runs?limit=5" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
}

func TestRoleSet(t *testing.T) {
	var method, path string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: srv.URL, token: "test-token", httpClient: srv.Client()}, nil
	}
	t.Cleanup(func() { newAPIClient = orig })

	if err := execute(t, "role", "set", "Data Analyst", "--user", "carol", "--experience", "3 years"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPut || path != "/users/carol/role-profile" {
		t.Errorf("request = %s %s", method, path)
	}
	if body["role"] != "Data Analyst" || body["experience"] != "3 years" {
		t.Errorf("body = %v", body)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TRAJECTORY_SERVER_PORT", "1")
	if err := showStatus(ctx); err != nil {
		t.Fatalf("status should not fail when the server is down: %v", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	orig := noColor
	defer func() { noColor = orig }()

	noColor = true
	if got := colorize(colorRed, "x"); got != "x" {
		t.Errorf("colorize with noColor = %q, want plain text", got)
	}
	noColor = false
	if got := colorize(colorRed, "x"); got != colorRed+"x"+colorReset {
		t.Errorf("colorize = %q", got)
	}
}

func TestConfigShowAll(t *testing.T) {
	keys := config.ShowAll(config.Config{})
	for _, k := range keys {
		if k.Key == "pipeline.api_key" {
			t.Error("secret key listed by config show")
		}
	}
	if len(keys) == 0 {
		t.Error("no config keys listed")
	}
}

func TestHelpers(t *testing.T) {
	if shortID("0123456789") != "01234567" || shortID("abc") != "abc" {
		t.Error("shortID")
	}
	if firstLine("a\nb") != "a" || firstLine("a") != "a" {
		t.Error("firstLine")
	}
	if pick([]string{"a"}, 3) != "" || pick([]string{"a"}, 0) != "a" {
		t.Error("pick")
	}
}
