package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/trajectory/internal/coach"
	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/resume"
	"github.com/kalambet/trajectory/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// multipartOverhead is the room left for form fields next to the resume file.
const multipartOverhead = 1 << 20

const defaultRunsLimit = 20

// RunLister lists analysis run history. Implemented by storage.Store.
type RunLister interface {
	ListAnalysisRuns(userID string, limit int) ([]storage.AnalysisRun, error)
}

type AppDeps struct {
	Runs           RunLister
	Profile        *profile.Manager
	Machine        *coach.Machine
	Token          string
	MaxUploadBytes int64
}

// NewAppHandler returns the HTTP API. Everything except /health requires the
// bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = resume.DefaultMaxBytes
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Route("/users/{user}", func(r chi.Router) {
			r.Get("/goals", handleGetForm(deps))
			r.Post("/goals", handleSubmitGoals(deps))
			r.Get("/goals/options", handleTargetOptions(deps))
			r.Get("/profile", handleGetProfile(deps))
			r.Get("/role-profile", handleGetRoleProfile(deps))
			r.Put("/role-profile", handlePutRoleProfile(deps))
			r.Get("/analysis", handleGetAnalysis(deps))
			r.Get("/analysis/runs", handleListRuns(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// userParam returns the {user} path segment, writing a 400 if it is unusable.
func userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := chi.URLParam(r, "user")
	if user == "" || user == "." || user == ".." || strings.ContainsAny(user, `/\`) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid user id %q", user)
		return "", false
	}
	return user, true
}

func handleGetForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		view, err := deps.Machine.Form(r.Context(), user)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load form: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleTargetOptions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		role := r.URL.Query().Get("role")
		opts, err := deps.Machine.TargetOptions(user, role)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to resolve options: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": role, "options": opts})
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		p, exists, err := deps.Profile.Load(user)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
			return
		}
		summary, err := deps.Profile.GetSummary(user)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to summarize profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": p, "exists": exists, "summary": summary})
	}
}

func handleGetRoleProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		info, err := deps.Profile.CurrentRole(user)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load role profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handlePutRoleProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var info profile.RoleInfo
		if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := deps.Profile.SetCurrentRole(user, info); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save role profile: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetAnalysis(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		p, _, err := deps.Profile.Load(user)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
			return
		}
		if !p.HasAnalysis() {
			httpError(w, http.StatusNotFound, "not_found_error", "no analysis available")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(p.AnalysisOutput)
	}
}

func handleListRuns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		runs, err := deps.Runs.ListAnalysisRuns(user, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}

		type runJSON struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			TargetRole string `json:"target_role"`
			Error      string `json:"error,omitempty"`
			StartedAt  string `json:"started_at"`
			FinishedAt string `json:"finished_at,omitempty"`
		}
		out := make([]runJSON, len(runs))
		for i, run := range runs {
			out[i] = runJSON{
				ID:         run.ID,
				Status:     run.Status,
				TargetRole: run.TargetRole,
				Error:      run.LastError,
				StartedAt:  run.StartedAt.Format(timeFormat),
			}
			if !run.FinishedAt.IsZero() {
				out[i].FinishedAt = run.FinishedAt.Format(timeFormat)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// submitResponse is the body of POST /users/{user}/goals.
type submitResponse struct {
	State           coach.State           `json:"state"`
	Path            []coach.State         `json:"path"`
	Generation      uint64                `json:"generation"`
	Saved           bool                  `json:"saved"`
	Next            string                `json:"next"`
	Profile         profile.TargetProfile `json:"profile"`
	ExtractionError string                `json:"extraction_error,omitempty"`
	Steps           []string              `json:"steps,omitempty"`
	RunID           string                `json:"run_id,omitempty"`
	Analysis        json.RawMessage       `json:"analysis,omitempty"`
	AnalysisSaved   bool                  `json:"analysis_saved,omitempty"`
	Error           *errorBody            `json:"error,omitempty"`
}

func handleSubmitGoals(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userParam(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes+multipartOverhead)
		defer r.Body.Close()

		gen, form, err := parseGoalsForm(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		out, err := deps.Machine.Submit(r.Context(), coach.SessionContext{UserID: user, Generation: gen}, form, func(step string) {
			slog.Debug("analysis progress", "user", user, "step", step)
		})
		switch {
		case errors.Is(err, coach.ErrStaleForm):
			httpError(w, http.StatusConflict, "stale_form_error", "%v", err)
			return
		case errors.Is(err, coach.ErrSubmissionInProgress):
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}

		resp := submitResponse{
			State:         out.State,
			Path:          out.Path,
			Generation:    out.Generation,
			Saved:         wasSaved(out.Path),
			Next:          "form",
			Profile:       out.Profile,
			Steps:         out.Steps,
			RunID:         out.RunID,
			Analysis:      out.Analysis,
			AnalysisSaved: out.AnalysisSaved,
		}
		if out.ExtractionErr != nil {
			resp.ExtractionError = out.ExtractionErr.Error()
		}

		code := http.StatusOK
		switch out.State {
		case coach.AnalysisDone:
			resp.Next = "analysis"
		case coach.ValidationRejected:
			code = http.StatusUnprocessableEntity
			resp.Error = &errorBody{Message: out.Err.Error(), Type: "validation_error"}
		case coach.PersistFailed:
			code = http.StatusInternalServerError
			resp.Error = &errorBody{Message: out.Err.Error(), Type: "persistence_error"}
		case coach.AnalysisFailed:
			code = http.StatusBadGateway
			resp.Error = &errorBody{Message: out.Err.Error(), Type: "pipeline_error"}
		}
		writeJSON(w, code, resp)
	}
}

func wasSaved(path []coach.State) bool {
	for _, s := range path {
		if s == coach.Persisted || s == coach.Rerendered {
			return true
		}
	}
	return false
}

// parseGoalsForm reads the multipart career goals form.
func parseGoalsForm(r *http.Request) (uint64, coach.FormState, error) {
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		return 0, coach.FormState{}, fmt.Errorf("invalid multipart form: %w", err)
	}
	// Everything is copied out of the form before returning.
	defer r.MultipartForm.RemoveAll()

	genStr := r.FormValue("generation")
	if genStr == "" {
		return 0, coach.FormState{}, errors.New("generation is required")
	}
	gen, err := strconv.ParseUint(genStr, 10, 64)
	if err != nil {
		return 0, coach.FormState{}, fmt.Errorf("invalid generation %q", genStr)
	}

	form := coach.FormState{
		TargetRole:      r.FormValue("target_role"),
		Motivation:      r.FormValue("motivation"),
		CurrentSkills:   r.MultipartForm.Value["current_skills"],
		TargetSkills:    r.MultipartForm.Value["target_skills"],
		LearningMode:    r.FormValue("learning_mode"),
		Timeframe:       r.FormValue("timeframe"),
		NewCurrentSkill: r.FormValue("new_current_skill"),
		NewTargetSkill:  r.FormValue("new_target_skill"),
	}

	if v := r.FormValue("custom_timeframe_months"); v != "" {
		months, err := strconv.Atoi(v)
		if err != nil {
			return 0, coach.FormState{}, fmt.Errorf("invalid custom_timeframe_months %q", v)
		}
		form.CustomTimeframeMonths = &months
	}

	file, header, err := r.FormFile("resume")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return 0, coach.FormState{}, fmt.Errorf("reading resume: %w", err)
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return 0, coach.FormState{}, fmt.Errorf("reading resume: %w", err)
		}
		form.Resume = &resume.Upload{Filename: header.Filename, Data: data}
	}

	return gen, form, nil
}
