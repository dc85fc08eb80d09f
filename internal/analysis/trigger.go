package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/storage"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

// Steps are the status messages shown, in order, while an analysis runs.
var Steps = []string{
	"Analyzing your profile...",
	"Analyzing your skills...",
	"Generating personalized roadmap...",
}

// ProfileStore is the subset of profile.Manager the trigger needs.
type ProfileStore interface {
	Save(userID string, p profile.TargetProfile) error
	CurrentRole(userID string) (profile.RoleInfo, error)
}

// ResumeWriter writes stored resume text to the location the pipeline reads.
type ResumeWriter interface {
	Materialize(userID, text string) (string, error)
}

// RunRecorder keeps a history of analysis runs. Implemented by storage.Store.
type RunRecorder interface {
	StartAnalysisRun(run storage.AnalysisRun) error
	FinishAnalysisRun(id, errMsg string) error
}

// ProgressFunc receives each status message as the run advances.
type ProgressFunc func(step string)

// Request describes one analysis run for a freshly saved profile.
type Request struct {
	UserID  string
	Profile profile.TargetProfile
	// ResumePath is set when a resume was extracted during this submission.
	ResumePath string
}

// Result is a successful run.
type Result struct {
	RunID   string
	Output  json.RawMessage
	Profile profile.TargetProfile
	// Persisted reports whether the profile was saved again with Output.
	Persisted bool
}

// Trigger assembles pipeline input from a saved profile, runs the pipeline
// and stores its output back on the profile.
type Trigger struct {
	pipeline Pipeline
	profiles ProfileStore
	resumes  ResumeWriter
	runs     RunRecorder
	logger   *slog.Logger
}

// NewTrigger creates a Trigger. runs may be nil to skip run history.
func NewTrigger(pipeline Pipeline, profiles ProfileStore, resumes ResumeWriter, runs RunRecorder, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		pipeline: pipeline,
		profiles: profiles,
		resumes:  resumes,
		runs:     runs,
		logger:   logger,
	}
}

// Run performs one uncached, force-refreshed analysis. The pipeline call is
// detached from ctx cancellation: a caller that goes away abandons the run
// but does not stop it. A failure leaves the previously saved profile as is.
func (t *Trigger) Run(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	runCtx := context.WithoutCancel(ctx)
	p := req.Profile.Clone()

	var (
		role       profile.RoleInfo
		resumePath = req.ResumePath
	)
	g, _ := errgroup.WithContext(runCtx)
	g.Go(func() error {
		var err error
		role, err = t.profiles.CurrentRole(req.UserID)
		return err
	})
	if resumePath == "" {
		g.Go(func() error {
			if p.ResumeParsedText == nil {
				return fmt.Errorf("no resume text for %q", req.UserID)
			}
			var err error
			resumePath, err = t.resumes.Materialize(req.UserID, *p.ResumeParsedText)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("preparing analysis: %w", err)
	}

	runID := uuid.New().String()
	t.startRun(runID, req.UserID, p.TargetRole)

	for _, step := range Steps {
		if progress != nil {
			progress(step)
		}
	}

	in := buildInput(p, role)
	t.logger.Info("analysis started", "user", req.UserID, "run", runID, "target_role", p.TargetRole)
	start := time.Now()

	out, err := t.pipeline.Run(runCtx, in, resumePath, RunOptions{UseCache: false, ForceRefresh: true})
	if err != nil {
		t.finishRun(runID, err.Error())
		t.logger.Warn("analysis failed", "user", req.UserID, "run", runID, "error", err)
		return Result{RunID: runID}, err
	}
	t.finishRun(runID, "")
	t.logger.Info("analysis finished", "user", req.UserID, "run", runID, "duration", time.Since(start))

	p.AnalysisOutput = out
	res := Result{RunID: runID, Output: out, Profile: p, Persisted: true}
	if err := t.profiles.Save(req.UserID, p); err != nil {
		t.logger.Warn("saving analysis output failed", "user", req.UserID, "run", runID, "error", err)
		res.Persisted = false
	}
	return res, nil
}

func buildInput(p profile.TargetProfile, role profile.RoleInfo) Input {
	in := Input{
		Role:          role.Role,
		TargetRole:    p.TargetRole,
		CurrentSkills: p.CurrentSkills,
		TargetSkills:  p.TargetSkills,
		Experience:    role.Experience,
		LearningMode:  p.LearningMode,
		Motivation:    p.Motivation,
		Timeframe:     p.Timeframe,
	}
	if in.Experience == "" {
		in.Experience = profile.DefaultExperience
	}
	if p.Timeframe == taxonomy.FlexibleTimeframe && p.CustomTimeframeMonths != nil {
		m := *p.CustomTimeframeMonths
		in.TimeframeMonths = &m
	}
	return in
}

func (t *Trigger) startRun(id, userID, targetRole string) {
	if t.runs == nil {
		return
	}
	err := t.runs.StartAnalysisRun(storage.AnalysisRun{
		ID:         id,
		UserID:     userID,
		Status:     storage.RunRunning,
		TargetRole: targetRole,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.logger.Warn("recording analysis run", "run", id, "error", err)
	}
}

func (t *Trigger) finishRun(id, errMsg string) {
	if t.runs == nil {
		return
	}
	if err := t.runs.FinishAnalysisRun(id, errMsg); err != nil {
		t.logger.Warn("finishing analysis run", "run", id, "error", err)
	}
}
