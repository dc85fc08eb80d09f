package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/trajectory/internal/analysis"
	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/resume"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

// State is a step of a form submission.
type State int

const (
	Idle State = iota
	FormFilled
	CustomSkillPath
	MainSubmitPath
	Rerendered
	Persisted
	AnalysisRunning
	AnalysisDone
	AnalysisFailed
	ValidationRejected
	PersistFailed
)

var stateNames = [...]string{
	Idle:               "idle",
	FormFilled:         "form_filled",
	CustomSkillPath:    "custom_skill_path",
	MainSubmitPath:     "main_submit_path",
	Rerendered:         "rerendered",
	Persisted:          "persisted",
	AnalysisRunning:    "analysis_running",
	AnalysisDone:       "analysis_done",
	AnalysisFailed:     "analysis_failed",
	ValidationRejected: "validation_rejected",
	PersistFailed:      "persist_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome is the result of one submission.
type Outcome struct {
	State State
	// Path lists every state the submission passed through, ending in State.
	Path []State
	// Generation is the form generation the caller should render next.
	Generation uint64
	// Profile is the record as last persisted, or as stored when the save
	// failed. Zero on ValidationRejected.
	Profile profile.TargetProfile
	// ExtractionErr is set when an uploaded resume could not be read. The
	// rest of the profile is still saved.
	ExtractionErr error
	// Analysis is the fresh result handed to the results view on AnalysisDone.
	Analysis      json.RawMessage
	AnalysisSaved bool
	RunID         string
	Steps         []string
	// Err is the ValidationError, PersistenceError or pipeline failure that
	// ended the submission.
	Err error
}

// Store is the profile store adapter. Implemented by profile.Manager.
type Store interface {
	Load(userID string) (profile.TargetProfile, bool, error)
	Reload(userID string) (profile.TargetProfile, bool, error)
	Save(userID string, p profile.TargetProfile) error
	CurrentRole(userID string) (profile.RoleInfo, error)
}

// Extractor turns an uploaded resume into a text file. Implemented by
// resume.Extractor.
type Extractor interface {
	Extract(ctx context.Context, userID string, up resume.Upload) (string, error)
}

// Analyzer runs an analysis for a saved profile. Implemented by
// analysis.Trigger.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request, progress analysis.ProgressFunc) (analysis.Result, error)
}

// Machine drives career goals form submissions.
type Machine struct {
	tax       *taxonomy.Taxonomy
	store     Store
	extractor Extractor
	analyzer  Analyzer
	sessions  *Sessions
	logger    *slog.Logger
}

// NewMachine creates a Machine.
func NewMachine(tax *taxonomy.Taxonomy, store Store, extractor Extractor, analyzer Analyzer, sessions *Sessions, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		tax:       tax,
		store:     store,
		extractor: extractor,
		analyzer:  analyzer,
		sessions:  sessions,
		logger:    logger,
	}
}

// Form returns the form view for userID at its current generation.
func (m *Machine) Form(ctx context.Context, userID string) (FormView, error) {
	var (
		p    profile.TargetProfile
		role profile.RoleInfo
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, _, err = m.store.Load(userID)
		return err
	})
	g.Go(func() error {
		var err error
		role, err = m.store.CurrentRole(userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return FormView{}, fmt.Errorf("loading form for %q: %w", userID, err)
	}
	return BuildForm(m.tax, p, role, m.sessions.Current(userID).Generation), nil
}

// TargetOptions recomputes the target skill options for a role picked in
// the form, keeping the user's stored custom skills selectable.
func (m *Machine) TargetOptions(userID, role string) ([]string, error) {
	p, _, err := m.store.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile for %q: %w", userID, err)
	}
	return m.tax.ResolveOptions(role, p.TargetSkills), nil
}

// Submit processes one submission made from sc. It returns an error only
// when the submission is not admitted (ErrStaleForm, ErrSubmissionInProgress);
// every other result, failures included, is reported through the Outcome.
//
// Custom skill text in either field takes precedence over everything else
// in the form.
func (m *Machine) Submit(ctx context.Context, sc SessionContext, form FormState, progress analysis.ProgressFunc) (Outcome, error) {
	t, err := m.sessions.acquire(sc)
	if err != nil {
		return Outcome{}, err
	}
	defer t.release()

	o := &Outcome{Generation: t.generation()}
	o.to(Idle)
	o.to(FormFilled)

	if form.HasCustomSkillText() {
		o.to(CustomSkillPath)
		m.addCustomSkills(sc.UserID, form, t, o)
	} else {
		o.to(MainSubmitPath)
		m.submitMain(ctx, sc.UserID, form, t, o, progress)
	}

	m.logger.Info("form submitted", "user", sc.UserID, "state", o.State, "generation", o.Generation)
	return *o, nil
}

func (o *Outcome) to(s State) {
	o.State = s
	o.Path = append(o.Path, s)
}

func (o *Outcome) fail(s State, err error) {
	o.to(s)
	o.Err = err
}

func (m *Machine) addCustomSkills(userID string, form FormState, t *turn, o *Outcome) {
	stored, _, err := m.store.Reload(userID)
	if err != nil {
		o.fail(PersistFailed, &PersistenceError{Msg: "Failed to add custom skills: " + err.Error(), Err: err})
		return
	}
	o.Profile = stored

	updated := AddCustomSkills(stored, form.NewCurrentSkill, form.NewTargetSkill)
	if err := m.store.Save(userID, updated); err != nil {
		o.fail(PersistFailed, &PersistenceError{Msg: "Failed to add custom skills: " + err.Error(), Err: err})
		return
	}

	o.Profile = updated
	o.Generation = t.advance()
	o.to(Rerendered)
}

func (m *Machine) submitMain(ctx context.Context, userID string, form FormState, t *turn, o *Outcome, progress analysis.ProgressFunc) {
	if err := validate(form); err != nil {
		o.fail(ValidationRejected, err)
		return
	}

	stored, _, err := m.store.Load(userID)
	if err != nil {
		o.fail(PersistFailed, &PersistenceError{Msg: "Failed to load profile: " + err.Error(), Err: err})
		return
	}
	o.Profile = stored

	ro := m.extractResume(ctx, userID, form.Resume)
	o.ExtractionErr = ro.Err

	updated := AssembleSubmission(stored, form, ro)
	if err := m.store.Save(userID, updated); err != nil {
		o.fail(PersistFailed, &PersistenceError{Msg: "Failed to save profile: " + err.Error(), Err: err})
		return
	}
	o.Profile = updated
	o.Generation = t.advance()
	o.to(Persisted)

	if !updated.HasResume() {
		return
	}

	o.to(AnalysisRunning)
	res, err := m.analyzer.Run(ctx, analysis.Request{
		UserID:     userID,
		Profile:    updated,
		ResumePath: ro.Path,
	}, func(step string) {
		o.Steps = append(o.Steps, step)
		if progress != nil {
			progress(step)
		}
	})
	o.RunID = res.RunID
	if err != nil {
		o.fail(AnalysisFailed, err)
		return
	}

	if res.Persisted {
		o.Profile = res.Profile
	}
	o.Analysis = res.Output
	o.AnalysisSaved = res.Persisted
	o.to(AnalysisDone)
}

func (m *Machine) extractResume(ctx context.Context, userID string, up *resume.Upload) ResumeOutcome {
	if up == nil {
		return ResumeOutcome{}
	}
	ro := ResumeOutcome{Uploaded: true, Filename: up.Filename}

	// A caller that goes away still gets its upload processed.
	path, err := m.extractor.Extract(context.WithoutCancel(ctx), userID, *up)
	if err == nil {
		ro.Text, err = resume.ReadText(path)
	}
	if err != nil {
		var ee *resume.ExtractionError
		if !errors.As(err, &ee) {
			err = &resume.ExtractionError{Filename: up.Filename, Msg: "could not read extracted text", Err: err}
		}
		m.logger.Warn("resume extraction failed", "user", userID, "file", up.Filename, "error", err)
		ro.Err = err
		return ro
	}
	ro.Path = path
	return ro
}
