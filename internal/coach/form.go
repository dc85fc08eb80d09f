package coach

import (
	"slices"
	"strings"

	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/resume"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

// Submit button labels.
const (
	LabelAnalyze = "Generate Skill Analysis"
	LabelSave    = "Save Career Goals"
)

// FormState is one submitted pass of the career goals form.
type FormState struct {
	TargetRole            string
	Motivation            string
	CurrentSkills         []string
	TargetSkills          []string
	LearningMode          string
	Timeframe             string
	CustomTimeframeMonths *int

	// Free-text custom skill fields.
	NewCurrentSkill string
	NewTargetSkill  string

	// Resume is nil when no file was uploaded in this pass.
	Resume *resume.Upload
}

// HasCustomSkillText reports whether either custom skill field has content.
func (f FormState) HasCustomSkillText() bool {
	return strings.TrimSpace(f.NewCurrentSkill) != "" || strings.TrimSpace(f.NewTargetSkill) != ""
}

// FormView is everything needed to render the form for a stored profile.
type FormView struct {
	Generation uint64 `json:"generation"`

	Roles         []string `json:"roles"`
	RoleIndex     int      `json:"role_index"`
	LearningModes []string `json:"learning_modes"`
	LearningIndex int      `json:"learning_mode_index"`
	Timeframes    []string `json:"timeframes"`
	TimeframeIdx  int      `json:"timeframe_index"`

	// CustomMonths pre-fills the month picker shown for a flexible timeframe.
	CustomMonths int    `json:"custom_timeframe_months"`
	Motivation   string `json:"motivation"`

	CurrentSkillOptions []string `json:"current_skill_options"`
	CurrentSkills       []string `json:"current_skills"`
	TargetSkillOptions  []string `json:"target_skill_options"`
	TargetSkills        []string `json:"target_skills"`

	ResumeNotice string `json:"resume_notice,omitempty"`
	SubmitLabel  string `json:"submit_label"`
	HasAnalysis  bool   `json:"has_analysis"`

	CurrentRole profile.RoleInfo `json:"current_role"`
}

// BuildForm computes the form defaults and option sets for p.
func BuildForm(tax *taxonomy.Taxonomy, p profile.TargetProfile, role profile.RoleInfo, generation uint64) FormView {
	roles := taxonomy.Roles()
	modes := taxonomy.LearningModes()
	timeframes := taxonomy.Timeframes()

	v := FormView{
		Generation:          generation,
		Roles:               roles,
		RoleIndex:           indexOr(roles, p.TargetRole, 0),
		LearningModes:       modes,
		LearningIndex:       indexOr(modes, p.LearningMode, 0),
		Timeframes:          timeframes,
		TimeframeIdx:        indexOr(timeframes, p.Timeframe, 1),
		CustomMonths:        taxonomy.DefaultCustomMonths,
		Motivation:          p.Motivation,
		CurrentSkillOptions: tax.CurrentSkillOptions(p.CurrentSkills),
		CurrentSkills:       slices.Clone(p.CurrentSkills),
		TargetSkillOptions:  tax.ResolveOptions(p.TargetRole, p.TargetSkills),
		TargetSkills:        slices.Clone(p.TargetSkills),
		SubmitLabel:         LabelSave,
		HasAnalysis:         p.HasAnalysis(),
		CurrentRole:         role,
	}
	if p.CustomTimeframeMonths != nil {
		v.CustomMonths = *p.CustomTimeframeMonths
	}
	if p.ResumeFilename != nil && *p.ResumeFilename != "" {
		v.ResumeNotice = "Using previously uploaded: " + *p.ResumeFilename
	}
	if p.HasResume() {
		v.SubmitLabel = LabelAnalyze
	}
	return v
}

func indexOr(list []string, v string, fallback int) int {
	if i := slices.Index(list, v); i >= 0 {
		return i
	}
	return fallback
}
