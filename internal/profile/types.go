package profile

import (
	"encoding/json"
	"slices"

	"github.com/kalambet/trajectory/internal/taxonomy"
)

// TargetProfile is the user's career target: where they want to go, what they
// know, how they want to learn, and the last analysis produced for them.
//
// Skill sets have set semantics: trimmed, non-empty, no duplicates. Order is
// preserved only for display.
type TargetProfile struct {
	TargetRole            string          `json:"target_role"`
	Motivation            string          `json:"motivation"`
	CurrentSkills         []string        `json:"current_skills"`
	TargetSkills          []string        `json:"target_skills"`
	LearningMode          string          `json:"learning_mode"`
	Timeframe             string          `json:"timeframe"`
	CustomTimeframeMonths *int            `json:"custom_timeframe_months"`
	ResumeParsedText      *string         `json:"resume_parsed_text"`
	ResumeFilename        *string         `json:"resume_filename"`
	AnalysisOutput        json.RawMessage `json:"analysis_output,omitempty"`
}

// Default returns the profile shown to a user who has never saved one.
func Default() TargetProfile {
	return TargetProfile{
		TargetRole:    taxonomy.UnselectedRole,
		CurrentSkills: []string{},
		TargetSkills:  []string{},
		LearningMode:  taxonomy.DefaultLearningMode,
		Timeframe:     taxonomy.DefaultTimeframe,
	}
}

// HasResume reports whether parsed resume text is available.
func (p TargetProfile) HasResume() bool {
	return p.ResumeParsedText != nil && *p.ResumeParsedText != ""
}

// HasAnalysis reports whether a previous analysis result is stored.
func (p TargetProfile) HasAnalysis() bool {
	return len(p.AnalysisOutput) > 0 && string(p.AnalysisOutput) != "null"
}

// Clone returns a deep copy of p.
func (p TargetProfile) Clone() TargetProfile {
	cp := p
	cp.CurrentSkills = slices.Clone(p.CurrentSkills)
	cp.TargetSkills = slices.Clone(p.TargetSkills)
	if p.CustomTimeframeMonths != nil {
		v := *p.CustomTimeframeMonths
		cp.CustomTimeframeMonths = &v
	}
	if p.ResumeParsedText != nil {
		v := *p.ResumeParsedText
		cp.ResumeParsedText = &v
	}
	if p.ResumeFilename != nil {
		v := *p.ResumeFilename
		cp.ResumeFilename = &v
	}
	if p.AnalysisOutput != nil {
		cp.AnalysisOutput = slices.Clone(p.AnalysisOutput)
	}
	return cp
}

// RoleInfo is the user's current role, kept separately from the target
// profile and read-only from the career goals flow.
type RoleInfo struct {
	Role       string `json:"role"`
	Experience string `json:"experience"`
}

// DefaultExperience is reported when no current-role profile exists.
const DefaultExperience = "N/A"
