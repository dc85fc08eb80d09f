package coach

import (
	"slices"
	"strings"

	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

// AddCustomSkills returns stored with the custom skill texts appended to its
// skill sets. Texts are trimmed; empty texts and exact duplicates are
// ignored. Every other field is carried over from stored unchanged, so any
// other selections made in the same form pass are dropped.
func AddCustomSkills(stored profile.TargetProfile, newCurrent, newTarget string) profile.TargetProfile {
	out := stored.Clone()
	out.CurrentSkills = appendSkill(out.CurrentSkills, newCurrent)
	out.TargetSkills = appendSkill(out.TargetSkills, newTarget)
	return out
}

func appendSkill(set []string, skill string) []string {
	if set == nil {
		set = []string{}
	}
	skill = strings.TrimSpace(skill)
	if skill == "" || slices.Contains(set, skill) {
		return set
	}
	return append(set, skill)
}

// ResumeOutcome records what happened to the resume during one main
// submission.
type ResumeOutcome struct {
	// Uploaded is true when a new file came with the submission.
	Uploaded bool
	Filename string
	// Path and Text are set when extraction succeeded.
	Path string
	Text string
	// Err is the extraction failure, if any.
	Err error
}

// AssembleSubmission builds the full record to save for a main submission:
// the form's selections, the resume fields decided by ro and the stored
// analysis output carried forward as is.
func AssembleSubmission(stored profile.TargetProfile, form FormState, ro ResumeOutcome) profile.TargetProfile {
	p := profile.TargetProfile{
		TargetRole:     form.TargetRole,
		Motivation:     form.Motivation,
		CurrentSkills:  profile.NormalizeSkills(form.CurrentSkills),
		TargetSkills:   profile.NormalizeSkills(form.TargetSkills),
		LearningMode:   form.LearningMode,
		Timeframe:      form.Timeframe,
		AnalysisOutput: slices.Clone(stored.AnalysisOutput),
	}

	if form.Timeframe == taxonomy.FlexibleTimeframe {
		months := taxonomy.DefaultCustomMonths
		if form.CustomTimeframeMonths != nil {
			months = *form.CustomTimeframeMonths
		}
		p.CustomTimeframeMonths = &months
	}

	switch {
	case !ro.Uploaded:
		keep := stored.Clone()
		p.ResumeParsedText = keep.ResumeParsedText
		p.ResumeFilename = keep.ResumeFilename
	case ro.Err == nil:
		text, name := ro.Text, ro.Filename
		p.ResumeParsedText = &text
		p.ResumeFilename = &name
	default:
		// A failed upload clears the old resume rather than keeping stale text.
		p.ResumeParsedText = nil
		p.ResumeFilename = nil
	}
	return p
}

// validate checks a main submission before anything runs.
func validate(form FormState) error {
	switch {
	case form.TargetRole == taxonomy.UnselectedRole || strings.TrimSpace(form.TargetRole) == "":
		return &ValidationError{Field: "target_role", Msg: "please select a target role"}
	case !taxonomy.IsRole(form.TargetRole):
		return &ValidationError{Field: "target_role", Msg: "unknown role " + form.TargetRole}
	case !taxonomy.IsLearningMode(form.LearningMode):
		return &ValidationError{Field: "learning_mode", Msg: "unknown learning mode " + form.LearningMode}
	case !taxonomy.IsTimeframe(form.Timeframe):
		return &ValidationError{Field: "timeframe", Msg: "unknown timeframe " + form.Timeframe}
	}
	if m := form.CustomTimeframeMonths; form.Timeframe == taxonomy.FlexibleTimeframe && m != nil &&
		(*m < taxonomy.MinCustomMonths || *m > taxonomy.MaxCustomMonths) {
		return &ValidationError{Field: "custom_timeframe_months", Msg: "must be between 1 and 60"}
	}
	return nil
}
