package coach

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/resume"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func storedFixture() profile.TargetProfile {
	p := profile.Default()
	p.TargetRole = "Data Analyst"
	p.Motivation = "move into analytics"
	p.CurrentSkills = []string{"Programming Languages: SQL"}
	p.TargetSkills = []string{"Custom: Rust"}
	p.LearningMode = "Hybrid"
	p.Timeframe = "Flexible"
	p.CustomTimeframeMonths = intPtr(9)
	p.ResumeParsedText = strPtr("ABC")
	p.ResumeFilename = strPtr("cv.pdf")
	p.AnalysisOutput = json.RawMessage(`{"score":0.4}`)
	return p
}

func TestAddCustomSkills_TrimsAndAppends(t *testing.T) {
	stored := storedFixture()

	got := AddCustomSkills(stored, "  Negotiation  ", "")
	assert.Equal(t, []string{"Programming Languages: SQL", "Negotiation"}, got.CurrentSkills)
	assert.Equal(t, []string{"Custom: Rust"}, got.TargetSkills)
}

func TestAddCustomSkills_Idempotent(t *testing.T) {
	stored := storedFixture()

	once := AddCustomSkills(stored, "Negotiation", "Kotlin")
	twice := AddCustomSkills(once, "  Negotiation", "Kotlin ")
	assert.Equal(t, once.CurrentSkills, twice.CurrentSkills)
	assert.Equal(t, once.TargetSkills, twice.TargetSkills)
}

func TestAddCustomSkills_CaseSensitive(t *testing.T) {
	got := AddCustomSkills(storedFixture(), "", "custom: rust")
	assert.Equal(t, []string{"Custom: Rust", "custom: rust"}, got.TargetSkills)
}

func TestAddCustomSkills_CarriesEverythingElse(t *testing.T) {
	stored := storedFixture()
	got := AddCustomSkills(stored, "Negotiation", "")

	assert.Equal(t, stored.TargetRole, got.TargetRole)
	assert.Equal(t, stored.Motivation, got.Motivation)
	assert.Equal(t, stored.LearningMode, got.LearningMode)
	assert.Equal(t, stored.Timeframe, got.Timeframe)
	assert.Equal(t, *stored.CustomTimeframeMonths, *got.CustomTimeframeMonths)
	assert.Equal(t, *stored.ResumeParsedText, *got.ResumeParsedText)
	assert.Equal(t, *stored.ResumeFilename, *got.ResumeFilename)
	assert.JSONEq(t, string(stored.AnalysisOutput), string(got.AnalysisOutput))

	// The stored value is not modified.
	assert.Equal(t, []string{"Programming Languages: SQL"}, stored.CurrentSkills)
}

func TestAddCustomSkills_EmptyStored(t *testing.T) {
	stored := profile.Default()
	stored.CurrentSkills = nil

	got := AddCustomSkills(stored, "Negotiation", "")
	assert.Equal(t, []string{"Negotiation"}, got.CurrentSkills)
	assert.Equal(t, []string{}, got.TargetSkills)
}

func mainForm() FormState {
	return FormState{
		TargetRole:    "Software Developer",
		Motivation:    "ship products",
		CurrentSkills: []string{"Programming Languages: Python", " Programming Languages: Python"},
		TargetSkills:  []string{"Software Development: Git"},
		LearningMode:  "Mentor-led",
		Timeframe:     "1 year",
	}
}

func TestAssembleSubmission_NoUploadKeepsResume(t *testing.T) {
	stored := storedFixture()
	got := AssembleSubmission(stored, mainForm(), ResumeOutcome{})

	assert.Equal(t, "Software Developer", got.TargetRole)
	assert.Equal(t, "ship products", got.Motivation)
	assert.Equal(t, []string{"Programming Languages: Python"}, got.CurrentSkills)
	assert.Equal(t, []string{"Software Development: Git"}, got.TargetSkills)
	assert.Equal(t, "Mentor-led", got.LearningMode)
	assert.Equal(t, "1 year", got.Timeframe)
	assert.Nil(t, got.CustomTimeframeMonths)

	require.NotNil(t, got.ResumeParsedText)
	assert.Equal(t, "ABC", *got.ResumeParsedText)
	assert.Equal(t, "cv.pdf", *got.ResumeFilename)
	assert.JSONEq(t, `{"score":0.4}`, string(got.AnalysisOutput))
}

func TestAssembleSubmission_CarriesAnalysisForward(t *testing.T) {
	stored := storedFixture()
	stored.ResumeParsedText = nil
	stored.ResumeFilename = nil

	got := AssembleSubmission(stored, mainForm(), ResumeOutcome{})
	assert.Equal(t, stored.AnalysisOutput, got.AnalysisOutput)
}

func TestAssembleSubmission_NewResume(t *testing.T) {
	got := AssembleSubmission(storedFixture(), mainForm(), ResumeOutcome{
		Uploaded: true, Filename: "new.docx", Path: "/x/text.txt", Text: "NEW",
	})
	assert.Equal(t, "NEW", *got.ResumeParsedText)
	assert.Equal(t, "new.docx", *got.ResumeFilename)
}

func TestAssembleSubmission_FailedExtractionClearsResume(t *testing.T) {
	got := AssembleSubmission(storedFixture(), mainForm(), ResumeOutcome{
		Uploaded: true, Filename: "bad.pdf", Err: &resume.ExtractionError{Filename: "bad.pdf", Msg: "broken"},
	})
	assert.Nil(t, got.ResumeParsedText)
	assert.Nil(t, got.ResumeFilename)
	assert.Equal(t, "Software Developer", got.TargetRole)
}

func TestAssembleSubmission_FlexibleTimeframe(t *testing.T) {
	form := mainForm()
	form.Timeframe = taxonomy.FlexibleTimeframe

	got := AssembleSubmission(profile.Default(), form, ResumeOutcome{})
	require.NotNil(t, got.CustomTimeframeMonths)
	assert.Equal(t, taxonomy.DefaultCustomMonths, *got.CustomTimeframeMonths)

	form.CustomTimeframeMonths = intPtr(24)
	got = AssembleSubmission(profile.Default(), form, ResumeOutcome{})
	assert.Equal(t, 24, *got.CustomTimeframeMonths)
}

func TestAssembleSubmission_FixedTimeframeDropsMonths(t *testing.T) {
	form := mainForm()
	form.CustomTimeframeMonths = intPtr(24)

	got := AssembleSubmission(profile.Default(), form, ResumeOutcome{})
	assert.Nil(t, got.CustomTimeframeMonths)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*FormState)
		field string
	}{
		{"ok", func(*FormState) {}, ""},
		{"unselected role", func(f *FormState) { f.TargetRole = taxonomy.UnselectedRole }, "target_role"},
		{"empty role", func(f *FormState) { f.TargetRole = "" }, "target_role"},
		{"unknown role", func(f *FormState) { f.TargetRole = "Astronaut" }, "target_role"},
		{"unknown mode", func(f *FormState) { f.LearningMode = "Osmosis" }, "learning_mode"},
		{"unknown timeframe", func(f *FormState) { f.Timeframe = "2 weeks" }, "timeframe"},
		{"months too high", func(f *FormState) { f.Timeframe = "Flexible"; f.CustomTimeframeMonths = intPtr(61) }, "custom_timeframe_months"},
		{"months too low", func(f *FormState) { f.Timeframe = "Flexible"; f.CustomTimeframeMonths = intPtr(0) }, "custom_timeframe_months"},
		{"months ignored when fixed", func(f *FormState) { f.CustomTimeframeMonths = intPtr(0) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := mainForm()
			tt.edit(&form)
			err := validate(form)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
