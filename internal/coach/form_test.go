package coach

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

func TestBuildForm_Defaults(t *testing.T) {
	v := BuildForm(taxonomy.Default(), profile.Default(), profile.RoleInfo{}, 3)

	assert.Equal(t, uint64(3), v.Generation)
	assert.Equal(t, 0, v.RoleIndex)
	assert.Equal(t, taxonomy.UnselectedRole, v.Roles[v.RoleIndex])
	assert.Equal(t, "Self-paced", v.LearningModes[v.LearningIndex])
	assert.Equal(t, "6 months", v.Timeframes[v.TimeframeIdx])
	assert.Equal(t, 12, v.CustomMonths)
	assert.Equal(t, LabelSave, v.SubmitLabel)
	assert.Empty(t, v.ResumeNotice)
	assert.False(t, v.HasAnalysis)
	assert.ElementsMatch(t, taxonomy.Default().Flattened(), v.TargetSkillOptions)
}

func TestBuildForm_UnknownValuesFallBack(t *testing.T) {
	p := profile.Default()
	p.TargetRole = "Astronaut"
	p.LearningMode = "Osmosis"
	p.Timeframe = "2 weeks"

	v := BuildForm(taxonomy.Default(), p, profile.RoleInfo{}, 0)
	assert.Equal(t, 0, v.RoleIndex)
	assert.Equal(t, 0, v.LearningIndex)
	assert.Equal(t, 1, v.TimeframeIdx)
	assert.NotEmpty(t, v.TargetSkillOptions)
}

func TestBuildForm_StoredProfile(t *testing.T) {
	v := BuildForm(taxonomy.Default(), storedFixture(), profile.RoleInfo{Role: "QA Engineer"}, 0)

	assert.Equal(t, "Data Analyst", v.Roles[v.RoleIndex])
	assert.Equal(t, "Hybrid", v.LearningModes[v.LearningIndex])
	assert.Equal(t, "Flexible", v.Timeframes[v.TimeframeIdx])
	assert.Equal(t, 9, v.CustomMonths)
	assert.Equal(t, "Using previously uploaded: cv.pdf", v.ResumeNotice)
	assert.Equal(t, LabelAnalyze, v.SubmitLabel)
	assert.True(t, v.HasAnalysis)
	assert.Contains(t, v.TargetSkillOptions, "Custom: Rust")
	assert.Contains(t, v.CurrentSkillOptions, "Programming Languages: SQL")
	assert.Equal(t, []string{"Custom: Rust"}, v.TargetSkills)
	assert.Equal(t, "QA Engineer", v.CurrentRole.Role)
}

func TestBuildForm_CustomCurrentSkillSelectable(t *testing.T) {
	p := profile.Default()
	p.CurrentSkills = []string{"Negotiation"}

	v := BuildForm(taxonomy.Default(), p, profile.RoleInfo{}, 0)
	assert.Contains(t, v.CurrentSkillOptions, "Negotiation")
	assert.Len(t, v.CurrentSkillOptions, len(taxonomy.Default().Flattened())+1)
}
