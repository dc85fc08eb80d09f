package profile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/xeipuuv/gojsonschema"
)

const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["target_role", "current_skills", "target_skills", "learning_mode", "timeframe"],
  "properties": {
    "target_role": {"type": "string", "minLength": 1},
    "motivation": {"type": "string"},
    "current_skills": {"$ref": "#/definitions/skillSet"},
    "target_skills": {"$ref": "#/definitions/skillSet"},
    "learning_mode": {"type": "string", "minLength": 1},
    "timeframe": {"type": "string", "minLength": 1},
    "custom_timeframe_months": {"type": ["integer", "null"], "minimum": 1, "maximum": 60},
    "resume_parsed_text": {"type": ["string", "null"]},
    "resume_filename": {"type": ["string", "null"]},
    "analysis_output": {}
  },
  "definitions": {
    "skillSet": {
      "type": "array",
      "uniqueItems": true,
      "items": {"type": "string", "minLength": 1, "pattern": "(?s)^\\S(.*\\S)?$"}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
	})
	return schema, schemaErr
}

// validateRecord checks a serialized TargetProfile against the record schema.
func validateRecord(record []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling profile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(record))
	if err != nil {
		return fmt.Errorf("validating profile record: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid profile record: %s", strings.Join(msgs, "; "))
}

// NormalizeSkills trims every entry, drops empty ones and removes exact
// duplicates, keeping first occurrence order. It never returns nil.
func NormalizeSkills(skills []string) []string {
	out := lo.Uniq(lo.FilterMap(skills, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	}))
	if out == nil {
		return []string{}
	}
	return out
}
