package analysis

import (
	"context"
	"encoding/json"
	"fmt"
)

// Input is the record handed to the analysis pipeline.
type Input struct {
	Role            string   `json:"role"`
	TargetRole      string   `json:"target_role"`
	CurrentSkills   []string `json:"current_skills"`
	TargetSkills    []string `json:"target_skills"`
	Experience      string   `json:"experience"`
	LearningMode    string   `json:"learning_mode"`
	Motivation      string   `json:"motivation"`
	Timeframe       string   `json:"timeframe"`
	TimeframeMonths *int     `json:"timeframe_months,omitempty"`
}

// RunOptions controls pipeline caching.
type RunOptions struct {
	UseCache     bool `json:"use_cache"`
	ForceRefresh bool `json:"force_refresh"`
}

// Pipeline runs an analysis over an input record and the resume text stored
// at resumePath, returning the pipeline's structured context.
type Pipeline interface {
	Run(ctx context.Context, in Input, resumePath string, opts RunOptions) (json.RawMessage, error)
}

// PipelineError is the single failure kind reported by a Pipeline.
type PipelineError struct {
	Message string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

func (e *PipelineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("analysis pipeline: %s (%s)", e.Message, e.Detail)
	}
	return "analysis pipeline: " + e.Message
}
