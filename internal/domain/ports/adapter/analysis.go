package adapter

import (
	"context"

	"autoapply-agent/internal/domain/model"
)

// MatchResult is the Match Scorer's verdict for one job page.
type MatchResult struct {
	IsMatch    bool
	MatchScore int // 0..100
	Reasoning  string
}

// FormAnalysis maps CSS selectors to semantic field types
// (first_name, last_name, email, phone, submit_button, ...).
type FormAnalysis struct {
	Success bool
	Fields  map[string]string
}

type MatchScorer interface {
	Score(ctx context.Context, markup string, profile *model.Profile) (MatchResult, error)
}

type FormAnalyzer interface {
	Analyze(ctx context.Context, screenshot []byte, markup string) (FormAnalysis, error)
}

// JobMetadata is what can be read off a job page without an LLM.
type JobMetadata struct {
	Title   string
	Company string
}

type JobMetadataExtractor interface {
	Extract(markup, pageURL string) JobMetadata
}
