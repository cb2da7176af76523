package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.MatchScorer = (*LLMMatchScorer)(nil)

const matchSystemPrompt = `You screen job postings for a candidate. Reply with a single JSON object and nothing else:
{"is_match": boolean, "match_score": integer 0-100, "reasoning": "one or two sentences"}`

// LLMMatchScorer asks a chat model how well a job page fits a profile.
type LLMMatchScorer struct {
	ai        adapter.AIServiceAdapter
	model     string
	reducer   *MarkupReducer
	maxTokens int
}

// NewLLMMatchScorer builds a scorer; maxInputTokens bounds the job text.
func NewLLMMatchScorer(ai adapter.AIServiceAdapter, model string, reducer *MarkupReducer, maxInputTokens int) *LLMMatchScorer {
	return &LLMMatchScorer{ai: ai, model: model, reducer: reducer, maxTokens: maxInputTokens}
}

type matchReply struct {
	IsMatch    bool    `json:"is_match"`
	MatchScore float64 `json:"match_score"`
	Reasoning  string  `json:"reasoning"`
}

func (s *LLMMatchScorer) Score(ctx context.Context, markup string, profile *model.Profile) (adapter.MatchResult, error) {
	job := s.reducer.Truncate(HTMLToText(markup), s.maxTokens)
	msgs := []adapter.Message{
		{Role: "system", Content: matchSystemPrompt},
		{Role: "user", Content: matchPrompt(job, profile)},
	}
	reply, _, err := s.ai.ChatWithUsage(ctx, s.model, msgs, adapter.ChatOptions{MaxTokens: 200, Temperature: 0.1, JSON: true})
	if err != nil {
		return adapter.MatchResult{}, err
	}

	var r matchReply
	if err := decodeReply(reply, &r); err != nil {
		return adapter.MatchResult{}, err
	}
	return adapter.MatchResult{
		IsMatch:    r.IsMatch,
		MatchScore: int(math.Round(r.MatchScore)),
		Reasoning:  strings.TrimSpace(r.Reasoning),
	}, nil
}

func matchPrompt(job string, p *model.Profile) string {
	var b strings.Builder
	b.WriteString("Job description:\n")
	b.WriteString(job)
	b.WriteString("\n\nCandidate:\n")
	fmt.Fprintf(&b, "- Skills: %s\n", orText(strings.Join(p.Skills, ", "), "Not specified"))
	fmt.Fprintf(&b, "- Experience: %d years\n", p.ExperienceYears)
	fmt.Fprintf(&b, "- Summary: %s\n", orText(p.Summary, "Not provided"))
	fmt.Fprintf(&b, "- Location: %s\n", orText(p.Location, "Not specified"))
	fmt.Fprintf(&b, "- Preferred industries: %s\n", orText(strings.Join(p.PreferredIndustries, ", "), "Any"))
	if len(p.PreferredLocations) > 0 {
		fmt.Fprintf(&b, "- Preferred locations: %s\n", strings.Join(p.PreferredLocations, ", "))
	}
	if p.RemotePreferred {
		b.WriteString("- Prefers remote work\n")
	}
	if p.SalaryMin > 0 {
		fmt.Fprintf(&b, "- Minimum salary: %d\n", p.SalaryMin)
	}
	return b.String()
}

func orText(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
