package analysis

import (
	"context"
	"strings"

	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.FormAnalyzer = (*LLMFormAnalyzer)(nil)

const formSystemPrompt = `You map job application form controls to the candidate fields they expect.
Reply with a single JSON object and nothing else:
{"success": boolean, "fields": {"<css selector>": "<field type>"}}
Field types: first_name, last_name, email, phone, resume_upload, cover_letter, submit_button.
Use only selectors from the control list. Set success to false when the page has no application form.`

// LLMFormAnalyzer asks a chat model which selectors take which profile fields.
type LLMFormAnalyzer struct {
	ai             adapter.AIServiceAdapter
	model          string
	reducer        *MarkupReducer
	maxTokens      int
	sendScreenshot bool
}

func NewLLMFormAnalyzer(ai adapter.AIServiceAdapter, model string, reducer *MarkupReducer, maxInputTokens int, sendScreenshot bool) *LLMFormAnalyzer {
	return &LLMFormAnalyzer{ai: ai, model: model, reducer: reducer, maxTokens: maxInputTokens, sendScreenshot: sendScreenshot}
}

type formReply struct {
	Success bool              `json:"success"`
	Fields  map[string]string `json:"fields"`
}

func (a *LLMFormAnalyzer) Analyze(ctx context.Context, screenshot []byte, markup string) (adapter.FormAnalysis, error) {
	outline := FormOutline(markup)
	if strings.TrimSpace(outline) == "" {
		// Nothing fillable; skip the call.
		return adapter.FormAnalysis{Success: false, Fields: map[string]string{}}, nil
	}
	user := adapter.Message{
		Role:    "user",
		Content: "Form controls:\n" + a.reducer.Truncate(outline, a.maxTokens),
	}
	if a.sendScreenshot && len(screenshot) > 0 {
		user.Images = [][]byte{screenshot}
	}
	msgs := []adapter.Message{{Role: "system", Content: formSystemPrompt}, user}

	reply, _, err := a.ai.ChatWithUsage(ctx, a.model, msgs, adapter.ChatOptions{MaxTokens: 300, Temperature: 0.1, JSON: true})
	if err != nil {
		return adapter.FormAnalysis{}, err
	}
	var r formReply
	if err := decodeReply(reply, &r); err != nil {
		return adapter.FormAnalysis{}, err
	}

	fields := make(map[string]string, len(r.Fields))
	for sel, typ := range r.Fields {
		sel, typ = strings.TrimSpace(sel), strings.ToLower(strings.TrimSpace(typ))
		if sel == "" || typ == "" {
			continue
		}
		fields[sel] = typ
	}
	return adapter.FormAnalysis{Success: r.Success, Fields: fields}, nil
}
