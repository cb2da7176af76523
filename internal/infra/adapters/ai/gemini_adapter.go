package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) Provider() string { return "gemini" }

// ChatWithUsage sends the whole conversation in one GenerateContent call.
// System messages become the system instruction.
func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: no messages")
	}
	system, contents := toGenAIContents(messages)
	if len(contents) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: no user content")
	}

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelOrDefault(model, g.defaultModel), contents, cfg)
	if err != nil {
		return "", adapter.Usage{}, err
	}

	u := adapter.Usage{}
	if resp != nil && resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if text == "" {
		return "", u, errors.New("gemini: empty reply")
	}
	return text, u, nil
}

func toGenAIContents(msgs []adapter.Message) (*genai.Content, []*genai.Content) {
	var system []*genai.Part
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, genai.NewPartFromText(m.Content))
		case "assistant", "model":
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			parts := []*genai.Part{genai.NewPartFromText(m.Content)}
			for _, img := range m.Images {
				parts = append(parts, genai.NewPartFromBytes(img, "image/png"))
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return nil, out
	}
	return &genai.Content{Parts: system}, out
}
