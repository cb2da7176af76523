package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

var errNoProvider = errors.New("ai: no provider configured")

// MultiAIAdapter routes a model to its provider and, when that call fails,
// retries once on another configured provider with that provider's default
// model.
type MultiAIAdapter struct {
	defaultProvider string
	byProvider      map[string]adapter.AIServiceAdapter
	modelToProvider map[string]string // model -> provider ("openai" | "gemini")
	log             *zerolog.Logger
}

func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.AIServiceAdapter,
	modelToProvider map[string]string,
	logger *zerolog.Logger,
) *MultiAIAdapter {
	l := logger.With().Str("component", "MultiAIAdapter").Logger()
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
		log:             &l,
	}
}

func (m *MultiAIAdapter) Provider() string { return m.defaultProvider }

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"), strings.HasPrefix(l, "o4"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(model string) (string, adapter.AIServiceAdapter) {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return prov, a
	}
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return m.defaultProvider, a
	}
	for name, a := range m.byProvider {
		if a != nil {
			return name, a
		}
	}
	return "", nil
}

func (m *MultiAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	prov, a := m.pick(model)
	if a == nil {
		return "", adapter.Usage{}, errNoProvider
	}
	// A model that belongs to another provider is replaced by the picked
	// provider's default.
	callModel := model
	if m.resolveProvider(model) != prov {
		callModel = ""
	}
	reply, u, err := a.ChatWithUsage(ctx, callModel, messages, opts)
	if err == nil || ctx.Err() != nil {
		return reply, u, err
	}

	for name, alt := range m.byProvider {
		if name == prov || alt == nil {
			continue
		}
		m.log.Warn().Err(err).Str("provider", prov).Str("fallback", name).Msg("ai call failed, trying fallback provider")
		return alt.ChatWithUsage(ctx, "", messages, opts)
	}
	return reply, u, err
}
