package adapter

import (
	"context"

	"autoapply-agent/internal/domain/model"
)

// RunNotifier reports finished agent runs to an operator channel.
type RunNotifier interface {
	NotifyRun(ctx context.Context, summary model.RunSummary) error
}
