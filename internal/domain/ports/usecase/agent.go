package usecase

import (
	"context"

	"autoapply-agent/internal/domain/model"
)

// AgentController starts and stops per-user recurring agents.
type AgentController interface {
	Start(ctx context.Context, userID string) error
	Stop(userID string) error
	IsRunning(userID string) bool
}

// ApplicationQuery serves the read side of the dashboard.
type ApplicationQuery interface {
	ListForUser(ctx context.Context, userID string) ([]*model.Application, error)
	ListLogsForUser(ctx context.Context, userID, applicationID string) ([]*model.ApplicationLog, error)
}
