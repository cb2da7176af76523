package repository

import (
	"context"
	"time"

	"autoapply-agent/internal/domain/model"
)

type ApplicationRepository interface {
	Create(ctx context.Context, tx Tx, app *model.Application) error
	Update(ctx context.Context, tx Tx, id string, patch model.ApplicationPatch) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Application, error)
	// CountCreatedSince counts applications of userID with created_at >= since.
	CountCreatedSince(ctx context.Context, tx Tx, userID string, since time.Time) (int, error)
	// ListByUser returns newest first; limit <= 0 means no limit.
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Application, error)
}

type ApplicationLogRepository interface {
	Append(ctx context.Context, tx Tx, entry *model.ApplicationLog) error
	// ListByApplication returns entries oldest first.
	ListByApplication(ctx context.Context, tx Tx, applicationID string) ([]*model.ApplicationLog, error)
}
