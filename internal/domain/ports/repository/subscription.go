package repository

import (
	"context"

	"autoapply-agent/internal/domain/model"
)

type SubscriptionRepository interface {
	// FindByUserID returns domain.ErrNotFound when the user never subscribed.
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	ListActiveUserIDs(ctx context.Context, tx Tx) ([]string, error)
}
