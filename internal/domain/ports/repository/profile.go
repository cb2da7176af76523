package repository

import (
	"context"

	"autoapply-agent/internal/domain/model"
)

type ProfileRepository interface {
	// FindByUserID returns domain.ErrNotFound when the user has no profile.
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Profile, error)
	Save(ctx context.Context, tx Tx, p *model.Profile) error
}
