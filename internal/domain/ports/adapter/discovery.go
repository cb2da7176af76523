package adapter

import (
	"context"

	"autoapply-agent/internal/domain/model"
)

// JobDiscovery returns candidate job posting URLs for a profile, best match first.
type JobDiscovery interface {
	Search(ctx context.Context, profile *model.Profile, limit int) ([]string, error)
}
