package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

// Save upserts by user id; a user has at most one subscription row.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if s == nil || s.ID == "" || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO subscriptions (
  id, user_id, status, plan_name, applications_limit, current_period_start, current_period_end, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (user_id) DO UPDATE SET
  status=$3, plan_name=$4, applications_limit=$5, current_period_start=$6, current_period_end=$7, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, string(s.Status), s.PlanName, s.ApplicationsLimit,
		s.CurrentPeriodStart, s.CurrentPeriodEnd)
	return mapErr(err)
}

func (r *subscriptionRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT id, user_id, status, plan_name, applications_limit, current_period_start, current_period_end, created_at, updated_at
  FROM subscriptions
 WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &status, &s.PlanName, &s.ApplicationsLimit,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err := mapErr(err); err == domain.ErrNotFound {
			return nil, err
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

func (r *subscriptionRepo) ListActiveUserIDs(ctx context.Context, tx repository.Tx) ([]string, error) {
	const q = `SELECT user_id FROM subscriptions WHERE status='active' ORDER BY user_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
