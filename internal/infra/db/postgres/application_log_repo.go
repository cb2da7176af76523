package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/repository"
)

var _ repository.ApplicationLogRepository = (*applicationLogRepo)(nil)

type applicationLogRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationLogRepo(pool *pgxpool.Pool) *applicationLogRepo {
	return &applicationLogRepo{pool: pool}
}

// Append inserts entry, filling ID and CreatedAt when empty.
func (r *applicationLogRepo) Append(ctx context.Context, tx repository.Tx, e *model.ApplicationLog) error {
	if e == nil || e.ApplicationID == "" {
		return domain.ErrInvalidArgument
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO application_logs (id, application_id, action, status, message, screenshot_ref, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8);`
	_, err = execSQL(ctx, r.pool, tx, q, e.ID, e.ApplicationID, string(e.Action), string(e.Status), e.Message,
		e.ScreenshotRef, string(raw), e.CreatedAt)
	return mapErr(err)
}

func (r *applicationLogRepo) ListByApplication(ctx context.Context, tx repository.Tx, applicationID string) ([]*model.ApplicationLog, error) {
	const q = `
SELECT id, application_id, action, status, message, screenshot_ref, details, created_at
  FROM application_logs
 WHERE application_id=$1
 ORDER BY created_at ASC, seq ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, applicationID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.ApplicationLog
	for rows.Next() {
		e := &model.ApplicationLog{}
		var action, status string
		var raw []byte
		if err := rows.Scan(&e.ID, &e.ApplicationID, &action, &status, &e.Message, &e.ScreenshotRef, &raw, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.Action = model.LogAction(action)
		e.Status = model.LogStatus(status)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
