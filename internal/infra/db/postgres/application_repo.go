package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/repository"
)

var _ repository.ApplicationRepository = (*applicationRepo)(nil)

type applicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *applicationRepo {
	return &applicationRepo{pool: pool}
}

const applicationColumns = `id, user_id, job_title, company_name, job_url, job_board, status, match_score, failure_reason, applied_at, created_at, updated_at`

func (r *applicationRepo) Create(ctx context.Context, tx repository.Tx, a *model.Application) error {
	if a == nil || a.ID == "" || a.UserID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO applications (` + applicationColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.UserID, a.JobTitle, a.CompanyName, a.JobURL, a.JobBoard,
		string(a.Status), a.MatchScore, a.FailureReason, a.AppliedAt, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

// Update writes only the fields set in patch.
func (r *applicationRepo) Update(ctx context.Context, tx repository.Tx, id string, patch model.ApplicationPatch) error {
	if id == "" {
		return domain.ErrInvalidArgument
	}
	if patch.IsZero() {
		return nil
	}

	sets := make([]string, 0, 7)
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.MatchScore != nil {
		add("match_score", *patch.MatchScore)
	}
	if patch.FailureReason != nil {
		add("failure_reason", *patch.FailureReason)
	}
	if patch.AppliedAt != nil {
		add("applied_at", *patch.AppliedAt)
	}
	if patch.JobTitle != nil {
		add("job_title", *patch.JobTitle)
	}
	if patch.CompanyName != nil {
		add("company_name", *patch.CompanyName)
	}
	sets = append(sets, "updated_at=NOW()")

	q := `UPDATE applications SET ` + strings.Join(sets, ", ") + ` WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *applicationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	a, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *applicationRepo) CountCreatedSince(ctx context.Context, tx repository.Tx, userID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM applications WHERE user_id=$1 AND created_at >= $2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, since)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (r *applicationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id=$1 ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	a := &model.Application{}
	var status string
	if err := row.Scan(&a.ID, &a.UserID, &a.JobTitle, &a.CompanyName, &a.JobURL, &a.JobBoard, &status,
		&a.MatchScore, &a.FailureReason, &a.AppliedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = model.ApplicationStatus(status)
	return a, nil
}
