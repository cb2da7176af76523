package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*profileRepo)(nil)

type profileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

func (r *profileRepo) Save(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	if p == nil || p.UserID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO user_profiles (
  user_id, first_name, last_name, email, phone, location, summary, skills, experience_years,
  preferred_industries, preferred_locations, preferred_salary_min, preferred_remote, resume_url,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
ON CONFLICT (user_id) DO UPDATE SET
  first_name=$2, last_name=$3, email=$4, phone=$5, location=$6, summary=$7, skills=$8,
  experience_years=$9, preferred_industries=$10, preferred_locations=$11,
  preferred_salary_min=$12, preferred_remote=$13, resume_url=$14, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.UserID, p.FirstName, p.LastName, p.Email, p.Phone, p.Location, p.Summary, nonNil(p.Skills),
		p.ExperienceYears, nonNil(p.PreferredIndustries), nonNil(p.PreferredLocations),
		p.SalaryMin, p.RemotePreferred, p.ResumeURL)
	return mapErr(err)
}

func (r *profileRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	const q = `
SELECT user_id, first_name, last_name, email, phone, location, summary, skills, experience_years,
       preferred_industries, preferred_locations, preferred_salary_min, preferred_remote, resume_url,
       created_at, updated_at
  FROM user_profiles
 WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	p := &model.Profile{}
	if err := row.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Location, &p.Summary,
		&p.Skills, &p.ExperienceYears, &p.PreferredIndustries, &p.PreferredLocations, &p.SalaryMin,
		&p.RemotePreferred, &p.ResumeURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err := mapErr(err); err == domain.ErrNotFound {
			return nil, err
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
