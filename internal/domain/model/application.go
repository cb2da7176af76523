package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoapply-agent/internal/domain"
)

type ApplicationStatus string

const (
	ApplicationStatusPending ApplicationStatus = "pending"
	ApplicationStatusApplied ApplicationStatus = "applied"
	ApplicationStatusFailed  ApplicationStatus = "failed"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusApplied || s == ApplicationStatusFailed
}

// Application is one attempt to apply to one job URL. Rows are never deleted.
type Application struct {
	ID            string
	UserID        string
	JobTitle      string
	CompanyName   string
	JobURL        string
	JobBoard      string
	Status        ApplicationStatus
	MatchScore    *int
	FailureReason *string
	AppliedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewApplication creates a pending application for a discovered job URL.
func NewApplication(userID, jobURL string) (*Application, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	u, err := url.Parse(strings.TrimSpace(jobURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Application{
		ID:        uuid.NewString(),
		UserID:    userID,
		JobURL:    u.String(),
		JobBoard:  JobBoardFromURL(u),
		Status:    ApplicationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

var knownBoards = map[string]string{
	"indeed":          "indeed",
	"linkedin":        "linkedin",
	"glassdoor":       "glassdoor",
	"greenhouse":      "greenhouse",
	"lever":           "lever",
	"workable":        "workable",
	"ziprecruiter":    "ziprecruiter",
	"myworkdayjobs":   "workday",
	"smartrecruiters": "smartrecruiters",
}

// JobBoardFromURL names the job board hosting u, or "other".
func JobBoardFromURL(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	for _, label := range strings.Split(host, ".") {
		if board, ok := knownBoards[label]; ok {
			return board
		}
	}
	return "other"
}

// ApplicationPatch carries a partial update. Nil fields are left untouched.
type ApplicationPatch struct {
	Status        *ApplicationStatus
	MatchScore    *int
	FailureReason *string
	AppliedAt     *time.Time
	JobTitle      *string
	CompanyName   *string
}

func (p ApplicationPatch) IsZero() bool {
	return p.Status == nil && p.MatchScore == nil && p.FailureReason == nil &&
		p.AppliedAt == nil && p.JobTitle == nil && p.CompanyName == nil
}

// ApplyTo copies the set fields of p onto a.
func (p ApplicationPatch) ApplyTo(a *Application, now time.Time) {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.MatchScore != nil {
		v := *p.MatchScore
		a.MatchScore = &v
	}
	if p.FailureReason != nil {
		v := *p.FailureReason
		a.FailureReason = &v
	}
	if p.AppliedAt != nil {
		v := *p.AppliedAt
		a.AppliedAt = &v
	}
	if p.JobTitle != nil {
		a.JobTitle = *p.JobTitle
	}
	if p.CompanyName != nil {
		a.CompanyName = *p.CompanyName
	}
	a.UpdatedAt = now
}

// FailedPatch marks an application failed with a reason.
func FailedPatch(reason string) ApplicationPatch {
	st := ApplicationStatusFailed
	return ApplicationPatch{Status: &st, FailureReason: &reason}
}

// AppliedPatch marks an application submitted at the given time.
func AppliedPatch(at time.Time) ApplicationPatch {
	st := ApplicationStatusApplied
	return ApplicationPatch{Status: &st, AppliedAt: &at}
}
