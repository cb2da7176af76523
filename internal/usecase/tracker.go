// File: internal/usecase/tracker.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/repository"
	"autoapply-agent/internal/infra/metrics"
)

// Compile-time check
var _ ApplicationTracker = (*applicationTracker)(nil)

// LogEntry is one audit step to append for an application.
type LogEntry struct {
	Action        model.LogAction
	Status        model.LogStatus
	Message       string
	ScreenshotRef string
	Details       map[string]any
}

// ApplicationTracker is the only writer of applications and their logs.
// Status changes always go through Record so each one is paired with a log entry.
type ApplicationTracker interface {
	// Create persists a pending application together with its "start" entry.
	Create(ctx context.Context, app *model.Application) (string, error)
	// Update persists non-status fields. A patch carrying a status is rejected.
	Update(ctx context.Context, app *model.Application, patch model.ApplicationPatch) error
	// Record persists patch and entry atomically and applies patch to app.
	Record(ctx context.Context, app *model.Application, patch model.ApplicationPatch, entry LogEntry) error
	AppendLog(ctx context.Context, applicationID string, entry LogEntry) error
	CountInPeriod(ctx context.Context, userID string, periodStart time.Time) (int, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Application, error)
	ListLogsForUser(ctx context.Context, userID, applicationID string) ([]*model.ApplicationLog, error)
}

type applicationTracker struct {
	apps repository.ApplicationRepository
	logs repository.ApplicationLogRepository
	tm   repository.TransactionManager
	log  *zerolog.Logger
	now  func() time.Time
}

func NewApplicationTracker(apps repository.ApplicationRepository, logs repository.ApplicationLogRepository, tm repository.TransactionManager, logger *zerolog.Logger) *applicationTracker {
	l := logger.With().Str("component", "ApplicationTracker").Logger()
	return &applicationTracker{
		apps: apps,
		logs: logs,
		tm:   tm,
		log:  &l,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (t *applicationTracker) Create(ctx context.Context, app *model.Application) (string, error) {
	if app == nil || app.ID == "" || app.UserID == "" {
		return "", domain.ErrInvalidArgument
	}
	if app.Status == "" {
		app.Status = model.ApplicationStatusPending
	}
	if app.Status != model.ApplicationStatusPending {
		return "", fmt.Errorf("%w: new application must be pending", domain.ErrInvalidArgument)
	}
	entry := t.toLog(app.ID, LogEntry{
		Action:  model.LogActionStart,
		Status:  model.LogStatusSuccess,
		Message: "Starting application process",
		Details: map[string]any{"job_url": app.JobURL},
	})
	err := t.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := t.apps.Create(ctx, tx, app); err != nil {
			return err
		}
		return t.logs.Append(ctx, tx, entry)
	})
	if err != nil {
		return "", fmt.Errorf("create application: %w", err)
	}
	metrics.IncApplication(string(model.ApplicationStatusPending))
	return app.ID, nil
}

func (t *applicationTracker) Update(ctx context.Context, app *model.Application, patch model.ApplicationPatch) error {
	if app == nil {
		return domain.ErrInvalidArgument
	}
	if patch.Status != nil {
		return domain.ErrStatusChange
	}
	if patch.IsZero() {
		return nil
	}
	if err := t.apps.Update(ctx, repository.NoTX, app.ID, patch); err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	patch.ApplyTo(app, t.now())
	return nil
}

// Record keeps app in step with the attempt even when persistence fails,
// so the caller's view of the outcome does not depend on the database.
func (t *applicationTracker) Record(ctx context.Context, app *model.Application, patch model.ApplicationPatch, entry LogEntry) error {
	if app == nil || entry.Action == "" || entry.Status == "" {
		return domain.ErrInvalidArgument
	}
	if patch.Status != nil && app.Status.IsTerminal() {
		return fmt.Errorf("%w: application %s is already %s", domain.ErrInvalidArgument, app.ID, app.Status)
	}
	l := t.toLog(app.ID, entry)

	err := t.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if !patch.IsZero() {
			if err := t.apps.Update(ctx, tx, app.ID, patch); err != nil {
				return err
			}
		}
		return t.logs.Append(ctx, tx, l)
	})
	patch.ApplyTo(app, t.now())
	t.observe(patch, entry)
	if err != nil {
		return fmt.Errorf("record %s: %w", entry.Action, err)
	}
	return nil
}

func (t *applicationTracker) AppendLog(ctx context.Context, applicationID string, entry LogEntry) error {
	if applicationID == "" || entry.Action == "" || entry.Status == "" {
		return domain.ErrInvalidArgument
	}
	t.observe(model.ApplicationPatch{}, entry)
	if err := t.logs.Append(ctx, repository.NoTX, t.toLog(applicationID, entry)); err != nil {
		return fmt.Errorf("append %s log: %w", entry.Action, err)
	}
	return nil
}

func (t *applicationTracker) CountInPeriod(ctx context.Context, userID string, periodStart time.Time) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, domain.ErrInvalidArgument
	}
	return t.apps.CountCreatedSince(ctx, repository.NoTX, userID, periodStart)
}

func (t *applicationTracker) ListForUser(ctx context.Context, userID string) ([]*model.Application, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return t.apps.ListByUser(ctx, repository.NoTX, userID, 0)
}

// ListLogsForUser returns domain.ErrNotFound when the application belongs to someone else.
func (t *applicationTracker) ListLogsForUser(ctx context.Context, userID, applicationID string) ([]*model.ApplicationLog, error) {
	app, err := t.apps.FindByID(ctx, repository.NoTX, applicationID)
	if err != nil {
		return nil, err
	}
	if app.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return t.logs.ListByApplication(ctx, repository.NoTX, applicationID)
}

func (t *applicationTracker) toLog(applicationID string, e LogEntry) *model.ApplicationLog {
	l := &model.ApplicationLog{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Action:        e.Action,
		Status:        e.Status,
		Message:       e.Message,
		Details:       e.Details,
		CreatedAt:     t.now(),
	}
	if e.ScreenshotRef != "" {
		ref := e.ScreenshotRef
		l.ScreenshotRef = &ref
	}
	return l
}

func (t *applicationTracker) observe(patch model.ApplicationPatch, entry LogEntry) {
	if patch.Status != nil {
		metrics.IncApplication(string(*patch.Status))
	}
	if entry.Status == model.LogStatusFailed {
		metrics.IncStageFailure(string(entry.Action))
	}
}
