//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/repository"
)

func TestProfileAndSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	profiles := NewProfileRepo(testPool)
	subs := NewSubscriptionRepo(testPool)

	t.Run("profile upsert and lookup", func(t *testing.T) {
		cleanup(t)
		userID := uuid.NewString()
		p := &model.Profile{
			UserID: userID, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
			Phone: "+1 555 0100", Location: "London", Summary: "Engineer",
			Skills: []string{"go", "sql"}, ExperienceYears: 7,
		}
		if err := profiles.Save(ctx, nil, p); err != nil {
			t.Fatalf("save: %v", err)
		}
		p.Location = "Remote"
		if err := profiles.Save(ctx, nil, p); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		got, err := profiles.FindByUserID(ctx, nil, userID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Location != "Remote" || len(got.Skills) != 2 || !got.IsComplete() {
			t.Errorf("unexpected profile: %+v", got)
		}

		if _, err := profiles.FindByUserID(ctx, nil, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("subscription upsert and active listing", func(t *testing.T) {
		cleanup(t)
		active, _ := model.NewSubscription(uuid.NewString(), uuid.NewString(), model.PlanPro)
		canceled, _ := model.NewSubscription(uuid.NewString(), uuid.NewString(), model.PlanStandard)
		canceled.Status = model.SubscriptionStatusCanceled
		for _, s := range []*model.Subscription{active, canceled} {
			if err := subs.Save(ctx, nil, s); err != nil {
				t.Fatalf("save: %v", err)
			}
		}

		got, err := subs.FindByUserID(ctx, nil, active.UserID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if !got.IsActive() || got.ApplicationsLimit != 200 {
			t.Errorf("unexpected subscription: %+v", got)
		}

		ids, err := subs.ListActiveUserIDs(ctx, nil)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(ids) != 1 || ids[0] != active.UserID {
			t.Errorf("expected only %s, got %v", active.UserID, ids)
		}
	})
}

func TestApplicationRepos_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	apps := NewApplicationRepo(testPool)
	logs := NewApplicationLogRepo(testPool)
	tm := NewTxManager(testPool)
	userID := uuid.NewString()

	t.Run("create, patch and list", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewApplication(userID, "https://boards.greenhouse.io/acme/jobs/1")
		if err := apps.Create(ctx, nil, a); err != nil {
			t.Fatalf("create: %v", err)
		}
		score := 82
		title := "Go Engineer"
		if err := apps.Update(ctx, nil, a.ID, model.ApplicationPatch{MatchScore: &score, JobTitle: &title}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := apps.Update(ctx, nil, a.ID, model.AppliedPatch(time.Now().UTC())); err != nil {
			t.Fatalf("update applied: %v", err)
		}

		got, err := apps.FindByID(ctx, nil, a.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != model.ApplicationStatusApplied || got.MatchScore == nil || *got.MatchScore != 82 ||
			got.JobTitle != title || got.AppliedAt == nil || got.JobBoard != "greenhouse" {
			t.Errorf("unexpected application: %+v", got)
		}

		if err := apps.Update(ctx, nil, uuid.NewString(), model.FailedPatch("x")); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		b, _ := model.NewApplication(userID, "https://jobs.lever.co/acme/2")
		b.CreatedAt = a.CreatedAt.Add(time.Second)
		if err := apps.Create(ctx, nil, b); err != nil {
			t.Fatalf("create b: %v", err)
		}
		list, err := apps.ListByUser(ctx, nil, userID, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != b.ID {
			t.Errorf("expected newest first, got %v", list)
		}

		n, err := apps.CountCreatedSince(ctx, nil, userID, a.CreatedAt.Add(time.Millisecond))
		if err != nil || n != 1 {
			t.Errorf("expected 1 since a, got %d (%v)", n, err)
		}
	})

	t.Run("logs keep insertion order and details", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewApplication(userID, "https://example.com/job")
		if err := apps.Create(ctx, nil, a); err != nil {
			t.Fatalf("create: %v", err)
		}
		ts := time.Now().UTC()
		for _, action := range []model.LogAction{model.LogActionStart, model.LogActionNavigate, model.LogActionAnalyze} {
			e := &model.ApplicationLog{
				ApplicationID: a.ID, Action: action, Status: model.LogStatusSuccess,
				Message: string(action), Details: map[string]any{"step": string(action)}, CreatedAt: ts,
			}
			if err := logs.Append(ctx, nil, e); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		got, err := logs.ListByApplication(ctx, nil, a.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 3 || got[0].Action != model.LogActionStart || got[2].Action != model.LogActionAnalyze {
			t.Fatalf("unexpected order: %v", got)
		}
		if got[1].Details["step"] != "navigate" {
			t.Errorf("details not round-tripped: %v", got[1].Details)
		}
	})

	t.Run("transaction rolls back patch and log together", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewApplication(userID, "https://example.com/job")
		if err := apps.Create(ctx, nil, a); err != nil {
			t.Fatalf("create: %v", err)
		}
		boom := errors.New("boom")
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := apps.Update(ctx, tx, a.ID, model.FailedPatch("nope")); err != nil {
				return err
			}
			if err := logs.Append(ctx, tx, &model.ApplicationLog{ApplicationID: a.ID, Action: model.LogActionError, Status: model.LogStatusFailed}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		got, _ := apps.FindByID(ctx, nil, a.ID)
		if got.Status != model.ApplicationStatusPending {
			t.Errorf("status should be rolled back, got %s", got.Status)
		}
		entries, _ := logs.ListByApplication(ctx, nil, a.ID)
		if len(entries) != 0 {
			t.Errorf("log should be rolled back, got %d entries", len(entries))
		}
	})
}
