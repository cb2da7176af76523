// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"autoapply-agent/internal/config"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/repository"
	"autoapply-agent/internal/infra/api"
	pg "autoapply-agent/internal/infra/db/postgres"
)

// seed creates a complete demo profile with an active subscription and prints
// a dashboard token for it.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config yaml")
	userID := flag.String("user", "", "user id (uuid); random when empty")
	plan := flag.String("plan", model.PlanStandard, "subscription plan: Standard | Pro | none")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *userID == "" {
		*userID = uuid.NewString()
	} else if _, err := uuid.Parse(*userID); err != nil {
		log.Fatalf("user: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	profiles := pg.NewProfileRepo(pool)
	subs := pg.NewSubscriptionRepo(pool)
	txm := pg.NewTxManager(pool)

	now := time.Now().UTC()
	profile := &model.Profile{
		UserID:              *userID,
		FirstName:           "Jane",
		LastName:            "Doe",
		Email:               "jane.doe@example.com",
		Phone:               "+1 555 0100",
		Location:            "Berlin, Germany",
		Summary:             "Backend engineer focused on Go services, Postgres and distributed systems.",
		Skills:              []string{"Go", "PostgreSQL", "Redis", "Kubernetes", "gRPC"},
		ExperienceYears:     6,
		PreferredIndustries: []string{"fintech", "developer tools"},
		PreferredLocations:  []string{"Berlin", "Remote"},
		SalaryMin:           80000,
		RemotePreferred:     true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := profiles.Save(ctx, tx, profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		if *plan == "none" {
			return nil
		}
		sub, err := model.NewSubscription(uuid.NewString(), *userID, *plan)
		if err != nil {
			return fmt.Errorf("plan %q: %w", *plan, err)
		}
		if err := subs.Save(ctx, tx, sub); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	fmt.Printf("user:  %s\n", *userID)
	fmt.Printf("plan:  %s\n", *plan)
	if cfg.HTTP.JWTSecret != "" {
		tok, err := api.NewAuthManager(cfg.HTTP.JWTSecret, 7*24*time.Hour).Mint(*userID)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Printf("token: %s\n", tok)
	}
	fmt.Printf("start: curl -X POST -H 'Authorization: Bearer <api_key>' localhost:%d/api/v1/agents/%s\n", cfg.HTTP.Port, *userID)
}
