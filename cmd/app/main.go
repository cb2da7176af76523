// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"autoapply-agent/internal/config"
	"autoapply-agent/internal/domain/ports/adapter"
	aiAdapters "autoapply-agent/internal/infra/adapters/ai"
	"autoapply-agent/internal/infra/adapters/analysis"
	"autoapply-agent/internal/infra/adapters/discovery"
	tele "autoapply-agent/internal/infra/adapters/telegram"
	"autoapply-agent/internal/infra/api"
	"autoapply-agent/internal/infra/browser"
	pg "autoapply-agent/internal/infra/db/postgres"
	"autoapply-agent/internal/infra/logging"
	"autoapply-agent/internal/infra/memstore"
	"autoapply-agent/internal/infra/metrics"
	red "autoapply-agent/internal/infra/redis"
	"autoapply-agent/internal/infra/sched"
	"autoapply-agent/internal/infra/worker"
	"autoapply-agent/internal/usecase"
)

// Set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] enabled")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("exit")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	profileRepo := pg.NewProfileRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	appRepo := pg.NewApplicationRepo(pool)
	logRepo := pg.NewApplicationLogRepo(pool)
	txm := pg.NewTxManager(pool)

	tracker := usecase.NewApplicationTracker(appRepo, logRepo, txm, logger)

	// ---- Locks and dedup: Redis when configured, in-process otherwise ----
	locker, seen, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	// ---- AI ----
	ai, err := buildAI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	reducer := analysis.NewMarkupReducer()
	scorer := analysis.NewLLMMatchScorer(ai, cfg.AI.MatchModel, reducer, cfg.AI.MaxInputTokens)
	analyzer := analysis.NewLLMFormAnalyzer(ai, cfg.AI.FormModel, reducer, cfg.AI.MaxInputTokens, cfg.AI.SendScreenshot)

	// ---- Browser ----
	driver, err := browser.New(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warn().Err(err).Msg("browser close")
		}
	}()
	shots, err := browser.NewFileScreenshotStore(cfg.Browser.ScreenshotDir)
	if err != nil {
		return fmt.Errorf("screenshots: %w", err)
	}

	// ---- Use cases ----
	applyUC := usecase.NewApplyUseCase(tracker, driver, scorer, analyzer, analysis.PageMetadataExtractor{}, shots,
		usecase.ApplyConfig{MatchThreshold: cfg.Agent.MatchThreshold, SubmitForms: cfg.Agent.SubmitEnabled()}, logger)

	opts := []usecase.AgentOption{usecase.WithSeenStore(seen), usecase.WithRunLock(locker)}
	if cfg.Telegram.Token != "" {
		n, err := tele.NewRunNotifier(cfg.Telegram, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			opts = append(opts, usecase.WithRunNotifier(n))
		}
	}
	agentUC := usecase.NewAgentUseCase(profileRepo, subRepo, tracker, buildDiscovery(cfg), applyUC,
		usecase.AgentConfig{
			MaxCandidates: cfg.Agent.MaxCandidates,
			Pacing:        cfg.Agent.Pacing,
			RunLockTTL:    cfg.Agent.RunLockTTL,
		}, logger, opts...)

	g, gctx := errgroup.WithContext(ctx)

	registry := sched.NewRegistry(gctx, func(ctx context.Context, userID string) error {
		_, err := agentUC.RunOnce(ctx, userID)
		return err
	}, cfg.Agent.Interval, logger)

	workers := worker.NewPool(cfg.Agent.BootWorkers, logger)
	workers.Start(gctx)

	srv := api.NewServer(gctx, registry, tracker, api.NewAuthManager(cfg.HTTP.JWTSecret, 0), cfg.HTTP.APIKey, logger)

	// ---- Run ----
	g.Go(func() error { return srv.ListenAndServe(cfg.HTTP.Port) })

	g.Go(func() error {
		reportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})

	if cfg.Agent.ResumeOnBoot {
		g.Go(func() error {
			n, err := sched.NewResumeWorker(subRepo, registry, workers, logger).Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Int("resumed", n).Msg("resume on boot")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
		if err := registry.Shutdown(shCtx); err != nil {
			logger.Warn().Err(err).Msg("agents shutdown")
		}
		workers.Stop()
		return nil
	})

	logger.Info().Str("version", version).Int("port", cfg.HTTP.Port).Msg("autoapply agent started")
	return g.Wait()
}

func buildStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.Locker, adapter.SeenStore, func(), error) {
	if cfg.Redis.URL == "" {
		logger.Info().Msg("redis not configured; using in-process lock and dedup")
		return memstore.NewLocker(), memstore.NewSeenStore(cfg.Agent.DedupTTL), func() {}, nil
	}
	cli, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis: %w", err)
	}
	closeFn := func() {
		if err := cli.Close(); err != nil {
			logger.Warn().Err(err).Msg("redis close")
		}
	}
	return red.NewLocker(cli), red.NewSeenStore(cli, cfg.Agent.DedupTTL), closeFn, nil
}

// buildAI wires every keyed provider behind one concurrency limit and routes by model name.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	sem := semaphore.NewWeighted(int64(cfg.AI.ConcurrentLimit))
	byProvider := map[string]adapter.AIServiceAdapter{}

	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.MatchModel)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"] = aiAdapters.NewLimitedAI(oa, sem)
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"] = aiAdapters.NewLimitedAI(ga, sem)
	}
	if len(byProvider) == 0 {
		return nil, errors.New("no AI provider configured")
	}
	logger.Info().Str("default", cfg.AI.Provider).Int("providers", len(byProvider)).
		Str("match_model", cfg.AI.MatchModel).Str("form_model", cfg.AI.FormModel).Msg("AI adapters ready")
	return aiAdapters.NewMultiAIAdapter(cfg.AI.Provider, byProvider, nil, logger), nil
}

func buildDiscovery(cfg *config.Config) adapter.JobDiscovery {
	if cfg.Discovery.Endpoint != "" {
		return discovery.NewHTTPDiscovery(cfg.Discovery.Endpoint, cfg.Discovery.APIKey, cfg.Discovery.Timeout)
	}
	return discovery.NewStatic(cfg.Discovery.Static)
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		s := pool.Stat()
		metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
