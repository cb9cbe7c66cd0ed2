// Package app wires the marketplace process: configuration, logging, the
// document store, repositories and services, plus the health and metrics
// endpoints.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/auth"
	"github.com/dmitrijs2005/promptmarket/internal/config"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/docstore/memory"
	"github.com/dmitrijs2005/promptmarket/internal/docstore/sqlstore"
	"github.com/dmitrijs2005/promptmarket/internal/generation"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/payment"
	"github.com/dmitrijs2005/promptmarket/internal/promo"
	"github.com/dmitrijs2005/promptmarket/internal/propagation"
	"github.com/dmitrijs2005/promptmarket/internal/quota"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/collections"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/feedback"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/promocodes"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/prompts"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/users"
	"github.com/dmitrijs2005/promptmarket/internal/services"
	"golang.org/x/sync/errgroup"
)

const tokenValidity = 24 * time.Hour

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics

	store      docstore.Store
	mirror     *cache.Mirror
	repos      services.Repositories
	propagator *propagation.Propagator
	provider   auth.Provider
	health     *healthServer

	Generation *services.GenerationService
	Submission *services.SubmissionService
	Voting     *services.VotingService
	Checkout   *services.CheckoutService
	Moderation *services.ModerationService
	Accounts   *services.AccountService
}

// New builds the process graph. Nothing is loaded and no listener is opened
// until Run.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	m := metrics.New()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	mirror := cache.NewMirror(store, cache.DefaultPolicy, logger, m)
	tracker := quota.New(quota.Limits{
		FreeGenerations: cfg.FreeGenerationLimit,
		FreeSubmissions: cfg.FreeSubmissionLimit,
		ProSubmissions:  cfg.ProSubmissionLimit,
	}, cfg.Location())

	repos := services.Repositories{
		Prompts:     prompts.New(mirror, logger, m),
		Collections: collections.New(mirror, logger, m),
		Feedback:    feedback.New(mirror, logger, m),
		PromoCodes:  promocodes.New(mirror, logger, m),
	}
	// registered before any load so the embedding index sees every item
	prop := propagation.New(mirror, repos.Prompts, repos.Collections, repos.Feedback, logger, m)
	repos.Users = users.New(mirror, prop, tracker, logger, m)

	provider := auth.NewMemoryProvider(auth.NewTokens([]byte(cfg.SecretKey), tokenValidity, cfg.RecentLoginWindow))

	var gen generation.Generator = generation.Offline{}
	if cfg.OpenAIAPIKey != "" {
		gen = generation.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, logger)
	} else {
		logger.Warn(ctx, "no OpenAI key configured, using offline generator")
	}

	payments := payment.NewSimulated(cfg.PaymentDelay, cfg.PaymentAlwaysFail, logger, m)

	return &App{
		config:     cfg,
		logger:     logger.With("module", "app"),
		metrics:    m,
		store:      store,
		mirror:     mirror,
		repos:      repos,
		propagator: prop,
		provider:   provider,
		health:     newHealthServer(cfg.HealthAddrGRPC, logger),

		Generation: services.NewGenerationService(repos, tracker, gen, logger, m),
		Submission: services.NewSubmissionService(repos, tracker, logger, m),
		Voting:     services.NewVotingService(repos),
		Checkout:   services.NewCheckoutService(repos, promo.NewValidator(repos.PromoCodes, m), payments, cfg.ProPriceCents, logger),
		Moderation: services.NewModerationService(repos, logger),
		Accounts:   services.NewAccountService(repos, provider, mirror, logger, m),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		s, err := sqlstore.Open(ctx, sqlstore.Postgres, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := sqlstore.Open(ctx, sqlstore.SQLite, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func (app *App) Repositories() services.Repositories { return app.repos }

func (app *App) Metrics() *metrics.Metrics { return app.metrics }

// Load reads every global repository. A failed load leaves that repository
// empty and is only logged.
func (app *App) Load(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { app.repos.Users.Load(ctx); return nil })
	g.Go(func() error { app.repos.Prompts.Load(ctx); return nil })
	g.Go(func() error { app.repos.Collections.Load(ctx); return nil })
	g.Go(func() error { app.repos.Feedback.Load(ctx); return nil })
	g.Go(func() error { app.repos.PromoCodes.Load(ctx); return nil })
	_ = g.Wait()

	app.logger.Info(ctx, "repositories loaded",
		"users", app.repos.Users.Len(),
		"prompts", app.repos.Prompts.Len(),
		"collections", app.repos.Collections.Len(),
		"feedback", app.repos.Feedback.Len(),
		"promoCodes", app.repos.PromoCodes.Len(),
	)
}

// watchIdentities holds the process's single subscription to identity
// changes.
func (app *App) watchIdentities(ctx context.Context) error {
	events, err := app.provider.Identities()
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-events:
				if id == nil {
					app.logger.Debug(ctx, "signed out")
					continue
				}
				app.logger.Debug(ctx, "signed in", "user", id.UserID)
			}
		}
	}()
	return nil
}

// Run loads state, serves the endpoints and blocks until ctx is done or
// SIGINT/SIGTERM arrives. In-flight mirror writes finish before the store
// closes.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	if err := app.watchIdentities(ctx); err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		runErrs []error
	)
	fail := func(err error) {
		app.logger.Error(ctx, err.Error())
		errMu.Lock()
		runErrs = append(runErrs, err)
		errMu.Unlock()
		cancelFunc()
	}

	if app.config.HealthAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.health.Run(ctx); err != nil {
				fail(fmt.Errorf("health server: %w", err))
			}
		}()
	}
	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runMetricsServer(ctx, app.config.MetricsAddr, app.metrics, app.logger); err != nil {
				fail(fmt.Errorf("metrics server: %w", err))
			}
		}()
	}

	app.Load(ctx)
	app.health.SetServing(true)

	<-ctx.Done()
	app.health.SetServing(false)
	wg.Wait()

	app.logger.Info(context.Background(), "Waiting for in-flight writes...")
	app.mirror.Wait()
	if err := app.store.Close(); err != nil {
		runErrs = append(runErrs, fmt.Errorf("store close: %w", err))
	}
	return errors.Join(runErrs...)
}
