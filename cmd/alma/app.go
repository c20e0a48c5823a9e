package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"almaconnector/internal/alma"
	"almaconnector/internal/batch"
	"almaconnector/internal/config"
	"almaconnector/internal/logger"
	"almaconnector/internal/notify"
	"almaconnector/internal/repository"
	"almaconnector/internal/store"
	"almaconnector/internal/tasks"
	"almaconnector/internal/workflow"
	"almaconnector/pkg/bootstrap"
	"almaconnector/pkg/cel"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/health"
	"almaconnector/pkg/metrics"
	"almaconnector/pkg/tracing"
)

const serviceName = "alma"

type App struct {
	config         *config.Config
	logger         logger.Logger
	printer        *printer
	base           *bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	runs           *store.Store
	repo           *repository.Client
	identities     *repository.IdentityResolver
	evaluator      *cel.Evaluator
	dispatcher     *workflow.Dispatcher
	batch          *batch.Runner
	tasks          *tasks.Runner
	health         *health.CheckerRegistry
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		printer:     newPrinter(os.Stdout),
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

// Initialize connects the optional infrastructure and builds the workflow
// stack. Workers also get a broker consumer.
func (a *App) Initialize(ctx context.Context, worker bool) error {
	metrics.Register()

	tp, err := tracing.Init(a.config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.base.InitBroker(serviceName, worker); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initRepository(); err != nil {
		return fmt.Errorf("failed to initialize repository client: %w", err)
	}

	if err := a.initWorkflows(); err != nil {
		return fmt.Errorf("failed to initialize workflows: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	if rdb != nil {
		a.health.RegisterOptional(health.NewRedisChecker(rdb))
	}

	runs, err := a.dbConnector.InitStore(ctx)
	if err != nil {
		return err
	}
	a.runs = runs
	if runs != nil {
		a.health.Register(health.NewSQLChecker("store", runs.DB()))
	}
	return nil
}

func (a *App) initRepository() error {
	if a.config.Repository.URL == "" {
		a.logger.Warnw("Repository url not configured, repository workflows are disabled")
		return nil
	}

	client, err := repository.NewClient(a.config.Repository, a.logger)
	if err != nil {
		return err
	}
	a.repo = client
	a.identities = repository.NewIdentityResolver(client)
	return nil
}

func (a *App) initWorkflows() error {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	a.evaluator = evaluator

	registries := workflow.NewRegistries()
	if err := workflow.RegisterBuiltins(registries, a.config.Workflows); err != nil {
		return err
	}

	var repo workflow.Repository
	if a.repo != nil {
		repo = a.repo
	}
	a.dispatcher = workflow.NewDispatcher(registries, repo)

	opts := []batch.Option{
		batch.WithCooldown(a.config.Batch.ImportCooldown),
		batch.WithProgress(a.printer.Progress),
	}
	if a.runs != nil {
		opts = append(opts, batch.WithRecorder(a.runs))
	}
	if events := a.base.Events(); events != nil {
		opts = append(opts, batch.WithRecorder(events))
	}
	if a.config.ErrorMail.Enabled() {
		opts = append(opts, batch.WithRecorder(notify.NewMailer(a.config.ErrorMail, a.logger)))
	}
	a.batch = batch.NewRunner(a.dispatcher, a.logger, opts...)

	deps := tasks.Deps{
		Config:     a.config,
		Dispatcher: a.dispatcher,
		Batch:      a.batch,
		Evaluator:  a.evaluator,
		NewService: a.newService,
		Logger:     a.logger,
	}
	if a.repo != nil {
		deps.Searcher = a.repo
		deps.Identities = a.identities
	}
	a.tasks = tasks.NewRunner(deps)
	return nil
}

func (a *App) newService(cfg alma.ServiceConfig) (alma.Service, error) {
	return alma.NewService(cfg, alma.OptionsFromConfig(a.config.Alma, a.config.CircuitBreaker)...)
}

// requireRepository guards the commands that write repository records.
func (a *App) requireRepository() error {
	if a.repo == nil {
		return apperrors.ErrConfiguration.WithMessage("repository url is required").WithDetail("setting", "repository.url")
	}
	return nil
}

// identity resolves the acting repository user for a command.
func (a *App) identity(ctx context.Context, email string) (repository.Identity, error) {
	if a.identities == nil {
		return repository.SystemIdentity(), nil
	}
	return a.identities.Resolve(ctx, email)
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.base.Shutdown(ctx, func(ctx context.Context) error {
		err := a.dbConnector.ShutdownDatabases(a.redis, a.runs)
		if tpErr := a.tracerProvider.Shutdown(ctx); tpErr != nil {
			err = errors.Join(err, fmt.Errorf("tracer shutdown error: %w", tpErr))
		}
		return err
	})
}
