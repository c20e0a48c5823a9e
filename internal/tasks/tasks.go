// Package tasks holds the background tasks: building the id pairs from the
// configured aggregators and handing them to the batch drivers.
package tasks

import (
	"context"
	"time"

	"almaconnector/internal/alma"
	"almaconnector/internal/batch"
	"almaconnector/internal/config"
	"almaconnector/internal/constants"
	"almaconnector/internal/logger"
	"almaconnector/internal/repository"
	"almaconnector/internal/workflow"
	"almaconnector/pkg/cel"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/logging"
	"almaconnector/pkg/metrics"
	"almaconnector/pkg/models"
)

type ServiceFactory func(cfg alma.ServiceConfig) (alma.Service, error)

type IdentityResolver interface {
	Resolve(ctx context.Context, email string) (repository.Identity, error)
}

type Deps struct {
	Config     *config.Config
	Dispatcher *workflow.Dispatcher
	Batch      *batch.Runner
	Searcher   workflow.Searcher
	Evaluator  *cel.Evaluator
	Identities IdentityResolver
	NewService ServiceFactory
	Logger     logger.Logger
}

type Runner struct {
	cfg        *config.Config
	dispatcher *workflow.Dispatcher
	batch      *batch.Runner
	searcher   workflow.Searcher
	evaluator  *cel.Evaluator
	identities IdentityResolver
	newService ServiceFactory
	log        logger.Logger
}

func NewRunner(deps Deps) *Runner {
	newService := deps.NewService
	if newService == nil {
		newService = func(c alma.ServiceConfig) (alma.Service, error) {
			return alma.NewService(c, alma.OptionsFromConfig(deps.Config.Alma, deps.Config.CircuitBreaker)...)
		}
	}

	return &Runner{
		cfg:        deps.Config,
		dispatcher: deps.Dispatcher,
		batch:      deps.Batch,
		searcher:   deps.Searcher,
		evaluator:  deps.Evaluator,
		identities: deps.Identities,
		newService: newService,
		log:        deps.Logger,
	}
}

// Run executes task. A task that is not configured logs why and returns a
// nil result without error.
func (r *Runner) Run(ctx context.Context, task models.Task) (res *batch.Result, err error) {
	ctx = logging.WithTask(ctx, task.Name)
	start := time.Now()

	defer func() {
		status := "success"
		switch {
		case err != nil:
			status = "error"
		case res == nil:
			status = "skipped"
		case res.HasFailures():
			status = "partial"
		}
		metrics.IncTaskRun(task.Name, status)
		r.log.InfowCtx(ctx, "task finished", "status", status, "duration", time.Since(start).String())
	}()

	switch task.Name {
	case constants.TaskCreateAlmaRecords:
		return r.CreateAlmaRecords(ctx, task)
	case constants.TaskUpdateRepositoryRecords:
		return r.UpdateRepositoryRecords(ctx, task)
	default:
		return nil, apperrors.ErrValidation.WithMessagef("unknown task %q", task.Name).WithDetail("task", task.Name)
	}
}

// Handle runs the task carried by a broker message.
func (r *Runner) Handle(ctx context.Context, env models.Envelope) error {
	if env.Task == nil {
		return nil
	}
	_, err := r.Run(ctx, *env.Task)
	return err
}

// CreateAlmaRecords creates Alma records for the (marc_id, cms_id) pairs of
// the create aggregators, through the REST service.
func (r *Runner) CreateAlmaRecords(ctx context.Context, task models.Task) (*batch.Result, error) {
	if len(r.cfg.Aggregators.Create) == 0 {
		r.log.ErrorwCtx(ctx, "create aggregators not configured", "setting", "aggregators.create")
		return nil, nil
	}
	if r.dispatcher.Registries().Create.Len() == 0 {
		r.log.ErrorwCtx(ctx, "create workflow not configured", "setting", "workflows.create")
		return nil, nil
	}
	if _, err := r.dispatcher.Resolve(workflow.KindCreate, task.Workflow); err != nil {
		return nil, err
	}

	restCfg, err := alma.ParamsFromConfig(r.cfg.Alma).RESTOnly()
	if err != nil {
		return nil, err
	}
	svc, err := r.newService(restCfg)
	if err != nil {
		return nil, err
	}

	pairs, err := r.pairs(ctx, r.cfg.Aggregators.Create, workflow.CreateColumns)
	if err != nil {
		return nil, err
	}
	identity, err := r.identity(ctx, task.UserEmail)
	if err != nil {
		return nil, err
	}

	return r.batch.CreateAlmaRecords(ctx, task.Workflow, identity, svc, pairs)
}

// UpdateRepositoryRecords refreshes repository records from Alma for the
// (marc_id, alma_id) pairs of the update aggregators, through SRU.
func (r *Runner) UpdateRepositoryRecords(ctx context.Context, task models.Task) (*batch.Result, error) {
	if len(r.cfg.Aggregators.Update) == 0 {
		r.log.ErrorwCtx(ctx, "update aggregators not configured", "setting", "aggregators.update")
		return nil, nil
	}
	if r.dispatcher.Registries().Update.Len() == 0 {
		r.log.ErrorwCtx(ctx, "update workflow not configured", "setting", "workflows.update")
		return nil, nil
	}
	if _, err := r.dispatcher.Resolve(workflow.KindUpdate, task.Workflow); err != nil {
		return nil, err
	}

	sruCfg, err := alma.ParamsFromConfig(r.cfg.Alma).SRUOnly()
	if err != nil {
		return nil, err
	}
	svc, err := r.newService(sruCfg)
	if err != nil {
		return nil, err
	}

	pairs, err := r.pairs(ctx, r.cfg.Aggregators.Update, workflow.UpdateColumns)
	if err != nil {
		return nil, err
	}
	identity, err := r.identity(ctx, task.UserEmail)
	if err != nil {
		return nil, err
	}

	return r.batch.UpdateRepositoryRecords(ctx, task.Workflow, identity, svc, pairs, task.KeepAccess)
}

func (r *Runner) pairs(ctx context.Context, cfgs []config.AggregatorConfig, columns workflow.Columns) ([]workflow.Pair, error) {
	pipeline, err := workflow.BuildPipeline(cfgs, columns, r.searcher, r.evaluator)
	if err != nil {
		return nil, err
	}

	pairs, err := pipeline.Apply(ctx)
	if err != nil {
		return nil, err
	}
	r.log.InfowCtx(ctx, "aggregators applied", "aggregators", pipeline.Len(), "pairs", len(pairs))
	return pairs, nil
}

// identity resolves the acting user. Tasks run as the system identity
// unless a user is named.
func (r *Runner) identity(ctx context.Context, email string) (repository.Identity, error) {
	if email == "" || r.identities == nil {
		return repository.SystemIdentity(), nil
	}
	return r.identities.Resolve(ctx, email)
}
