package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"almaconnector/internal/alma"
	"almaconnector/internal/resource"
	"almaconnector/internal/scheduler"
	"almaconnector/pkg/models"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve Alma records over HTTP and run the scheduled tasks",
		Long: "Serves /alma/<type>/<record_id>, /health and /metrics, fires the scheduled tasks " +
			"and, with a broker configured, works off queued tasks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting alma service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx, cfg.Broker.Enabled()); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}
			defer func() {
				if err := app.Shutdown(context.WithoutCancel(ctx)); err != nil {
					log.ErrorwCtx(ctx, "Shutdown error", "error", err)
				}
			}()

			if err := app.Serve(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

// Serve runs the HTTP server, the scheduler and the task worker until ctx
// is done.
func (a *App) Serve(ctx context.Context) error {
	server, err := a.resourceServer()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx)
	})

	g.Go(func() error {
		return a.scheduler().Run(ctx)
	})

	if a.base.Consumer != nil {
		g.Go(func() error {
			err := a.base.Consumer.Consume(ctx, a.config.Broker.Kafka.TaskTopic, a.tasks.Handle)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

// resourceServer builds the record server. Without SRU configuration the
// record route is left out and only /health and /metrics are served.
func (a *App) resourceServer() (*resource.Server, error) {
	var handler *resource.Handler

	sruCfg, err := alma.ParamsFromConfig(a.config.Alma).SRUOnly()
	if err != nil {
		a.logger.Warnw("SRU not configured, record route disabled", "error", err)
	} else {
		svc, err := a.newService(sruCfg)
		if err != nil {
			return nil, err
		}
		searcher, ok := svc.(*alma.SRUService)
		if !ok {
			return nil, fmt.Errorf("unexpected alma service %T", svc)
		}
		handler = resource.NewHandler(searcher, a.logger)
	}

	return resource.NewServer(a.config, handler, a.health, a.logger), nil
}

// scheduler fires the configured entries. With a broker the tasks are
// queued for the workers, otherwise they run in this process.
func (a *App) scheduler() *scheduler.Scheduler {
	fire := func(ctx context.Context, task models.Task) error {
		_, err := a.tasks.Run(ctx, task)
		return err
	}
	if queue := a.base.Tasks(); queue != nil {
		fire = func(ctx context.Context, task models.Task) error {
			_, err := queue.Enqueue(ctx, task)
			return err
		}
	}

	var locker scheduler.Locker
	if a.redis != nil {
		hostname, _ := os.Hostname()
		locker = scheduler.NewRedisLocker(a.redis, hostname)
	}

	return scheduler.New(a.config.Schedule, fire, locker, a.logger)
}
