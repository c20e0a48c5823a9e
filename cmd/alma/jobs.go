package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"almaconnector/internal/tasks"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/models"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and run the background jobs",
	}
	cmd.AddCommand(jobsListCmd(), jobsRunCmd(), jobsHistoryCmd())
	return cmd
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the jobs that can be run on demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd.OutOrStdout())
			for _, j := range tasks.Jobs() {
				p.Success(fmt.Sprintf("%s: %s (%s)", j.ID, j.Title, j.Description))
			}
			return nil
		},
	}
}

func jobsRunCmd() *cobra.Command {
	var (
		task    models.Task
		enqueue bool
	)

	cmd := &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a job now, or queue it for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, ok := tasks.FindJob(args[0])
			if !ok {
				return apperrors.ErrNotFound.WithMessagef("unknown job %q", args[0])
			}
			task.Name = job.Task
			task.ScheduledBy = "cli"

			return withApp(func(ctx context.Context, app *App) error {
				if enqueue {
					queue := app.base.Tasks()
					if queue == nil {
						return apperrors.ErrConfiguration.WithMessage("--enqueue needs a configured broker")
					}
					id, err := queue.Enqueue(ctx, task)
					if err != nil {
						return err
					}
					app.printer.Success(fmt.Sprintf("job %s queued as %s", job.ID, id))
					return nil
				}

				res, err := app.tasks.Run(ctx, task)
				if res != nil || err == nil {
					app.printer.Summary(res)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&task.Workflow, "workflow", "", "Workflow name, defaults to the first registered one")
	cmd.Flags().StringVar(&task.UserEmail, "user-email", "", "Run as this repository user instead of the system user")
	cmd.Flags().BoolVar(&task.KeepAccess, "keep-access-as-is", false, "Leave the access of updated records unchanged")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the job on the broker instead of running it here")
	return cmd
}

func jobsHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded batch runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *App) error {
				if app.runs == nil {
					return apperrors.ErrConfiguration.WithMessage("no run store configured").WithDetail("setting", "database")
				}

				if len(args) == 1 {
					res, err := app.runs.GetRun(ctx, args[0])
					if err != nil {
						return err
					}
					app.printer.Summary(res)
					for _, f := range res.Failures {
						app.printer.Error(fmt.Sprintf("%s: %s %s", f.Item, f.Code, f.Message))
					}
					return nil
				}

				runs, err := app.runs.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				for i := range runs {
					app.printer.Summary(&runs[i])
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of runs to list")
	return cmd
}
