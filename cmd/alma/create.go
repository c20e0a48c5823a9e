package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"almaconnector/internal/alma"
	"almaconnector/internal/workflow"
)

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create records in Alma",
	}
	cmd.AddCommand(workflowsCmd("create", func(r workflow.Registries) []string { return r.Create.Names() }))
	cmd.AddCommand(createAlmaRecordCmd())
	return cmd
}

func createAlmaRecordCmd() *cobra.Command {
	var (
		params    alma.Params
		metadata  string
		userEmail string
		name      string
	)

	cmd := &cobra.Command{
		Use:   "alma-record",
		Short: "Create one Alma record from a repository record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *App) error {
				if err := app.requireRepository(); err != nil {
					return err
				}

				m, err := workflowMetadata(metadata)
				if err != nil {
					return err
				}

				restCfg, err := params.Merge(alma.ParamsFromConfig(app.config.Alma)).RESTOnly()
				if err != nil {
					return err
				}
				svc, err := app.newService(restCfg)
				if err != nil {
					return err
				}

				identity, err := app.identity(ctx, userEmail)
				if err != nil {
					return err
				}

				out, err := app.dispatcher.Create(ctx, name, identity, svc, m)
				if err != nil {
					return err
				}
				app.printer.Success(fmt.Sprintf("marc_id: %s, mms_id: %s", m[workflow.KeyMarcID], out.MMSID))
				return nil
			})
		},
	}

	restFlags(cmd, &params)
	cmd.Flags().StringVar(&metadata, "metadata", "", `JSON object, e.g. {"marc_id": "...", "cms_id": "..."}`)
	_ = cmd.MarkFlagRequired("metadata")
	userEmailFlag(cmd, &userEmail)
	workflowFlag(cmd, &name)
	return cmd
}
