package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"almaconnector/internal/alma"
	"almaconnector/internal/batch"
	"almaconnector/internal/workflow"
)

func updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update records in the repository or in Alma",
	}
	cmd.AddCommand(workflowsCmd("update", func(r workflow.Registries) []string { return r.Update.Names() }))
	cmd.AddCommand(updateRepositoryRecordCmd(), updateURLInAlmaCmd(), updateFieldCmd())
	return cmd
}

func updateRepositoryRecordCmd() *cobra.Command {
	var (
		params     alma.Params
		metadata   string
		userEmail  string
		keepAccess bool
		name       string
	)

	cmd := &cobra.Command{
		Use:   "repository-record",
		Short: "Update one repository record from its Alma record",
		Long:  "Update one repository record from its Alma record. REST credentials are used when given, SRU otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *App) error {
				if err := app.requireRepository(); err != nil {
					return err
				}

				m, err := workflowMetadata(metadata)
				if err != nil {
					return err
				}

				svcCfg, err := params.Merge(alma.ParamsFromConfig(app.config.Alma)).Config()
				if err != nil {
					return err
				}
				svc, err := app.newService(svcCfg)
				if err != nil {
					return err
				}

				identity, err := app.identity(ctx, userEmail)
				if err != nil {
					return err
				}

				req := workflow.UpdateRequest{Metadata: m, UpdateAccess: !keepAccess}
				out, err := app.dispatcher.Update(ctx, name, identity, svc, req)
				if err != nil {
					return err
				}
				app.printer.Success(fmt.Sprintf("record.id: %s, mms_id: %s updated", out.RecordID, out.MMSID))
				return nil
			})
		},
	}

	restFlags(cmd, &params)
	sruFlags(cmd, &params)
	cmd.Flags().StringVar(&metadata, "metadata", "", `JSON object, e.g. {"marc_id": "...", "alma_id": "..."}`)
	_ = cmd.MarkFlagRequired("metadata")
	cmd.Flags().BoolVar(&keepAccess, "keep-access-as-is", false, "Leave the access of the repository record unchanged")
	userEmailFlag(cmd, &userEmail)
	workflowFlag(cmd, &name)
	return cmd
}

func updateURLInAlmaCmd() *cobra.Command {
	var (
		params  alma.Params
		csvFile string
	)

	cmd := &cobra.Command{
		Use:   "url-in-alma",
		Short: "Replace the 856 $u URL of Alma records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *App) error {
				updates, err := batch.ReadURLUpdates(csvFile)
				if err != nil {
					return err
				}

				svc, err := restService(app, params)
				if err != nil {
					return err
				}

				res, err := app.batch.UpdateURLs(ctx, svc, updates)
				if res != nil || err == nil {
					app.printer.Summary(res)
				}
				return err
			})
		},
	}

	restFlags(cmd, &params)
	cmd.Flags().StringVar(&csvFile, "csv-file", "", "CSV file with the columns mms_id and new_url")
	_ = cmd.MarkFlagRequired("csv-file")
	return cmd
}

func updateFieldCmd() *cobra.Command {
	var (
		params    alma.Params
		mmsID     string
		fieldPath string
		value     string
	)

	cmd := &cobra.Command{
		Use:   "field",
		Short: "Set one subfield of an Alma record",
		Example: `  alma update field --mms-id 990123 --field-json-path 856.4._.u --new-subfield-value https://repo.example.org/records/abc
  alma update field --mms-id 990123 --field-json-path 100.1._.a --new-subfield-value "Doe, Jane"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *App) error {
				svc, err := restService(app, params)
				if err != nil {
					return err
				}

				if _, err := svc.UpdateField(ctx, mmsID, fieldPath, value); err != nil {
					return err
				}
				app.printer.Success(fmt.Sprintf("mms_id: %s, %s updated", mmsID, fieldPath))
				return nil
			})
		},
	}

	restFlags(cmd, &params)
	cmd.Flags().StringVar(&mmsID, "mms-id", "", "MMS id of the Alma record")
	cmd.Flags().StringVar(&fieldPath, "field-json-path", "", "Field path TAG.IND1.IND2.CODE, blank indicators written as _")
	cmd.Flags().StringVar(&value, "new-subfield-value", "", "New subfield value")
	_ = cmd.MarkFlagRequired("mms-id")
	_ = cmd.MarkFlagRequired("field-json-path")
	_ = cmd.MarkFlagRequired("new-subfield-value")
	return cmd
}

func restService(app *App, params alma.Params) (alma.Service, error) {
	restCfg, err := params.Merge(alma.ParamsFromConfig(app.config.Alma)).RESTOnly()
	if err != nil {
		return nil, err
	}
	return app.newService(restCfg)
}
