package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"almaconnector/internal/alma"
	"almaconnector/internal/batch"
	"almaconnector/internal/workflow"
	apperrors "almaconnector/pkg/errors"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import records from Alma into the repository",
	}
	cmd.AddCommand(workflowsCmd("import", func(r workflow.Registries) []string { return r.Import.Names() }))
	cmd.AddCommand(importSRUCmd())
	return cmd
}

func importSRUCmd() *cobra.Command {
	var (
		params    alma.Params
		metadata  string
		userEmail string
		csvFile   string
		name      string
	)

	cmd := &cobra.Command{
		Use:   "sru",
		Short: "Import records found over SRU, one per AC number",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *App) error {
				if err := app.requireRepository(); err != nil {
					return err
				}

				rows, err := importRows(csvFile, metadata)
				if err != nil {
					return err
				}

				sruCfg, err := params.Merge(alma.ParamsFromConfig(app.config.Alma)).SRUOnly()
				if err != nil {
					return err
				}
				svc, err := app.newService(sruCfg)
				if err != nil {
					return err
				}

				identity, err := app.identity(ctx, userEmail)
				if err != nil {
					return err
				}

				res, err := app.batch.ImportRows(ctx, name, identity, rows, svc)
				if res != nil || err == nil {
					app.printer.Summary(res)
				}
				return err
			})
		},
	}

	sruFlags(cmd, &params)
	cmd.Flags().StringVar(&metadata, "metadata", "", `JSON object with ac_number, filename, access and marcid`)
	cmd.Flags().StringVar(&csvFile, "csv-file", "", "CSV file with the columns ac_number, filename, access and marcid")
	userEmailFlag(cmd, &userEmail)
	workflowFlag(cmd, &name)
	return cmd
}

// importRows reads the rows from the CSV file, or else the single
// --metadata row.
func importRows(csvFile, metadata string) ([]workflow.ImportRow, error) {
	if csvFile != "" {
		return batch.ReadImportRows(csvFile)
	}
	if metadata == "" {
		return nil, apperrors.ErrValidation.WithMessage("either --csv-file or --metadata is required")
	}
	row, err := importRowFromMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return []workflow.ImportRow{row}, nil
}

// workflowsCmd lists the workflows registered for one kind.
func workflowsCmd(kind string, names func(workflow.Registries) []string) *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: fmt.Sprintf("List the registered %s workflows", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *App) error {
				for _, name := range names(app.dispatcher.Registries()) {
					app.printer.Success(fmt.Sprintf("workflow type: %s is registered", name))
				}
				return nil
			})
		},
	}
}
