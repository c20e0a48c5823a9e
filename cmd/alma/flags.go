package main

import (
	"github.com/spf13/cobra"

	"almaconnector/internal/alma"
	"almaconnector/internal/constants"
	"almaconnector/internal/input"
	"almaconnector/internal/workflow"
)

// restFlags and sruFlags bind the Alma connection flags. Values given on
// the command line win over the configuration file.
func restFlags(cmd *cobra.Command, p *alma.Params) {
	cmd.Flags().StringVar(&p.APIKey, "api-key", "", "Alma REST API key")
	cmd.Flags().StringVar(&p.APIHost, "api-host", "", "Alma REST API host")
}

func sruFlags(cmd *cobra.Command, p *alma.Params) {
	cmd.Flags().StringVar(&p.SearchKey, "search-key", "", "SRU search key, e.g. local_control_field_009")
	cmd.Flags().StringVar(&p.Domain, "domain", "", "SRU domain, e.g. obv-at-ubtug.alma.exlibrisgroup.com")
	cmd.Flags().StringVar(&p.InstitutionCode, "institution-code", "", "SRU institution code, e.g. 43ACC_TUG")
}

func userEmailFlag(cmd *cobra.Command, email *string) {
	cmd.Flags().StringVar(email, "user-email", constants.DefaultUserEmail, "E-mail of the repository user the records belong to")
}

func workflowFlag(cmd *cobra.Command, name *string) {
	cmd.Flags().StringVar(name, "workflow", "", "Workflow name, defaults to the first registered one")
}

// importRowFromMetadata turns the --metadata object of "import sru" into an
// import row.
func importRowFromMetadata(raw string) (workflow.ImportRow, error) {
	m, err := input.ParseMetadata(raw, "ac_number", "filename", "access", "marcid")
	if err != nil {
		return workflow.ImportRow{}, err
	}
	return workflow.ImportRow{
		ACNumber: m["ac_number"],
		Filename: m["filename"],
		Access:   m["access"],
		MarcID:   m["marcid"],
	}, nil
}

func workflowMetadata(raw string) (workflow.Metadata, error) {
	m, err := input.ParseMetadata(raw)
	if err != nil {
		return nil, err
	}
	return workflow.Metadata(m), nil
}
