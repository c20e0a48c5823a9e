package workflow

import (
	"context"
	"path/filepath"

	"almaconnector/internal/alma"
	"almaconnector/internal/config"
	"almaconnector/internal/constants"
	"almaconnector/internal/repository"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
)

// ImportMARC21 fetches the Alma record of row.ACNumber, creates a draft
// from it, uploads row.Filename when given and publishes the draft.
func ImportMARC21(ctx context.Context, deps Deps, identity repository.Identity, row ImportRow, svc alma.Service) (Outcome, error) {
	if row.ACNumber == "" {
		return Outcome{}, apperrors.ErrValidation.WithMessage("ac_number is required")
	}

	record, err := svc.GetRecord(ctx, row.ACNumber)
	if err != nil {
		return Outcome{}, err
	}

	access := repository.OpenAccess(identity)
	if row.Access != "" {
		access.Files = row.Access
	}

	draft, err := deps.Repository.CreateDraft(ctx, record.Metadata(), access)
	if err != nil {
		return Outcome{}, err
	}

	if row.Filename != "" {
		if err := uploadFile(ctx, deps, draft.ID, row.Filename); err != nil {
			return Outcome{RecordID: draft.ID}, err
		}
	}

	published, err := deps.Repository.Publish(ctx, draft.ID)
	if err != nil {
		return Outcome{RecordID: draft.ID}, err
	}

	return Outcome{RecordID: published.ID, MMSID: record.MMSID()}, nil
}

func uploadFile(ctx context.Context, deps Deps, draftID, filename string) error {
	f, err := deps.OpenFile(filename)
	if err != nil {
		return apperrors.ErrValidation.
			WithMessagef("cannot open file %s", filename).
			WithCause(err).
			WithDetail("filename", filename)
	}
	defer f.Close()

	return deps.Repository.UploadFile(ctx, draftID, filepath.Base(filename), f)
}

// CreateMARC21 converts the repository record marc_id to MARC21, tags it
// with the CMS id and creates it in Alma.
func CreateMARC21(ctx context.Context, deps Deps, _ repository.Identity, svc alma.Service, metadata Metadata) (Outcome, error) {
	marcID := metadata[KeyMarcID]
	if marcID == "" {
		return Outcome{}, apperrors.ErrValidation.WithMessagef("%s is required", KeyMarcID)
	}

	source, err := deps.Repository.GetRecord(ctx, marcID)
	if err != nil {
		return Outcome{}, err
	}

	record := marc.FromMetadata(source.Metadata)
	if cmsID := metadata[KeyCMSID]; cmsID != "" {
		record.AddDataField(marc.DataField{
			Tag:       "035",
			Ind1:      " ",
			Ind2:      " ",
			Subfields: []marc.Subfield{{Code: "a", Value: "(CMS)" + cmsID}},
		})
	}

	created, err := svc.CreateRecord(ctx, record)
	if err != nil {
		return Outcome{RecordID: marcID}, err
	}

	return Outcome{RecordID: marcID, MMSID: created.MMSID()}, nil
}

// UpdateMARC21 replaces the metadata of repository record marc_id with the
// Alma record alma_id and republishes it.
func UpdateMARC21(ctx context.Context, deps Deps, identity repository.Identity, svc alma.Service, req UpdateRequest) (Outcome, error) {
	marcID := req.Metadata[KeyMarcID]
	almaID := req.Metadata[KeyAlmaID]
	if marcID == "" || almaID == "" {
		return Outcome{}, apperrors.ErrValidation.WithMessagef("%s and %s are required", KeyMarcID, KeyAlmaID)
	}

	record, err := svc.GetRecord(ctx, almaID)
	if err != nil {
		return Outcome{}, err
	}

	if _, err := deps.Repository.EditDraft(ctx, marcID); err != nil {
		return Outcome{}, err
	}

	var access *repository.Access
	if req.UpdateAccess {
		open := repository.OpenAccess(identity)
		access = &open
	}

	if _, err := deps.Repository.UpdateDraft(ctx, marcID, record.Metadata(), access); err != nil {
		return Outcome{}, err
	}

	published, err := deps.Repository.Publish(ctx, marcID)
	if err != nil {
		return Outcome{RecordID: marcID}, err
	}

	return Outcome{RecordID: published.ID, MMSID: record.MMSID()}, nil
}

type builtin struct {
	importFn ImportFunc
	createFn CreateFunc
	updateFn UpdateFunc
}

var builtins = map[string]builtin{
	constants.DefaultWorkflow: {importFn: ImportMARC21, createFn: CreateMARC21, updateFn: UpdateMARC21},
}

// RegisterBuiltins registers the built-in workflows named in cfg, in the
// configured order. An empty list enables the default workflow.
func RegisterBuiltins(r Registries, cfg config.WorkflowsConfig) error {
	pick := func(names []string) []string {
		if len(names) == 0 {
			return []string{constants.DefaultWorkflow}
		}
		return names
	}

	for _, name := range pick(cfg.Import) {
		b, err := lookupBuiltin(name)
		if err != nil {
			return err
		}
		if err := r.Import.Register(name, b.importFn); err != nil {
			return err
		}
	}
	for _, name := range pick(cfg.Create) {
		b, err := lookupBuiltin(name)
		if err != nil {
			return err
		}
		if err := r.Create.Register(name, b.createFn); err != nil {
			return err
		}
	}
	for _, name := range pick(cfg.Update) {
		b, err := lookupBuiltin(name)
		if err != nil {
			return err
		}
		if err := r.Update.Register(name, b.updateFn); err != nil {
			return err
		}
	}
	return nil
}

func lookupBuiltin(name string) (builtin, error) {
	b, ok := builtins[name]
	if !ok {
		return builtin{}, apperrors.ErrConfiguration.
			WithMessagef("unknown workflow %q", name).
			WithDetail("workflow", name)
	}
	return b, nil
}
