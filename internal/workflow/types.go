package workflow

import (
	"context"
	"io"

	"almaconnector/internal/alma"
	"almaconnector/internal/repository"
	"almaconnector/pkg/marc"
)

// ImportRow is one line of an import list.
type ImportRow struct {
	ACNumber string `json:"ac_number"`
	Filename string `json:"filename"`
	Access   string `json:"access"`
	MarcID   string `json:"marcid"`
}

// Metadata holds the keyword arguments of a create or update workflow,
// e.g. marc_id and cms_id.
type Metadata map[string]string

const (
	KeyMarcID = "marc_id"
	KeyCMSID  = "cms_id"
	KeyAlmaID = "alma_id"
)

type UpdateRequest struct {
	Metadata     Metadata
	UpdateAccess bool
}

// Outcome identifies what a workflow produced.
type Outcome struct {
	RecordID string
	MMSID    string
}

// Repository is the part of the repository API the built-in workflows use.
type Repository interface {
	CreateDraft(ctx context.Context, metadata marc.Metadata, access repository.Access) (*repository.Record, error)
	UploadFile(ctx context.Context, id, filename string, content io.Reader) error
	Publish(ctx context.Context, id string) (*repository.Record, error)
	GetRecord(ctx context.Context, id string) (*repository.Record, error)
	EditDraft(ctx context.Context, id string) (*repository.Record, error)
	UpdateDraft(ctx context.Context, id string, metadata marc.Metadata, access *repository.Access) (*repository.Record, error)
}

// Deps are the collaborators handed to every workflow call.
type Deps struct {
	Repository Repository
	OpenFile   func(name string) (io.ReadCloser, error)
}

type (
	ImportFunc func(ctx context.Context, deps Deps, identity repository.Identity, row ImportRow, svc alma.Service) (Outcome, error)
	CreateFunc func(ctx context.Context, deps Deps, identity repository.Identity, svc alma.Service, metadata Metadata) (Outcome, error)
	UpdateFunc func(ctx context.Context, deps Deps, identity repository.Identity, svc alma.Service, req UpdateRequest) (Outcome, error)
)

// Pair is one (source, target) identifier pair produced by an aggregator.
type Pair struct {
	SourceID string
	TargetID string
}

// Aggregator produces pairs on demand.
type Aggregator interface {
	Name() string
	Aggregate(ctx context.Context) ([]Pair, error)
}

// AggregatorFunc adapts a function to Aggregator.
type AggregatorFunc struct {
	Label string
	Fn    func(ctx context.Context) ([]Pair, error)
}

func (a AggregatorFunc) Name() string { return a.Label }

func (a AggregatorFunc) Aggregate(ctx context.Context) ([]Pair, error) {
	return a.Fn(ctx)
}
