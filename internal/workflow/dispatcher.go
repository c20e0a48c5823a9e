package workflow

import (
	"context"
	"io"
	"os"

	"almaconnector/internal/alma"
	"almaconnector/internal/repository"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/logging"
)

// Kind selects one of the three workflow registries.
type Kind string

const (
	KindImport Kind = "import"
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
)

type Registries struct {
	Import *Registry[ImportFunc]
	Create *Registry[CreateFunc]
	Update *Registry[UpdateFunc]
}

func NewRegistries() Registries {
	return Registries{
		Import: NewRegistry[ImportFunc](),
		Create: NewRegistry[CreateFunc](),
		Update: NewRegistry[UpdateFunc](),
	}
}

// Dispatcher routes a workflow name to the registered function and calls
// it with the shared dependencies.
type Dispatcher struct {
	registries Registries
	deps       Deps
}

func NewDispatcher(registries Registries, repo Repository) *Dispatcher {
	return &Dispatcher{
		registries: registries,
		deps: Deps{
			Repository: repo,
			OpenFile: func(name string) (io.ReadCloser, error) {
				return os.Open(name)
			},
		},
	}
}

// WithFileOpener replaces how import workflows open the files they upload.
func (d *Dispatcher) WithFileOpener(open func(name string) (io.ReadCloser, error)) *Dispatcher {
	d.deps.OpenFile = open
	return d
}

func (d *Dispatcher) Registries() Registries {
	return d.registries
}

// Resolve returns the workflow a call with name would run, or the lookup
// error. Batches call it once before touching any item.
func (d *Dispatcher) Resolve(kind Kind, name string) (string, error) {
	var (
		resolved string
		err      error
	)
	switch kind {
	case KindImport:
		_, resolved, err = d.registries.Import.Lookup(name)
	case KindCreate:
		_, resolved, err = d.registries.Create.Lookup(name)
	case KindUpdate:
		_, resolved, err = d.registries.Update.Lookup(name)
	default:
		return "", apperrors.ErrValidation.WithMessagef("unknown workflow kind %q", kind)
	}
	return resolved, err
}

func (d *Dispatcher) Import(ctx context.Context, name string, identity repository.Identity, row ImportRow, svc alma.Service) (Outcome, error) {
	fn, resolved, err := d.registries.Import.Lookup(name)
	if err != nil {
		return Outcome{}, err
	}
	return fn(logging.WithWorkflow(ctx, resolved), d.deps, identity, row, svc)
}

func (d *Dispatcher) Create(ctx context.Context, name string, identity repository.Identity, svc alma.Service, metadata Metadata) (Outcome, error) {
	fn, resolved, err := d.registries.Create.Lookup(name)
	if err != nil {
		return Outcome{}, err
	}
	return fn(logging.WithWorkflow(ctx, resolved), d.deps, identity, svc, metadata)
}

func (d *Dispatcher) Update(ctx context.Context, name string, identity repository.Identity, svc alma.Service, req UpdateRequest) (Outcome, error) {
	fn, resolved, err := d.registries.Update.Lookup(name)
	if err != nil {
		return Outcome{}, err
	}
	return fn(logging.WithWorkflow(ctx, resolved), d.deps, identity, svc, req)
}
