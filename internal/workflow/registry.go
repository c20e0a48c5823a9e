package workflow

import (
	"errors"

	apperrors "almaconnector/pkg/errors"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// Registry is an ordered table of named workflow functions. Lookup with an
// empty name returns the first registered entry.
type Registry[F any] struct {
	names   []string
	entries map[string]F
}

func NewRegistry[F any]() *Registry[F] {
	return &Registry[F]{entries: make(map[string]F)}
}

// Register adds fn under name. Registering an existing name replaces the
// function and keeps its position.
func (r *Registry[F]) Register(name string, fn F) error {
	if name == "" {
		return apperrors.ErrValidation.WithMessage("workflow name is required")
	}
	if _, ok := r.entries[name]; !ok {
		r.names = append(r.names, name)
	}
	r.entries[name] = fn
	return nil
}

// Lookup returns the function and the name it was resolved to.
func (r *Registry[F]) Lookup(name string) (F, string, error) {
	var zero F

	if name == "" {
		if len(r.names) == 0 {
			return zero, "", apperrors.ErrNotFound.
				WithMessage("no workflow registered").
				WithCause(ErrWorkflowNotFound)
		}
		name = r.names[0]
	}

	fn, ok := r.entries[name]
	if !ok {
		return zero, "", apperrors.ErrNotFound.
			WithMessagef("workflow %q is not registered", name).
			WithCause(ErrWorkflowNotFound).
			WithDetail("workflow", name)
	}
	return fn, name, nil
}

func (r *Registry[F]) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry[F]) Len() int {
	return len(r.names)
}
