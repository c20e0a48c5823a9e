package workflow

import (
	"context"
	"errors"

	apperrors "almaconnector/pkg/errors"
)

// Pipeline concatenates the pairs of its aggregators in registration order.
// There is no deduplication and no parallelism.
type Pipeline struct {
	aggregators []Aggregator
}

func NewPipeline(aggregators ...Aggregator) *Pipeline {
	return &Pipeline{aggregators: aggregators}
}

func (p *Pipeline) Add(a Aggregator) {
	p.aggregators = append(p.aggregators, a)
}

func (p *Pipeline) Len() int {
	return len(p.aggregators)
}

// Apply runs every aggregator once. The first failing aggregator aborts the
// whole apply.
func (p *Pipeline) Apply(ctx context.Context) ([]Pair, error) {
	var out []Pair
	for _, a := range p.aggregators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pairs, err := a.Aggregate(ctx)
		if err != nil {
			var appErr *apperrors.Error
			if errors.As(err, &appErr) {
				return nil, appErr.WithDetail("aggregator", a.Name())
			}
			return nil, apperrors.ErrInternal.
				WithMessagef("aggregator %s failed", a.Name()).
				WithCause(err).
				WithDetail("aggregator", a.Name())
		}
		out = append(out, pairs...)
	}
	return out, nil
}
