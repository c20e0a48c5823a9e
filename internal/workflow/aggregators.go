package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"almaconnector/internal/config"
	"almaconnector/internal/constants"
	"almaconnector/internal/input"
	"almaconnector/internal/repository"
	"almaconnector/pkg/cel"
	apperrors "almaconnector/pkg/errors"
)

// CSVAggregator reads pairs from two columns of a CSV file each time it is
// applied.
type CSVAggregator struct {
	name         string
	path         string
	sourceColumn string
	targetColumn string
}

func NewCSVAggregator(name, path, sourceColumn, targetColumn string) *CSVAggregator {
	return &CSVAggregator{name: name, path: path, sourceColumn: sourceColumn, targetColumn: targetColumn}
}

func (a *CSVAggregator) Name() string {
	return a.name
}

func (a *CSVAggregator) Aggregate(context.Context) ([]Pair, error) {
	rows, err := input.ReadCSVFile(a.path, a.sourceColumn, a.targetColumn)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(rows))
	for _, row := range rows {
		if row[a.sourceColumn] == "" || row[a.targetColumn] == "" {
			continue
		}
		pairs = append(pairs, Pair{SourceID: row[a.sourceColumn], TargetID: row[a.targetColumn]})
	}
	return pairs, nil
}

// Searcher is the search part of the repository API.
type Searcher interface {
	Search(ctx context.Context, query string, page, size int) (*repository.SearchResult, error)
}

// SearchAggregator pages through a repository query and keeps the hits the
// filter accepts. Source and target are dotted paths into each hit.
type SearchAggregator struct {
	name        string
	searcher    Searcher
	query       string
	filter      *cel.Filter
	sourceField string
	targetField string
	pageSize    int
}

func NewSearchAggregator(name string, searcher Searcher, query string, filter *cel.Filter, sourceField, targetField string, pageSize int) *SearchAggregator {
	if pageSize <= 0 {
		pageSize = constants.DefaultListLimit
	}
	return &SearchAggregator{
		name:        name,
		searcher:    searcher,
		query:       query,
		filter:      filter,
		sourceField: sourceField,
		targetField: targetField,
		pageSize:    pageSize,
	}
}

func (a *SearchAggregator) Name() string {
	return a.name
}

func (a *SearchAggregator) Aggregate(ctx context.Context) ([]Pair, error) {
	var pairs []Pair
	seen := 0

	for page := 1; ; page++ {
		res, err := a.searcher.Search(ctx, a.query, page, a.pageSize)
		if err != nil {
			return nil, err
		}

		hits := res.Hits.Hits
		for _, hit := range hits {
			if a.filter != nil {
				ok, err := a.filter.Match(ctx, hit.Raw)
				if err != nil {
					return nil, apperrors.ErrValidation.
						WithMessagef("filter %q failed on record %s", a.filter.String(), hit.ID).
						WithCause(err)
				}
				if !ok {
					continue
				}
			}

			source := Lookup(hit.Raw, a.sourceField)
			target := Lookup(hit.Raw, a.targetField)
			if source == "" || target == "" {
				continue
			}
			pairs = append(pairs, Pair{SourceID: source, TargetID: target})
		}

		seen += len(hits)
		if len(hits) == 0 || seen >= res.Hits.Total {
			return pairs, nil
		}
	}
}

// Lookup resolves a dotted path in a decoded JSON document. Lists are
// indexed by numeric segments; any other segment applied to a list
// descends into its first element.
func Lookup(doc map[string]any, path string) string {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		if list, ok := cur.([]any); ok {
			if i, err := strconv.Atoi(seg); err == nil {
				if i < 0 || i >= len(list) {
					return ""
				}
				cur = list[i]
				continue
			}
			if len(list) == 0 {
				return ""
			}
			cur = list[0]
		}

		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		if cur, ok = m[seg]; !ok {
			return ""
		}
	}

	for {
		list, ok := cur.([]any)
		if !ok || len(list) == 0 {
			break
		}
		cur = list[0]
	}

	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Columns names the default CSV columns of one pipeline kind.
type Columns struct {
	Source string
	Target string
}

var (
	CreateColumns = Columns{Source: KeyMarcID, Target: KeyCMSID}
	UpdateColumns = Columns{Source: KeyMarcID, Target: KeyAlmaID}
)

// BuildPipeline assembles the configured aggregators in order.
func BuildPipeline(cfgs []config.AggregatorConfig, columns Columns, searcher Searcher, evaluator *cel.Evaluator) (*Pipeline, error) {
	p := NewPipeline()

	for i, c := range cfgs {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", c.Type, i)
		}

		switch c.Type {
		case constants.AggregatorTypeCSV:
			src, tgt := c.SourceColumn, c.TargetColumn
			if src == "" {
				src = columns.Source
			}
			if tgt == "" {
				tgt = columns.Target
			}
			p.Add(NewCSVAggregator(name, c.Path, src, tgt))

		case constants.AggregatorTypeSearch:
			if searcher == nil {
				return nil, apperrors.ErrConfiguration.WithMessagef("aggregator %s needs the repository api", name)
			}
			var filter *cel.Filter
			if c.Filter != "" {
				if evaluator == nil {
					return nil, apperrors.ErrConfiguration.WithMessagef("aggregator %s has a filter but no evaluator", name)
				}
				f, err := evaluator.CompileFilter(c.Filter)
				if err != nil {
					return nil, apperrors.ErrConfiguration.WithMessagef("aggregator %s: invalid filter", name).WithCause(err)
				}
				filter = f
			}
			p.Add(NewSearchAggregator(name, searcher, c.Query, filter, c.SourceField, c.TargetField, c.PageSize))

		default:
			return nil, apperrors.ErrConfiguration.WithMessagef("unknown aggregator type %q", c.Type)
		}
	}
	return p, nil
}
