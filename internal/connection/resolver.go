// Package connection resolves paginated, faceted record connections. One
// generic resolver serves every entity through a descriptor table.
package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/identifier"
	"github.com/datacite/lupo-sub003/internal/query"
)

// Searcher runs a query against an index.
type Searcher interface {
	Search(ctx context.Context, index string, body map[string]any) (*elasticsearch.SearchResult, error)
}

// Config names the indices read by the resolver.
type Config struct {
	DOIIndex   string
	EventIndex string
}

// Resolver executes connection queries.
type Resolver struct {
	search Searcher
	cfg    Config
	log    logger.Logger
	now    func() time.Time
}

// NewResolver returns a Resolver.
func NewResolver(search Searcher, cfg Config, log logger.Logger) *Resolver {
	return &Resolver{search: search, cfg: cfg, log: log, now: time.Now}
}

func (r *Resolver) run(ctx context.Context, index string, body map[string]any) (*elasticsearch.SearchResult, error) {
	return memoSearch(ctx, index, body, func() (*elasticsearch.SearchResult, error) {
		return r.search.Search(ctx, index, body)
	})
}

// Resolve executes the single search backing one connection field. Within a
// context carrying a Memo, repeated calls with the same arguments reuse it.
func (r *Resolver) Resolve(ctx context.Context, name string, args Args) (*Connection, error) {
	entity, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown connection %q", domain.ErrInvalidInput, name)
	}

	b := args.Builder(entity)
	result, err := r.run(ctx, r.cfg.DOIIndex, b.Request())
	if err != nil {
		r.log.Error("Connection query failed",
			logger.String("connection", name),
			logger.Error(err),
		)
		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}

	return &Connection{
		entity:   entity,
		result:   result,
		first:    b.Size(),
		resolver: r,
		now:      r.now(),
	}, nil
}

// Work returns the findable record for id, or domain.ErrNotFound.
func (r *Resolver) Work(ctx context.Context, id string) (*domain.Record, error) {
	doi := identifier.UpperDOI(id)
	if doi == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}

	one := 1
	b := query.NewBuilder("", query.Options{
		Params:  query.Params{"ids": doi},
		Page:    query.Page{Size: &one},
		Include: query.IncludeNone(),
	})
	result, err := r.run(ctx, r.cfg.DOIIndex, b.Request())
	if err != nil {
		return nil, fmt.Errorf("work %s: %w", doi, err)
	}
	if len(result.Hits) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, doi)
	}

	var rec domain.Record
	if err = result.Hits[0].Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// connectionCount counts events of citationType in the event index.
func (r *Resolver) connectionCount(ctx context.Context, citationType string) (int64, error) {
	body := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"query": map[string]any{"bool": map[string]any{
			"filter": query.Sources([]query.Predicate{query.Term{Field: "citation_type", Value: citationType}}),
		}},
	}
	result, err := r.run(ctx, r.cfg.EventIndex, body)
	if err != nil {
		return 0, fmt.Errorf("count %s connections: %w", citationType, err)
	}
	return result.Total, nil
}
