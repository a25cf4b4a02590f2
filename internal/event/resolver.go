package event

import (
	"context"
	"fmt"
	"strings"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/identifier"
	"github.com/datacite/lupo-sub003/internal/query"
)

// pageSize bounds one event index page while collecting events of a record.
const pageSize = 1000

// Searcher runs a query against an index.
type Searcher interface {
	Search(ctx context.Context, index string, body map[string]any) (*elasticsearch.SearchResult, error)
}

// Relation is the resolved edge between two identifiers.
type Relation struct {
	RelationType string `json:"relationType"`
	Total        int    `json:"total"`
	Source       string `json:"sourceId"`
}

// Resolver reads the event index.
type Resolver struct {
	search Searcher
	index  string
	log    logger.Logger
}

// NewResolver returns a Resolver over index.
func NewResolver(search Searcher, index string, log logger.Logger) *Resolver {
	return &Resolver{search: search, index: index, log: log}
}

// NormalizeID maps DOIs, ORCID iDs and ROR ids onto the https:// URL form
// stored in subj_id and obj_id.
func NormalizeID(raw string) string {
	if doi := identifier.NormalizeDOI(raw); doi != "" {
		return doi
	}
	switch {
	case strings.Contains(raw, "orcid.org"):
		return identifier.ORCIDURL(raw)
	case strings.Contains(raw, "ror.org"):
		return identifier.RORURL(raw)
	}
	return raw
}

// Relation returns the most recent event from subjectID to objectID,
// optionally restricted to one source. It returns nil when none exists.
func (r *Resolver) Relation(ctx context.Context, subjectID, objectID, sourceID string) (*Relation, error) {
	filters := []query.Predicate{
		query.Term{Field: "subj_id", Value: NormalizeID(subjectID)},
		query.Term{Field: "obj_id", Value: NormalizeID(objectID)},
	}
	if sourceID != "" {
		filters = append(filters, query.Term{Field: "source_id", Value: sourceID})
	}

	body := map[string]any{
		"size":  1,
		"sort":  []map[string]any{{"occurred_at": "desc"}},
		"query": map[string]any{"bool": map[string]any{"filter": query.Sources(filters)}},
	}
	result, err := r.search.Search(ctx, r.index, body)
	if err != nil {
		return nil, fmt.Errorf("relation %s -> %s: %w", subjectID, objectID, err)
	}
	if len(result.Hits) == 0 {
		return nil, nil
	}

	var e domain.RelationEvent
	if err = result.Hits[0].Decode(&e); err != nil {
		return nil, err
	}
	return &Relation{
		RelationType: Canonical(e.RelationTypeID),
		Total:        e.Total,
		Source:       e.SourceID,
	}, nil
}

// Count returns the number of events with citationType.
func (r *Resolver) Count(ctx context.Context, citationType string) (int64, error) {
	body := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"query": map[string]any{"bool": map[string]any{
			"filter": query.Sources([]query.Predicate{query.Term{Field: "citation_type", Value: citationType}}),
		}},
	}
	result, err := r.search.Search(ctx, r.index, body)
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", citationType, err)
	}
	return result.Total, nil
}

// EventsFor collects every event whose source or target is doi.
func (r *Resolver) EventsFor(ctx context.Context, doi string) ([]domain.RelationEvent, error) {
	upper := identifier.UpperDOI(doi)
	if upper == "" {
		return nil, fmt.Errorf("%w: %q is not a DOI", domain.ErrInvalidInput, doi)
	}

	var (
		events      []domain.RelationEvent
		searchAfter []any
	)
	for {
		body := map[string]any{
			"size": pageSize,
			"sort": []map[string]any{{"occurred_at": "asc"}, {"uuid": "asc"}},
			"query": map[string]any{"bool": map[string]any{
				"should": query.Sources([]query.Predicate{
					query.Term{Field: "source_doi", Value: upper},
					query.Term{Field: "target_doi", Value: upper},
				}),
				"minimum_should_match": 1,
			}},
		}
		if searchAfter != nil {
			body["search_after"] = searchAfter
		}

		result, err := r.search.Search(ctx, r.index, body)
		if err != nil {
			return nil, fmt.Errorf("events for %s: %w", upper, err)
		}
		for _, hit := range result.Hits {
			var e domain.RelationEvent
			if err = hit.Decode(&e); err != nil {
				r.log.Warn("Skipping undecodable event", logger.DOI(upper), logger.Error(err))
				continue
			}
			events = append(events, e)
		}
		if len(result.Hits) < pageSize {
			return events, nil
		}
		searchAfter = result.Hits[len(result.Hits)-1].Sort
	}
}

// Counts derives the counters of doi from its events.
func (r *Resolver) Counts(ctx context.Context, doi string) (domain.Counts, error) {
	events, err := r.EventsFor(ctx, doi)
	if err != nil {
		return domain.Counts{}, err
	}
	return DeriveCounts(doi, events), nil
}

// CitationsOverTime returns yearly citation totals of doi.
func (r *Resolver) CitationsOverTime(ctx context.Context, doi string) ([]domain.YearTotal, error) {
	events, err := r.EventsFor(ctx, doi)
	if err != nil {
		return nil, err
	}
	return CitationsOverTime(doi, events), nil
}
