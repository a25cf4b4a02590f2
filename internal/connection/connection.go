package connection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/event"
	"github.com/datacite/lupo-sub003/internal/facet"
	"github.com/datacite/lupo-sub003/internal/query"
)

// CountTarget is the schema.org type at the other end of a connection count.
type CountTarget string

// Connection count targets.
const (
	CountDatasets      CountTarget = "Dataset"
	CountPublications  CountTarget = "ScholarlyArticle"
	CountSoftware      CountTarget = "SoftwareSourceCode"
	CountPeople        CountTarget = "Person"
	CountFunders       CountTarget = "Funder"
	CountOrganizations CountTarget = "Organization"
)

// CountFields maps connection count field names onto targets.
var CountFields = map[string]CountTarget{
	"dataset_connection_count":      CountDatasets,
	"publication_connection_count":  CountPublications,
	"software_connection_count":     CountSoftware,
	"person_connection_count":       CountPeople,
	"funder_connection_count":       CountFunders,
	"organization_connection_count": CountOrganizations,
}

// PageInfo describes forward pagination.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor,omitempty"`
}

// Connection is one executed connection query. Every field is derived from
// the single search result it holds.
type Connection struct {
	entity   Entity
	result   *elasticsearch.SearchResult
	first    int
	resolver *Resolver
	now      time.Time
}

// Entity is the descriptor the connection was resolved with.
func (c *Connection) Entity() Entity { return c.entity }

// TotalCount is the number of matching records.
func (c *Connection) TotalCount() int64 { return c.result.Total }

// Nodes decodes the page of records.
func (c *Connection) Nodes() ([]domain.Record, error) {
	nodes := make([]domain.Record, 0, len(c.result.Hits))
	for _, hit := range c.result.Hits {
		var rec domain.Record
		if err := hit.Decode(&rec); err != nil {
			return nil, err
		}
		nodes = append(nodes, rec)
	}
	return nodes, nil
}

// PageInfo reports whether another page follows and the cursor to request it.
func (c *Connection) PageInfo() PageInfo {
	hits := c.result.Hits
	info := PageInfo{
		HasNextPage: int64(len(hits)) < c.result.Total && len(hits) == c.first && c.first > 0,
	}
	if len(hits) > 0 {
		if sortValues := hits[len(hits)-1].Sort; len(sortValues) > 0 {
			info.EndCursor = query.EncodeCursor(sortValues...)
		}
	}
	return info
}

// AggregationNames lists the aggregations present in the response.
func (c *Connection) AggregationNames() []string {
	out := make([]string, 0, len(c.result.Aggregations))
	for name := range c.result.Aggregations {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Facet returns the facets of field. An empty result set, or a response
// without the field's aggregation, yields an empty list.
func (c *Connection) Facet(field string) ([]domain.Facet, error) {
	def, ok := facetFields[field]
	if !ok || !c.entity.HasFacet(field) {
		return nil, fmt.Errorf("%w: %s has no facet %q", domain.ErrInvalidInput, c.entity.Name, field)
	}
	if c.result.Total == 0 {
		return []domain.Facet{}, nil
	}
	agg, ok := c.result.Aggregations.Path(def.Path...)
	if !ok {
		return []domain.Facet{}, nil
	}
	facets := def.Transform(c.now)(agg.Buckets)
	if def.AddOther {
		facets = facet.AddOther(facets, agg.SumOtherDocCount)
	}
	return facets, nil
}

// MultiFacet returns people with their work type breakdown.
func (c *Connection) MultiFacet(field string) ([]domain.MultiFacet, error) {
	if field != multiLevelField || !c.entity.HasFacet(field) {
		return nil, fmt.Errorf("%w: %s has no multi-level facet %q", domain.ErrInvalidInput, c.entity.Name, field)
	}
	if c.result.Total == 0 {
		return []domain.MultiFacet{}, nil
	}
	agg, ok := c.result.Aggregations.Get("creators_and_contributors")
	if !ok {
		return []domain.MultiFacet{}, nil
	}
	return facet.ByPersonWorkTypes(agg.Buckets), nil
}

// TotalOpenLicenses is the number of records under an open license.
func (c *Connection) TotalOpenLicenses() int64 {
	if agg, ok := c.result.Aggregations.Get("open_licenses"); ok {
		return agg.DocCount
	}
	return 0
}

// TotalContentURL is the number of content URLs across matching records.
func (c *Connection) TotalContentURL() int64 {
	if agg, ok := c.result.Aggregations.Get("content_url_count"); ok && agg.Value != nil {
		return int64(*agg.Value)
	}
	return 0
}

// ConnectionCount counts events linking the entity's type to target.
func (c *Connection) ConnectionCount(ctx context.Context, target CountTarget) (int64, error) {
	if !c.entity.ConnectionCounts || c.entity.SchemaOrgType == "" {
		return 0, fmt.Errorf("%w: %s has no connection counts", domain.ErrInvalidInput, c.entity.Name)
	}
	return c.resolver.connectionCount(ctx, event.CitationType(c.entity.SchemaOrgType, string(target)))
}
