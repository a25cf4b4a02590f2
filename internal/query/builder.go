// Package query turns a free-text query plus a flat option bag into a search
// request body for the DOI index. Nothing here performs I/O.
package query

import (
	"strings"

	"github.com/datacite/lupo-sub003/internal/identifier"
)

// queryFields are the boosted fields searched by free text.
var queryFields = []string{
	"uid^50",
	"related_identifiers.relatedIdentifier^3",
	"titles.title^3",
	"creator_names^3",
	"creators.id^3",
	"publisher^3",
	"descriptions.description^3",
	"subjects.subject^3",
}

// Page selects a slice of results. Cursor is the plain "timestamp,uid" form.
type Page struct {
	Size   *int
	Cursor string
}

// Options configure a Builder.
type Options struct {
	Params Params
	Page   Page
	// Include picks aggregations; the zero value means all.
	Include    Include
	FacetCount *int
	FacetSizes map[string]int
	// Sort is accepted for interface compatibility and ignored: results are
	// always ordered by created then uid so cursors stay stable.
	Sort string
}

// Builder derives a search request from a query and options.
type Builder struct {
	query string
	opts  Options
}

// NewBuilder returns a Builder. opts.Params is copied.
func NewBuilder(query string, opts Options) *Builder {
	opts.Params = opts.Params.Clone()
	return &Builder{query: query, opts: opts}
}

// CleanQuery is the normalized free text.
func (b *Builder) CleanQuery() string {
	return Normalize(b.query)
}

// Size is the requested hit count; 0 when unspecified.
func (b *Builder) Size() int {
	if b.opts.Page.Size == nil || *b.opts.Page.Size < 0 {
		return 0
	}
	return min(*b.opts.Page.Size, MaxPageSize)
}

// Cursor is the search_after position, [0, ""] by default.
func (b *Builder) Cursor() []any {
	return SearchAfter(b.opts.Page.Cursor)
}

// Sort returns the fixed tie-breaking sort.
func (b *Builder) Sort() []map[string]any {
	return []map[string]any{
		{"created": "asc"},
		{"uid": "asc"},
	}
}

// Filters compiles the option bag.
func (b *Builder) Filters() []Predicate {
	return CompileFilters(b.opts.Params)
}

// Aggregations returns the selected aggregations with facet sizes applied.
func (b *Builder) Aggregations() map[string]AggregationSpec {
	aggs := Select(b.opts.Include)
	facetCount := DefaultFacetCount
	if b.opts.FacetCount != nil {
		facetCount = *b.opts.FacetCount
	}
	applyFacetSizes(aggs, facetCount, b.opts.FacetSizes)
	return aggs
}

// Must is match_all for blank queries, otherwise a query_string clause.
func (b *Builder) Must() []map[string]any {
	if strings.TrimSpace(b.query) == "" {
		return []map[string]any{{"match_all": map[string]any{}}}
	}
	return []map[string]any{{
		"query_string": map[string]any{
			"query":            b.CleanQuery(),
			"fields":           queryFields,
			"default_operator": "AND",
			"phrase_slop":      1,
		},
	}}
}

// Should returns the OR-ed ownership and organization clauses and the
// matching minimum_should_match (0 when there are none).
func (b *Builder) Should() ([]Predicate, int) {
	p := b.opts.Params
	var should []Predicate

	for _, key := range []string{"provider_id", "client_id"} {
		for _, id := range identifier.SplitList(p.Get(key)) {
			should = append(should, Term{Field: key, Value: id, CaseInsensitive: true})
		}
	}
	if p.Has("has_organization") {
		should = append(should,
			Term{Field: "creators.nameIdentifiers.nameIdentifierScheme", Value: "ROR"},
			Term{Field: "contributors.nameIdentifiers.nameIdentifierScheme", Value: "ROR"},
		)
	}
	if p.Has("has_affiliation") {
		should = append(should,
			Term{Field: "creators.affiliation.affiliationIdentifierScheme", Value: "ROR"},
			Term{Field: "contributors.affiliation.affiliationIdentifierScheme", Value: "ROR"},
		)
	}
	if p.Has("has_funder") {
		should = append(should, Term{Field: "funding_references.funderIdentifierType", Value: "Crossref Funder ID"})
	}
	if p.Has("has_member") {
		should = append(should, Exists{Field: "provider.ror_id"})
	}
	if v := p.Get("organization_id"); v != "" {
		ror := identifier.RORFromURL(v)
		should = append(should,
			Term{Field: "creators.nameIdentifiers.nameIdentifier", Value: "https://" + ror},
			Term{Field: "contributors.nameIdentifiers.nameIdentifier", Value: "https://" + ror},
			Term{Field: "organization_id", Value: ror},
		)
	}
	if v := p.Get("fair_organization_id"); v != "" {
		ror := identifier.RORFromURL(v)
		should = append(should,
			Term{Field: "organization_id", Value: ror},
			Term{Field: "affiliation_id", Value: ror},
			Term{Field: "related_dmp_organization_id", Value: ror},
		)
	}
	if v := p.Get("affiliation_id"); v != "" {
		should = append(should, Term{Field: "affiliation_id", Value: identifier.RORFromURL(v)})
	}
	if ids := identifier.SplitList(p.Get("funder_id")); len(ids) > 0 {
		should = append(should, Terms{
			Field:  "funding_references.funderIdentifier",
			Values: mapStrings(ids, func(s string) string { return "https://doi.org/" + identifier.DOIFromURL(s) }),
		})
	}
	if v := p.Get("member_id"); v != "" {
		should = append(should, Term{Field: "provider.ror_id", Value: "https://" + identifier.RORFromURL(v)})
	}

	if len(should) == 0 {
		return nil, 0
	}
	return should, 1
}

// Query is the bool query combining Must, Filters and Should.
func (b *Builder) Query() map[string]any {
	should, minimum := b.Should()
	return map[string]any{
		"bool": map[string]any{
			"must":                 b.Must(),
			"filter":               Sources(b.Filters()),
			"should":               Sources(should),
			"minimum_should_match": minimum,
		},
	}
}

// Request renders the full search body.
func (b *Builder) Request() map[string]any {
	aggs := b.Aggregations()
	rendered := make(map[string]any, len(aggs))
	for name, spec := range aggs {
		rendered[name] = spec.Source()
	}
	return map[string]any{
		"size":             b.Size(),
		"search_after":     b.Cursor(),
		"sort":             b.Sort(),
		"query":            b.Query(),
		"aggregations":     rendered,
		"track_total_hits": true,
	}
}
