package connection

import (
	"strings"

	"github.com/datacite/lupo-sub003/internal/query"
	"github.com/datacite/lupo-sub003/internal/textcase"
)

// FindableState restricts public connections to findable records.
const FindableState = "findable"

// argumentAliases maps connection argument names onto filter keys.
var argumentAliases = map[string]string{
	"repository_id":       "client_id",
	"member_id":           "provider_id",
	"registration_agency": "agency",
}

// Args are the arguments of one connection field.
type Args struct {
	Query   string
	Filters map[string]string
	First   *int
	After   string
	// IncludeAggregations overrides the entity's own aggregations when set.
	IncludeAggregations string
	FacetCount          *int
	FacetSizes          map[string]int
}

// params converts arguments into filter parameters pinned to the entity.
func (a Args) params(e Entity) query.Params {
	p := query.Params{}
	for key, value := range a.Filters {
		key = textcase.Underscore(strings.TrimSpace(key))
		if alias, ok := argumentAliases[key]; ok {
			key = alias
		}
		p[key] = value
	}
	if e.ResourceTypeID != "" {
		p["resource_type_id"] = e.ResourceTypeID
	}
	if e.ResourceType != "" {
		p["resource_type"] = e.ResourceType
	}
	p["state"] = FindableState
	return p
}

func (a Args) include(e Entity) query.Include {
	if strings.TrimSpace(a.IncludeAggregations) != "" {
		return query.ParseInclude(a.IncludeAggregations)
	}
	return query.IncludeNames(e.Aggregations()...)
}

// Builder returns the query builder for e.
func (a Args) Builder(e Entity) *query.Builder {
	size := query.ClampPageSize(a.First)
	// an unreadable cursor restarts from the first page
	cursor, _ := query.DecodeCursor(a.After)
	return query.NewBuilder(a.Query, query.Options{
		Params: a.params(e),
		Page: query.Page{
			Size:   &size,
			Cursor: cursor.String(),
		},
		Include:    a.include(e),
		FacetCount: a.FacetCount,
		FacetSizes: a.FacetSizes,
	})
}
