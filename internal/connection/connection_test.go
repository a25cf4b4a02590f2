package connection_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/connection"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/query"
)

type call struct {
	index string
	body  map[string]any
}

type countingSearcher struct {
	mu       sync.Mutex
	calls    []call
	response string
	err      error
}

func (s *countingSearcher) Search(_ context.Context, index string, body map[string]any) (*elasticsearch.SearchResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{index: index, body: body})
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var result elasticsearch.SearchResult
	if err := json.Unmarshal([]byte(s.response), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *countingSearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newResolver(s *countingSearcher) *connection.Resolver {
	return connection.NewResolver(s, connection.Config{DOIIndex: "dois", EventIndex: "events"}, logger.NewNop())
}

func intPtr(n int) *int { return &n }

func requestJSON(t *testing.T, body map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return string(raw)
}

const orcid = "https://orcid.org/0000-0003-1419-2405"

const datasetsResponse = `{
  "hits": {
    "total": {"value": 3},
    "hits": [
      {"_id": "1", "_source": {"uid": "10.5061/a", "doi": "10.5061/A", "creators": [{"name": "Fenner, Martin"}]}, "sort": [1577836800000, "10.5061/a"]},
      {"_id": "2", "_source": {"uid": "10.5061/b", "doi": "10.5061/B"}, "sort": [1577836800001, "10.5061/b"]},
      {"_id": "3", "_source": {"uid": "10.5061/c", "doi": "10.5061/C"}, "sort": [1577836800002, "10.5061/c"]}
    ]
  },
  "aggregations": {
    "published": {"buckets": [{"key": 1577836800000, "key_as_string": "2020", "doc_count": 3}]},
    "registration_agencies": {"buckets": [{"key": "datacite", "doc_count": 3}]},
    "clients": {"buckets": [{"key": "datacite.dryad:DRYAD", "doc_count": 3}]},
    "affiliations": {"sum_other_doc_count": 2, "buckets": [{"key": "ror.org/04wxnsj81:DataCite", "doc_count": 1}]},
    "fields_of_science": {"doc_count": 1, "subject": {"buckets": [{"key": "FOS: Biological sciences", "doc_count": 1}]}},
    "licenses": {"buckets": [{"key": "cc-by-4.0", "doc_count": 3}]},
    "languages": {"buckets": [{"key": "en", "doc_count": 3}]}
  }
}`

func TestResolve_DatasetsByUser(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{response: datasetsResponse}
	conn, err := newResolver(search).Resolve(context.Background(), "datasets", connection.Args{
		Filters: map[string]string{"userId": orcid},
		First:   intPtr(3),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), conn.TotalCount())

	published, err := conn.Facet("published")
	require.NoError(t, err)
	assert.Equal(t, []domain.Facet{{ID: "2020", Title: "2020", Count: 3}}, published)

	nodes, err := conn.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "10.5061/A", nodes[0].DOI)

	require.Equal(t, 1, search.count())
	assert.Equal(t, "dois", search.calls[0].index)
	body := requestJSON(t, search.calls[0].body)
	assert.Contains(t, body, `"creators.nameIdentifiers.nameIdentifier":["`+orcid+`"]`)
	assert.Contains(t, body, `"resource_type_id":"dataset"`)
	assert.Contains(t, body, `"aasm_state":["findable"]`)
}

func TestConnection_Facets(t *testing.T) {
	t.Parallel()

	conn, err := newResolver(&countingSearcher{response: datasetsResponse}).
		Resolve(context.Background(), "datasets", connection.Args{})
	require.NoError(t, err)

	tests := map[string][]domain.Facet{
		"registration_agencies": {{ID: "datacite", Title: "DataCite", Count: 3}},
		"repositories":          {{ID: "datacite.dryad", Title: "DRYAD", Count: 3}},
		"affiliations": {
			{ID: "ror.org/04wxnsj81", Title: "DataCite", Count: 1},
			{ID: "other", Title: "Other", Count: 2},
		},
		"fields_of_science": {{ID: "biological_sciences", Title: "Biological sciences", Count: 1}},
		"licenses":          {{ID: "cc-by-4.0", Title: "CC-BY-4.0", Count: 3}},
		"languages":         {{ID: "en", Title: "English", Count: 3}},
	}
	for field, want := range tests {
		got, err := conn.Facet(field)
		require.NoError(t, err, field)
		assert.Equal(t, want, got, field)
	}

	_, err = conn.Facet("authors")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnection_ZeroResultsSkipFacets(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{response: `{"hits": {"total": {"value": 0}, "hits": []},
		"aggregations": {"published": {"buckets": [{"key_as_string": "2020", "doc_count": 9}]}}}`}
	ctx := connection.WithMemo(context.Background())
	resolver := newResolver(search)

	for _, field := range []string{"published", "registration_agencies", "repositories", "affiliations", "fields_of_science", "licenses", "languages"} {
		conn, err := resolver.Resolve(ctx, "datasets", connection.Args{Query: "nothing"})
		require.NoError(t, err)
		got, err := conn.Facet(field)
		require.NoError(t, err)
		assert.NotNil(t, got, field)
		assert.Empty(t, got, field)
	}
	assert.Equal(t, 1, search.count())
}

func TestResolve_MemoizesPerRequest(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{response: datasetsResponse}
	resolver := newResolver(search)
	args := connection.Args{Query: "climate", First: intPtr(10)}

	ctx := connection.WithMemo(context.Background())
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Resolve(ctx, "works", args)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, search.count())

	_, err := resolver.Resolve(ctx, "works", connection.Args{Query: "ocean"})
	require.NoError(t, err)
	assert.Equal(t, 2, search.count())

	_, err = resolver.Resolve(connection.WithMemo(context.Background()), "works", args)
	require.NoError(t, err)
	assert.Equal(t, 3, search.count())
}

func TestResolve_WithoutMemoAlwaysSearches(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{response: datasetsResponse}
	resolver := newResolver(search)

	for range 2 {
		_, err := resolver.Resolve(context.Background(), "works", connection.Args{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, search.count())
}

func TestResolve_IncludeAggregations(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{response: datasetsResponse}
	_, err := newResolver(search).Resolve(context.Background(), "works", connection.Args{
		IncludeAggregations: "clients,languages,invalid_key",
	})
	require.NoError(t, err)

	aggs, ok := search.calls[0].body["aggregations"].(map[string]any)
	require.True(t, ok)
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"clients", "languages"}, names)
}

func TestResolve_EntityAggregationsByDefault(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{response: datasetsResponse}
	_, err := newResolver(search).Resolve(context.Background(), "images", connection.Args{})
	require.NoError(t, err)

	aggs := search.calls[0].body["aggregations"].(map[string]any)
	assert.Len(t, aggs, 4)
	assert.Contains(t, aggs, "published")
	assert.Contains(t, aggs, "clients")
}

func TestResolve_UnknownConnection(t *testing.T) {
	t.Parallel()

	_, err := newResolver(&countingSearcher{}).Resolve(context.Background(), "spaceships", connection.Args{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolve_BackendFailure(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{err: &domain.BackendError{Op: "search", Err: domain.ErrQueryTimeout}}
	_, err := newResolver(search).Resolve(context.Background(), "works", connection.Args{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryTimeout)
}

func TestConnection_PageInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		first    int
		wantNext bool
	}{
		{"full last page", 3, false},
		{"page larger than hits", 25, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn, err := newResolver(&countingSearcher{response: datasetsResponse}).
				Resolve(context.Background(), "datasets", connection.Args{First: intPtr(tt.first)})
			require.NoError(t, err)

			info := conn.PageInfo()
			assert.Equal(t, tt.wantNext, info.HasNextPage)
			cursor, valid := query.DecodeCursor(info.EndCursor)
			assert.True(t, valid)
			assert.Equal(t, query.Cursor{"1577836800002", "10.5061/c"}, cursor)
		})
	}
}

func TestConnection_HasNextPage(t *testing.T) {
	t.Parallel()

	response := `{"hits": {"total": {"value": 10}, "hits": [
		{"_id": "1", "_source": {}, "sort": [1, "a"]},
		{"_id": "2", "_source": {}, "sort": [2, "b"]}
	]}}`
	search := &countingSearcher{response: response}
	conn, err := newResolver(search).Resolve(context.Background(), "works", connection.Args{
		First: intPtr(2),
		After: query.EncodeCursor(int64(0), "start"),
	})
	require.NoError(t, err)
	assert.True(t, conn.PageInfo().HasNextPage)

	body := search.calls[0].body
	assert.Equal(t, []any{int64(0), "start"}, body["search_after"])
	assert.Equal(t, 2, body["size"])
}

func TestConnection_ConnectionCount(t *testing.T) {
	t.Parallel()

	search := &countingSearcher{response: datasetsResponse}
	ctx := connection.WithMemo(context.Background())
	conn, err := newResolver(search).Resolve(ctx, "publications", connection.Args{})
	require.NoError(t, err)

	n, err := conn.ConnectionCount(ctx, connection.CountPeople)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Equal(t, 2, search.count())
	assert.Equal(t, "events", search.calls[1].index)
	assert.Contains(t, requestJSON(t, search.calls[1].body), `"citation_type":"Person-ScholarlyArticle"`)

	images, err := newResolver(search).Resolve(ctx, "images", connection.Args{})
	require.NoError(t, err)
	_, err = images.ConnectionCount(ctx, connection.CountPeople)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnection_WorkTotals(t *testing.T) {
	t.Parallel()

	response := `{"hits": {"total": {"value": 5}, "hits": []}, "aggregations": {
		"open_licenses": {"doc_count": 4, "resource_types": {"buckets": [{"key": "dataset:Dataset", "doc_count": 4}]}},
		"content_url_count": {"value": 7},
		"creators_and_contributors": {"buckets": [{"key": "` + orcid + `", "doc_count": 2,
			"work_types": {"buckets": [{"key": "text:Text", "doc_count": 2}]}}]}
	}}`
	conn, err := newResolver(&countingSearcher{response: response}).Resolve(context.Background(), "works", connection.Args{})
	require.NoError(t, err)

	assert.Equal(t, int64(4), conn.TotalOpenLicenses())
	assert.Equal(t, int64(7), conn.TotalContentURL())

	open, err := conn.Facet("open_license_resource_types")
	require.NoError(t, err)
	assert.Equal(t, []domain.Facet{{ID: "dataset", Title: "Dataset", Count: 4}}, open)

	people, err := conn.MultiFacet("person_to_work_types_multilevel")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "0000-0003-1419-2405", people[0].ID)
	assert.Equal(t, []domain.Facet{{ID: "text", Title: "Text", Count: 2}}, people[0].Inner)

	licenses, err := conn.Facet("licenses")
	require.NoError(t, err)
	assert.Empty(t, licenses)
}

func TestResolver_Work(t *testing.T) {
	t.Parallel()

	found := &countingSearcher{response: `{"hits": {"total": {"value": 1}, "hits": [{"_id": "1", "_source": {"doi": "10.5061/A"}}]}}`}
	rec, err := newResolver(found).Work(context.Background(), "https://doi.org/10.5061/a")
	require.NoError(t, err)
	assert.Equal(t, "10.5061/A", rec.DOI)

	missing := &countingSearcher{response: `{"hits": {"total": {"value": 0}, "hits": []}}`}
	_, err = newResolver(missing).Work(context.Background(), "10.5061/none")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = newResolver(missing).Work(context.Background(), "not-a-doi")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntities(t *testing.T) {
	t.Parallel()

	names := connection.Names()
	assert.Len(t, names, 25)
	assert.True(t, sort.StringsAreSorted(names))

	for _, name := range names {
		e, ok := connection.Lookup(name)
		require.True(t, ok)
		for _, agg := range e.Aggregations() {
			assert.Contains(t, query.AggregationNames(), agg, name)
		}
	}
}
