package facet_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/facet"
)

func buckets(t *testing.T, raw string) []elasticsearch.Bucket {
	t.Helper()
	var out []elasticsearch.Bucket
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestSimpleTransforms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		transform facet.Transform
		key       string
		want      domain.Facet
	}{
		{"key titleized", facet.ByKey, "findable", domain.Facet{ID: "findable", Title: "Findable", Count: 2}},
		{"key raw", facet.ByKeyRaw, "datacite.test", domain.Facet{ID: "datacite.test", Title: "datacite.test", Count: 2}},
		{"resource type", facet.ByResourceType, "JournalArticle", domain.Facet{ID: "journal-article", Title: "JournalArticle", Count: 2}},
		{"software", facet.BySoftware, "R Studio", domain.Facet{ID: "r_studio", Title: "R Studio", Count: 2}},
		{"license known", facet.ByLicense, "cc-by-4.0", domain.Facet{ID: "cc-by-4.0", Title: "CC-BY-4.0", Count: 2}},
		{"license unknown", facet.ByLicense, "wtfpl", domain.Facet{ID: "wtfpl", Title: "wtfpl", Count: 2}},
		{"license missing", facet.ByLicense, "__missing__", domain.Facet{ID: "__missing__", Title: "Missing", Count: 2}},
		{"combined key", facet.ByCombinedKey, "datacite.test:Test: Repository", domain.Facet{ID: "datacite.test", Title: "Test: Repository", Count: 2}},
		{"combined missing", facet.ByCombinedKey, "__missing__", domain.Facet{ID: "__missing__", Title: "Missing", Count: 2}},
		{"region", facet.ByRegion, "EMEA", domain.Facet{ID: "emea", Title: "Europe, Middle East and Africa", Count: 2}},
		{"fos", facet.ByFOS, "FOS: Computer and information sciences", domain.Facet{ID: "computer_and_information_sciences", Title: "Computer and information sciences", Count: 2}},
		{"agency", facet.ByRegistrationAgency, "medra", domain.Facet{ID: "medra", Title: "mEDRA", Count: 2}},
		{"agency unknown", facet.ByRegistrationAgency, "other-ra", domain.Facet{ID: "other-ra", Title: "other-ra", Count: 2}},
		{"client type", facet.ByClientType, "igsnCatalog", domain.Facet{ID: "igsnCatalog", Title: "IGSN ID Catalog", Count: 2}},
		{"source", facet.BySource, "crossref", domain.Facet{ID: "crossref", Title: "Crossref to DataCite", Count: 2}},
		{"language", facet.ByLanguage, "de", domain.Facet{ID: "de", Title: "German", Count: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.transform([]elasticsearch.Bucket{{Key: tt.key, DocCount: 2}})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestByYear(t *testing.T) {
	t.Parallel()

	got := facet.ByYear(buckets(t, `[{"key": 1577836800000, "key_as_string": "2020-01-01T00:00:00Z", "doc_count": 3}]`))
	assert.Equal(t, []domain.Facet{{ID: "2020", Title: "2020", Count: 3}}, got)
}

func TestByRange(t *testing.T) {
	t.Parallel()

	var in []elasticsearch.Bucket
	for year := 2030; year >= 2000; year-- {
		in = append(in, elasticsearch.Bucket{KeyAsString: itoa(year), DocCount: 1})
	}

	got := facet.ByRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))(in)
	require.Len(t, got, facet.MaxYears)
	assert.Equal(t, "2024", got[0].ID)
	assert.Equal(t, "2015", got[len(got)-1].ID)
}

func TestByRange_Empty(t *testing.T) {
	t.Parallel()

	got := facet.ByRange(time.Now())(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAddOther(t *testing.T) {
	t.Parallel()

	base := []domain.Facet{{ID: "a", Title: "A", Count: 5}}
	assert.Equal(t, base, facet.AddOther(base, 0))

	got := facet.AddOther(base, 7)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Facet{ID: "other", Title: "Other", Count: 7}, got[1])
}

func TestAggregateCount(t *testing.T) {
	t.Parallel()

	in := buckets(t, `[
		{"key": "a", "doc_count": 1, "metric_count": {"value": 4.0}},
		{"key": "b", "doc_count": 1, "metric_count": {"value": 6.0}},
		{"key": "c", "doc_count": 1}
	]`)
	assert.Equal(t, int64(10), facet.AggregateCount(in, "metric_count"))
}

func TestByAuthors(t *testing.T) {
	t.Parallel()

	in := buckets(t, `[{
		"key": "https://orcid.org/0000-0003-1419-2405",
		"doc_count": 3,
		"authors": {"hits": {"hits": [{"_id": "x", "_source": {"creators": [
			{"name": "Other, Person", "nameIdentifiers": [{"nameIdentifier": "https://orcid.org/0000-0001-0000-0000"}]},
			{"name": "Fenner, Martin", "nameIdentifiers": [{"nameIdentifier": "https://orcid.org/0000-0003-1419-2405"}]}
		]}}]}}
	}, {"key": "https://orcid.org/0000-0002-0000-0000", "doc_count": 1}]`)

	got := facet.ByAuthors(in)
	assert.Equal(t, []domain.Facet{
		{ID: "0000-0003-1419-2405", Title: "Fenner, Martin", Count: 3},
		{ID: "0000-0002-0000-0000", Title: "https://orcid.org/0000-0002-0000-0000", Count: 1},
	}, got)
}

func TestByFunders(t *testing.T) {
	t.Parallel()

	in := buckets(t, `[{
		"key": "https://doi.org/10.13039/501100000780",
		"doc_count": 2,
		"funders": {"hits": {"hits": [{"_id": "x", "_source": {"funding_references": [
			{"funderName": "European Commission", "funderIdentifier": "https://doi.org/10.13039/501100000780"}
		]}}]}}
	}]`)

	got := facet.ByFunders(in)
	require.Len(t, got, 1)
	assert.Equal(t, "European Commission", got[0].Title)
}

func TestByPersonWorkTypes(t *testing.T) {
	t.Parallel()

	in := buckets(t, `[{
		"key": "https://orcid.org/0000-0003-1419-2405",
		"doc_count": 3,
		"work_types": {"buckets": [{"key": "dataset:Dataset", "doc_count": 2}, {"key": "text:Text", "doc_count": 1}]}
	}]`)

	got := facet.ByPersonWorkTypes(in)
	require.Len(t, got, 1)
	assert.Equal(t, "0000-0003-1419-2405", got[0].ID)
	assert.Equal(t, []domain.Facet{
		{ID: "dataset", Title: "Dataset", Count: 2},
		{ID: "text", Title: "Text", Count: 1},
	}, got[0].Inner)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
