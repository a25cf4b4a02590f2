package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datacite/lupo-sub003/internal/query"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"blank", "   ", ""},
		{"empty", "", ""},
		{"plain text untouched", "climate change", "climate change"},
		{"publication year", "publicationYear:2020", "publication_year:2020"},
		{"related identifiers", "relatedIdentifiers.relationType:Cites", "related_identifiers.relationType:Cites"},
		{"related items", "relatedItems:*", "related_items:*"},
		{"rights list", "rightsList.rightsIdentifier:cc0-1.0", "rights_list.rightsIdentifier:cc0-1.0"},
		{"funding references", "fundingReferences.funderName:NSF", "funding_references.funderName:NSF"},
		{"geo locations", "geoLocations:*", "geo_locations:*"},
		{"version", "version:2", "version_info:2"},
		{"landing page", "landingPage.status:200", "landing_page.status:200"},
		{"content url", "contentUrl:*", "content_url:*"},
		{"citation count", "citationCount:[1 TO *]", "citation_count:[1 TO *]"},
		{"view count", "viewCount:0", "view_count:0"},
		{"download count", "downloadCount:0", "download_count:0"},
		{"publisher name", "publisher.name:Zenodo", "publisher_obj.name:Zenodo"},
		{"publisher identifier", "publisher.publisherIdentifier:x", "publisher_obj.publisherIdentifier:x"},
		{"slash escaped", "10.5061/dryad.8515", `10.5061\/dryad.8515`},
		{"case sensitive", "PublicationYear:2020", "PublicationYear:2020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, query.Normalize(tt.in))
		})
	}
}
