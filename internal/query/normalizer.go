package query

import (
	"regexp"
	"strings"
)

// fieldSynonyms maps the camelCase field names used in the public API to the
// indexed field names. Keys are matched case-sensitively.
var fieldSynonyms = []struct {
	from, to string
}{
	{"publicationYear", "publication_year"},
	{"relatedIdentifiers", "related_identifiers"},
	{"relatedItems", "related_items"},
	{"rightsList", "rights_list"},
	{"fundingReferences", "funding_references"},
	{"geoLocations", "geo_locations"},
	{"version:", "version_info:"},
	{"landingPage", "landing_page"},
	{"contentUrl", "content_url"},
	{"citationCount", "citation_count"},
	{"viewCount", "view_count"},
	{"downloadCount", "download_count"},
}

var publisherField = regexp.MustCompile(`publisher\.(name|publisherIdentifier|publisherIdentifierScheme|schemeUri|lang)`)

// Normalize prepares free text for a query_string query. Field synonyms are
// rewritten and forward slashes escaped so DOIs match literally. Other
// reserved characters are left alone: users rely on query_string syntax.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	s := raw
	for _, syn := range fieldSynonyms {
		s = strings.ReplaceAll(s, syn.from, syn.to)
	}
	s = publisherField.ReplaceAllString(s, "publisher_obj.$1")
	return strings.ReplaceAll(s, "/", `\/`)
}
