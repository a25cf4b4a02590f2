package query

import (
	"slices"
	"strings"
)

// DefaultFacetCount is the bucket size of every terms aggregation unless
// overridden by facet_count or facet_sizes.
const DefaultFacetCount = 10

// MissingBucket is the key used for documents lacking the field.
const MissingBucket = "__missing__"

// AggKind is the search DSL aggregation type.
type AggKind string

const (
	AggTerms         AggKind = "terms"
	AggDateHistogram AggKind = "date_histogram"
	AggFilter        AggKind = "filter"
	AggSum           AggKind = "sum"
	AggValueCount    AggKind = "value_count"
	AggTopHits       AggKind = "top_hits"
)

// AggregationSpec declares one named aggregation. Only the fields relevant
// to Kind are rendered.
type AggregationSpec struct {
	Kind        AggKind
	Field       string
	Size        int
	MinDocCount int
	Missing     string
	// Include is a regex string or an explicit []string whitelist.
	Include any
	// Filter is the predicate of an AggFilter aggregation.
	Filter Predicate
	// SourceIncludes limits the _source returned by AggTopHits.
	SourceIncludes []string
	Sub            map[string]AggregationSpec
}

// Source renders the aggregation body.
func (a AggregationSpec) Source() map[string]any {
	out := map[string]any{}
	switch a.Kind {
	case AggTerms:
		body := map[string]any{"field": a.Field, "min_doc_count": a.MinDocCount}
		if a.Size > 0 {
			body["size"] = a.Size
		}
		if a.Missing != "" {
			body["missing"] = a.Missing
		}
		if a.Include != nil {
			body["include"] = a.Include
		}
		out["terms"] = body
	case AggDateHistogram:
		out["date_histogram"] = map[string]any{
			"field":         a.Field,
			"interval":      "year",
			"format":        "year",
			"order":         map[string]any{"_key": "desc"},
			"min_doc_count": a.MinDocCount,
		}
	case AggFilter:
		out["filter"] = a.Filter.Source()
	case AggSum, AggValueCount:
		out[string(a.Kind)] = map[string]any{"field": a.Field}
	case AggTopHits:
		out["top_hits"] = map[string]any{
			"_source": map[string]any{"includes": a.SourceIncludes},
			"size":    a.Size,
		}
	}
	if len(a.Sub) > 0 {
		sub := make(map[string]any, len(a.Sub))
		for name, s := range a.Sub {
			sub[name] = s.Source()
		}
		out["aggs"] = sub
	}
	return out
}

func terms(field string) AggregationSpec {
	return AggregationSpec{Kind: AggTerms, Field: field, Size: DefaultFacetCount, MinDocCount: 1}
}

func topHits(includes ...string) AggregationSpec {
	return AggregationSpec{Kind: AggTopHits, Size: 1, SourceIncludes: includes}
}

var openLicenseIDs = []string{
	"cc-by-1.0", "cc-by-2.0", "cc-by-2.5", "cc-by-3.0", "cc-by-3.0-at", "cc-by-3.0-us",
	"cc-by-4.0", "cc-pddc", "cc0-1.0", "cc-pdm-1.0",
}

var pidEntityNames = []string{
	"Dataset", "Publication", "Software", "Organization", "Funder", "Person",
	"Grant", "Sample", "Instrument", "Repository", "Project",
}

// Definitions returns a fresh copy of every known aggregation, keyed by name.
// Callers may mutate the result.
func Definitions() map[string]AggregationSpec {
	resourceTypes := terms("resource_type_id_and_name")
	resourceTypes.Missing = MissingBucket

	affiliations := terms("affiliation_id_and_name")
	affiliations.Missing = MissingBucket

	licenses := terms("rights_list.rightsIdentifier")
	licenses.Missing = MissingBucket

	authors := terms("creators.nameIdentifiers.nameIdentifier")
	authors.Include = "https?://orcid.org/.*"
	authors.Sub = map[string]AggregationSpec{
		"authors": topHits("creators.name", "creators.nameIdentifiers.nameIdentifier"),
	}

	people := terms("creators_and_contributors.nameIdentifiers.nameIdentifier")
	people.Include = "https?://orcid.org/.*"
	workTypes := terms("resource_type_id_and_name")
	workTypes.Size = 0
	people.Sub = map[string]AggregationSpec{
		"creators_and_contributors": topHits(
			"creators_and_contributors.name",
			"creators_and_contributors.nameIdentifiers.nameIdentifier",
		),
		"work_types": workTypes,
	}

	funders := terms("funding_references.funderIdentifier")
	funders.Sub = map[string]AggregationSpec{
		"funders": topHits("funding_references.funderName", "funding_references.funderIdentifier"),
	}

	pidSubjects := terms("subjects.subject")
	pidSubjects.Include = slices.Clone(pidEntityNames)

	fosSubjects := terms("subjects.subject")
	fosSubjects.Include = "FOS:.*"

	return map[string]AggregationSpec{
		"resource_types": resourceTypes,
		"clients":        terms("client_id_and_name"),
		"open_licenses": {
			Kind:   AggFilter,
			Filter: Terms{Field: "rights_list.rightsIdentifier", Values: slices.Clone(openLicenseIDs)},
			Sub:    map[string]AggregationSpec{"resource_types": terms("resource_type_id_and_name")},
		},
		"published":                 {Kind: AggDateHistogram, Field: "publication_year", MinDocCount: 1},
		"registration_agencies":     terms("agency"),
		"affiliations":              affiliations,
		"authors":                   authors,
		"creators_and_contributors": people,
		"funders":                   funders,
		"pid_entities": {
			Kind:   AggFilter,
			Filter: Term{Field: "subjects.subjectScheme", Value: pidEntityScheme},
			Sub:    map[string]AggregationSpec{"subject": pidSubjects},
		},
		"fields_of_science": {
			Kind:   AggFilter,
			Filter: Term{Field: "subjects.subjectScheme", Value: fosScheme},
			Sub:    map[string]AggregationSpec{"subject": fosSubjects},
		},
		"fields_of_science_combined":   terms("fields_of_science_combined"),
		"fields_of_science_repository": terms("fields_of_science_repository"),
		"licenses":                     licenses,
		"languages":                    terms("language"),
		"view_count":                   {Kind: AggSum, Field: "view_count"},
		"download_count":               {Kind: AggSum, Field: "download_count"},
		"citation_count":               {Kind: AggSum, Field: "citation_count"},
		"content_url_count":            {Kind: AggValueCount, Field: "content_url"},
		"client_types":                 terms("client.client_type"),
	}
}

// AggregationNames lists every known aggregation name, sorted.
func AggregationNames() []string {
	defs := Definitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type includeMode int

const (
	includeAll includeMode = iota
	includeNone
	includeNamed
)

// Include selects aggregations by name. The zero value selects all of them.
type Include struct {
	mode  includeMode
	names []string
}

// IncludeAll selects every aggregation.
func IncludeAll() Include { return Include{mode: includeAll} }

// IncludeNone selects nothing.
func IncludeNone() Include { return Include{mode: includeNone} }

// IncludeNames selects the listed names. An empty list selects nothing and
// "all" anywhere in the list selects everything.
func IncludeNames(names ...string) Include {
	var kept []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		switch n {
		case "":
			continue
		case "all":
			return IncludeAll()
		}
		kept = append(kept, n)
	}
	if len(kept) == 0 {
		return IncludeNone()
	}
	return Include{mode: includeNamed, names: kept}
}

// ParseInclude reads an include_aggregations value that was supplied:
// "all", "none", "" or a comma separated list of names.
func ParseInclude(raw string) Include {
	if strings.TrimSpace(raw) == "none" {
		return IncludeNone()
	}
	return IncludeNames(strings.Split(raw, ",")...)
}

// Select returns the aggregations chosen by inc. Unknown names are dropped.
func Select(inc Include) map[string]AggregationSpec {
	defs := Definitions()
	switch inc.mode {
	case includeAll:
		return defs
	case includeNone:
		return map[string]AggregationSpec{}
	}
	out := make(map[string]AggregationSpec, len(inc.names))
	for _, n := range inc.names {
		if spec, ok := defs[n]; ok {
			out[n] = spec
		}
	}
	return out
}

// applyFacetSizes resizes terms aggregations in place. Positive per-name
// sizes win; otherwise a facet count other than the default applies to
// every selected terms aggregation.
func applyFacetSizes(aggs map[string]AggregationSpec, facetCount int, sizes map[string]int) {
	for name, spec := range aggs {
		if spec.Kind != AggTerms {
			continue
		}
		if n, ok := sizes[name]; ok && n > 0 {
			spec.Size = n
		} else if facetCount > 0 && facetCount != DefaultFacetCount {
			spec.Size = facetCount
		} else {
			continue
		}
		aggs[name] = spec
	}
}
