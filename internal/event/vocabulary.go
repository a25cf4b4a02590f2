// Package event holds the relation vocabulary, the derived fields of relation
// events, per-record counts computed from events and the relation resolver
// over the event index.
package event

import (
	"strings"

	"github.com/datacite/lupo-sub003/internal/textcase"
)

// Relation type groups.
var (
	ReferenceTypes = []string{"cites", "is-supplemented-by", "references"}
	CitationTypes  = []string{"is-cited-by", "is-supplement-to", "is-referenced-by"}
	PartTypes      = []string{"is-part-of", "has-part"}
	VersionTypes   = []string{"has-version", "is-version-of"}
	NewTypes       = []string{"is-reply-to", "is-translation-of", "is-published-in"}
	FundingTypes   = []string{"funds", "is-funded-by"}
	UsageTypes     = []string{"unique-dataset-investigations-regular", "unique-dataset-requests-regular"}

	RelationTypes = []string{
		"compiles", "is-compiled-by",
		"documents", "is-documented-by",
		"has-metadata", "is-metadata-for",
		"is-derived-from", "is-source-of",
		"reviews", "is-reviewed-by",
		"requires", "is-required-by",
		"continues", "is-continued-by",
		"has-version", "is-version-of",
		"has-part", "is-part-of",
		"is-variant-form-of", "is-original-form-of",
		"is-identical-to",
		"obsoletes", "is-obsoleted-by",
		"is-new-version-of", "is-previous-version-of",
		"describes", "is-described-by",
	}
)

// RelatedSourceIDs are the sources whose events link records to records.
var RelatedSourceIDs = []string{"datacite-related", "datacite-crossref", "crossref"}

// OtherTypes is every relation or new type that is neither a reference,
// citation nor part relation.
var OtherTypes = otherTypes()

func otherTypes() []string {
	excluded := map[string]bool{}
	for _, group := range [][]string{ReferenceTypes, CitationTypes, PartTypes} {
		for _, rt := range group {
			excluded[rt] = true
		}
	}
	var out []string
	for _, rt := range append(append([]string{}, RelationTypes...), NewTypes...) {
		if !excluded[rt] {
			out = append(out, rt)
		}
	}
	return out
}

var inverses = map[string]string{}

func init() {
	pairs := [][2]string{
		{"cites", "is-cited-by"},
		{"references", "is-referenced-by"},
		{"is-supplemented-by", "is-supplement-to"},
		{"compiles", "is-compiled-by"},
		{"documents", "is-documented-by"},
		{"has-metadata", "is-metadata-for"},
		{"is-derived-from", "is-source-of"},
		{"reviews", "is-reviewed-by"},
		{"requires", "is-required-by"},
		{"continues", "is-continued-by"},
		{"has-version", "is-version-of"},
		{"has-part", "is-part-of"},
		{"is-variant-form-of", "is-original-form-of"},
		{"obsoletes", "is-obsoleted-by"},
		{"is-new-version-of", "is-previous-version-of"},
		{"describes", "is-described-by"},
		{"funds", "is-funded-by"},
		{"is-reply-to", "has-reply"},
		{"is-translation-of", "has-translation"},
		{"is-identical-to", "is-identical-to"},
	}
	for _, p := range pairs {
		inverses[p[0]] = p[1]
		inverses[p[1]] = p[0]
	}
}

// synonyms maps legacy spellings onto the canonical relation type.
var synonyms = map[string]string{
	"is-coutinued-by":    "is-continued-by",
	"is-variant-from-of": "is-variant-form-of",
	"is-obsolete-by":     "is-obsoleted-by",
	"is-funder-of":       "funds",
	"has-funder":         "is-funded-by",
}

// Canonical returns the dash-case form of a relation type, accepting
// "IsCitedBy", "isCitedBy", "is_cited_by" and legacy spellings.
func Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	rt := textcase.Dasherize(textcase.Underscore(raw))
	if s, ok := synonyms[rt]; ok {
		return s
	}
	return rt
}

// Inverse returns the relation type seen from the other end.
func Inverse(relationType string) (string, bool) {
	inv, ok := inverses[Canonical(relationType)]
	return inv, ok
}

// Known reports whether relationType belongs to the vocabulary.
func Known(relationType string) bool {
	rt := Canonical(relationType)
	if _, ok := inverses[rt]; ok {
		return true
	}
	for _, group := range [][]string{NewTypes, UsageTypes} {
		for _, t := range group {
			if t == rt {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
