// Package facet turns raw aggregation buckets into {id, title, count}
// facets. Every transform is a pure function of its buckets.
package facet

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/identifier"
	"github.com/datacite/lupo-sub003/internal/query"
	"github.com/datacite/lupo-sub003/internal/textcase"
)

// MaxYears is the number of years kept by ByRange.
const MaxYears = 10

const (
	otherID      = "other"
	otherTitle   = "Other"
	missingTitle = "Missing"
	fosPrefix    = "FOS: "
)

// Transform converts buckets into facets.
type Transform func([]elasticsearch.Bucket) []domain.Facet

func mapBuckets(buckets []elasticsearch.Bucket, fn func(elasticsearch.Bucket) domain.Facet) []domain.Facet {
	out := make([]domain.Facet, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, fn(b))
	}
	return out
}

func lookup(table map[string]string, key string) string {
	if title, ok := table[key]; ok {
		return title
	}
	return key
}

// ByYear truncates date keys to their year.
func ByYear(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		year := yearOf(b)
		return domain.Facet{ID: year, Title: year, Count: b.DocCount}
	})
}

// ByRange drops future years and keeps the MaxYears most recent,
// assuming buckets arrive newest first.
func ByRange(now time.Time) Transform {
	current := now.UTC().Year()
	return func(buckets []elasticsearch.Bucket) []domain.Facet {
		out := make([]domain.Facet, 0, MaxYears)
		for _, b := range buckets {
			year := yearOf(b)
			if n, err := strconv.Atoi(year); err != nil || n > current {
				continue
			}
			out = append(out, domain.Facet{ID: year, Title: year, Count: b.DocCount})
			if len(out) == MaxYears {
				break
			}
		}
		return out
	}
}

func yearOf(b elasticsearch.Bucket) string {
	s := b.KeyAsString
	if s == "" {
		s = b.Key
	}
	if len(s) > 4 {
		return s[:4]
	}
	return s
}

// ByKey titleizes the key.
func ByKey(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: b.Key, Title: textcase.Titleize(b.Key), Count: b.DocCount}
	})
}

// ByKeyRaw passes keys through unchanged.
func ByKeyRaw(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: b.Key, Title: b.Key, Count: b.DocCount}
	})
}

// ByResourceType dasherizes the key and keeps it as the title.
func ByResourceType(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: textcase.ResourceTypeID(b.Key), Title: b.Key, Count: b.DocCount}
	})
}

// BySoftware slugs the key with underscores.
func BySoftware(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: textcase.Parameterize(b.Key, "_"), Title: b.Key, Count: b.DocCount}
	})
}

// ByLicense titles SPDX identifiers.
func ByLicense(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		if b.Key == query.MissingBucket {
			return domain.Facet{ID: b.Key, Title: missingTitle, Count: b.DocCount}
		}
		return domain.Facet{ID: b.Key, Title: lookup(licenses, b.Key), Count: b.DocCount}
	})
}

// ByCombinedKey splits "id:title" keys on the first colon.
func ByCombinedKey(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		if b.Key == query.MissingBucket {
			return domain.Facet{ID: b.Key, Title: missingTitle, Count: b.DocCount}
		}
		id, title, _ := strings.Cut(b.Key, ":")
		return domain.Facet{ID: id, Title: title, Count: b.DocCount}
	})
}

// ByRegion lowercases region codes.
func ByRegion(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: strings.ToLower(b.Key), Title: lookup(regions, b.Key), Count: b.DocCount}
	})
}

// ByFOS strips the "FOS: " prefix and slugs the remainder.
func ByFOS(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		title := strings.ReplaceAll(b.Key, fosPrefix, "")
		return domain.Facet{ID: textcase.Parameterize(title, "_"), Title: title, Count: b.DocCount}
	})
}

// ByRegistrationAgency titles agency keys. It stays separate from
// BySoftware: agency ids are kept verbatim, software ids are slugged.
func ByRegistrationAgency(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: b.Key, Title: lookup(registrationAgencies, b.Key), Count: b.DocCount}
	})
}

// ByClientType titles repository types.
func ByClientType(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		title, ok := clientTypes[b.Key]
		if !ok {
			title = textcase.Titleize(b.Key)
		}
		return domain.Facet{ID: b.Key, Title: title, Count: b.DocCount}
	})
}

// BySource titles event source ids.
func BySource(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: b.Key, Title: lookup(sources, b.Key), Count: b.DocCount}
	})
}

var englishLanguages = display.English.Languages()

// ByLanguage titles ISO 639 codes with the first word of their English name.
func ByLanguage(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		return domain.Facet{ID: b.Key, Title: languageName(b.Key), Count: b.DocCount}
	})
}

func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := englishLanguages.Name(tag)
	if name == "" {
		return code
	}
	if first, _, ok := strings.Cut(name, " "); ok {
		return first
	}
	return name
}

// AddOther appends the long tail excluded by the bucket size cutoff.
func AddOther(facets []domain.Facet, sumOtherDocCount int64) []domain.Facet {
	if sumOtherDocCount <= 0 {
		return facets
	}
	return append(facets, domain.Facet{ID: otherID, Title: otherTitle, Count: sumOtherDocCount})
}

// AggregateCount sums the metric sub-aggregation of every bucket.
func AggregateCount(buckets []elasticsearch.Bucket, metric string) int64 {
	var total int64
	for _, b := range buckets {
		agg, ok := b.Sub.Get(metric)
		if !ok || agg.Value == nil {
			continue
		}
		total += int64(*agg.Value)
	}
	return total
}

type person struct {
	Name            string `json:"name"`
	NameIdentifiers []struct {
		NameIdentifier string `json:"nameIdentifier"`
	} `json:"nameIdentifiers"`
}

// ByPeople titles ORCID buckets with the matching person's name, read from
// the top_hits sub-aggregation hitsAgg whose documents carry field.
func ByPeople(hitsAgg, field string) Transform {
	return func(buckets []elasticsearch.Bucket) []domain.Facet {
		return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
			title := b.Key
			if name := personName(b, hitsAgg, field); name != "" {
				title = name
			}
			return domain.Facet{ID: identifier.ORCIDFromURL(b.Key), Title: title, Count: b.DocCount}
		})
	}
}

// ByAuthors titles creator ORCID buckets.
func ByAuthors(buckets []elasticsearch.Bucket) []domain.Facet {
	return ByPeople("authors", "creators")(buckets)
}

// ByCreatorsAndContributors titles creator and contributor ORCID buckets.
func ByCreatorsAndContributors(buckets []elasticsearch.Bucket) []domain.Facet {
	return ByPeople("creators_and_contributors", "creators_and_contributors")(buckets)
}

func personName(b elasticsearch.Bucket, hitsAgg, field string) string {
	agg, ok := b.Sub.Get(hitsAgg)
	if !ok {
		return ""
	}
	for _, hit := range agg.Hits {
		var source map[string]json.RawMessage
		if json.Unmarshal(hit.Source, &source) != nil {
			continue
		}
		var people []person
		if json.Unmarshal(source[field], &people) != nil {
			continue
		}
		for _, p := range people {
			for _, ni := range p.NameIdentifiers {
				if ni.NameIdentifier == b.Key {
					return p.Name
				}
			}
		}
	}
	return ""
}

// ByFunders titles funder identifier buckets with the funder name.
func ByFunders(buckets []elasticsearch.Bucket) []domain.Facet {
	return mapBuckets(buckets, func(b elasticsearch.Bucket) domain.Facet {
		title := b.Key
		if name := funderName(b); name != "" {
			title = name
		}
		return domain.Facet{ID: b.Key, Title: title, Count: b.DocCount}
	})
}

func funderName(b elasticsearch.Bucket) string {
	agg, ok := b.Sub.Get("funders")
	if !ok {
		return ""
	}
	for _, hit := range agg.Hits {
		var source struct {
			FundingReferences []domain.FundingReference `json:"funding_references"`
		}
		if json.Unmarshal(hit.Source, &source) != nil {
			continue
		}
		for _, ref := range source.FundingReferences {
			if ref.FunderIdentifier == b.Key {
				return ref.FunderName
			}
		}
	}
	return ""
}

// ByPersonWorkTypes pairs each person facet with its work type breakdown.
func ByPersonWorkTypes(buckets []elasticsearch.Bucket) []domain.MultiFacet {
	people := ByCreatorsAndContributors(buckets)
	out := make([]domain.MultiFacet, 0, len(buckets))
	for i, b := range buckets {
		inner := []domain.Facet{}
		if agg, ok := b.Sub.Get("work_types"); ok {
			inner = ByCombinedKey(agg.Buckets)
		}
		out = append(out, domain.MultiFacet{Facet: people[i], Inner: inner})
	}
	return out
}
