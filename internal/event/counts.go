package event

import (
	"sort"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/identifier"
)

// DeriveCounts recomputes the event-derived counters of doi from scratch.
func DeriveCounts(doi string, events []domain.RelationEvent) domain.Counts {
	doi = identifier.UpperDOI(doi)

	outgoing := map[string]map[string]bool{}
	incoming := map[string]map[string]bool{}
	add := func(m map[string]map[string]bool, rel, other string) {
		if other == "" {
			return
		}
		if m[rel] == nil {
			m[rel] = map[string]bool{}
		}
		m[rel][other] = true
	}

	var counts domain.Counts
	for i := range events {
		e := &events[i]
		if e.SourceDOI == doi {
			add(outgoing, e.SourceRelationTypeID, e.TargetDOI)
		}
		if e.TargetDOI != doi {
			continue
		}
		switch e.TargetRelationTypeID {
		case RelViews:
			counts.ViewCount += e.Total
		case RelDownloads:
			counts.DownloadCount += e.Total
		default:
			add(incoming, e.TargetRelationTypeID, e.SourceDOI)
		}
	}

	counts.ReferenceCount = len(outgoing[RelReferences])
	counts.CitationCount = len(incoming[RelCitations])
	counts.PartCount = len(outgoing[RelParts])
	counts.PartOfCount = len(incoming[RelPartOf])
	counts.VersionCount = len(outgoing[RelVersions])
	counts.VersionOfCount = len(incoming[RelVersionOf])
	return counts
}

// CitationsOverTime counts distinct citing records of doi per year of the
// first citation, oldest year first.
func CitationsOverTime(doi string, events []domain.RelationEvent) []domain.YearTotal {
	doi = identifier.UpperDOI(doi)

	firstSeen := map[string]int{}
	for i := range events {
		e := &events[i]
		if e.TargetDOI != doi || e.TargetRelationTypeID != RelCitations || e.SourceDOI == "" {
			continue
		}
		year := e.OccurredAt.UTC().Year()
		if prev, ok := firstSeen[e.SourceDOI]; !ok || year < prev {
			firstSeen[e.SourceDOI] = year
		}
	}

	perYear := map[int]int{}
	for _, year := range firstSeen {
		perYear[year]++
	}
	out := make([]domain.YearTotal, 0, len(perYear))
	for year, total := range perYear {
		out = append(out, domain.YearTotal{Year: year, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
