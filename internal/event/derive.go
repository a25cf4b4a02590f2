package event

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/identifier"
)

// DefaultLicense is applied to events that carry none.
const DefaultLicense = "https://creativecommons.org/publicdomain/zero/1.0/"

const creativeWork = "CreativeWork"

// Source and target relation names used for counting.
const (
	RelReferences = "references"
	RelCitations  = "citations"
	RelViews      = "views"
	RelDownloads  = "downloads"
	RelVersions   = "versions"
	RelVersionOf  = "version_of"
	RelParts      = "parts"
	RelPartOf     = "part_of"
)

// ApplyDefaults fills the fields every stored event must carry and derives
// the source/target fields. Re-applying it is a no-op.
func ApplyDefaults(e *domain.RelationEvent, now time.Time) {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	e.SubjID = normalizeID(e.SubjID)
	e.ObjID = normalizeID(e.ObjID)
	if e.Total == 0 {
		e.Total = 1
	}
	e.RelationTypeID = Canonical(e.RelationTypeID)
	if e.RelationTypeID == "" {
		e.RelationTypeID = RelReferences
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now.UTC()
	}
	if e.License == "" {
		e.License = DefaultLicense
	}
	SetSourceAndTarget(e)
	e.CitationType = CitationType(e.SubjType(), e.ObjType())
}

func normalizeID(id string) string {
	if doi := identifier.NormalizeDOI(id); doi != "" {
		return doi
	}
	return id
}

// SetSourceAndTarget orients the event so that source_doi is the citing,
// versioned or containing record.
func SetSourceAndTarget(e *domain.RelationEvent) {
	if e.SubjID == "" || e.ObjID == "" {
		return
	}
	subj := identifier.UpperDOI(e.SubjID)
	obj := identifier.UpperDOI(e.ObjID)

	set := func(source, target, sourceRel, targetRel string) {
		e.SourceDOI, e.TargetDOI = source, target
		e.SourceRelationTypeID, e.TargetRelationTypeID = sourceRel, targetRel
	}

	switch rt := e.RelationTypeID; {
	case contains(ReferenceTypes, rt):
		set(subj, obj, RelReferences, RelCitations)
	case contains(CitationTypes, rt):
		set(obj, subj, RelReferences, RelCitations)
	case rt == "unique-dataset-investigations-regular":
		set("", obj, "", RelViews)
	case rt == "unique-dataset-requests-regular":
		set("", obj, "", RelDownloads)
	case rt == "has-version":
		set(subj, obj, RelVersions, RelVersionOf)
	case rt == "is-version-of":
		set(obj, subj, RelVersions, RelVersionOf)
	case rt == "has-part":
		set(subj, obj, RelParts, RelPartOf)
	case rt == "is-part-of":
		set(obj, subj, RelParts, RelPartOf)
	}
}

// CitationType is the sorted "-" join of two schema.org types, or "" when
// either is blank or CreativeWork.
func CitationType(a, b string) string {
	if a == "" || b == "" || a == creativeWork || b == creativeWork {
		return ""
	}
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "-")
}

// CitationID identifies an unordered subject/object pair.
func CitationID(e *domain.RelationEvent) string {
	pair := []string{e.SubjID, e.ObjID}
	sort.Strings(pair)
	return strings.Join(pair, "-")
}

// Document is the event as stored in the event index.
type Document struct {
	*domain.RelationEvent
	DOI        []string `json:"doi"`
	Prefix     []string `json:"prefix"`
	CitationID string   `json:"citation_id"`
	YearMonth  string   `json:"year_month"`
}

// NewDocument builds the index document of e.
func NewDocument(e *domain.RelationEvent) Document {
	doc := Document{
		RelationEvent: e,
		CitationID:    CitationID(e),
		YearMonth:     e.OccurredAt.UTC().Format("2006-01"),
	}
	for _, doi := range []string{e.SourceDOI, e.TargetDOI} {
		if doi == "" || contains(doc.DOI, doi) {
			continue
		}
		doc.DOI = append(doc.DOI, doi)
		if p := identifier.Prefix(doi); p != "" && !contains(doc.Prefix, p) {
			doc.Prefix = append(doc.Prefix, p)
		}
	}
	return doc
}
