package connection

import (
	"sort"
	"time"

	"github.com/datacite/lupo-sub003/internal/facet"
)

// FacetField is one facet exposed by a connection.
type FacetField struct {
	// Path locates the aggregation, e.g. {"fields_of_science", "subject"}.
	Path      []string
	Transform func(now time.Time) facet.Transform
	// AddOther appends the bucket tail as an "other" facet.
	AddOther bool
}

// Aggregation is the top-level aggregation the field reads.
func (f FacetField) Aggregation() string { return f.Path[0] }

func static(t facet.Transform) func(time.Time) facet.Transform {
	return func(time.Time) facet.Transform { return t }
}

var facetFields = map[string]FacetField{
	"published":                    {Path: []string{"published"}, Transform: facet.ByRange},
	"years":                        {Path: []string{"published"}, Transform: static(facet.ByYear)},
	"resource_types":               {Path: []string{"resource_types"}, Transform: static(facet.ByCombinedKey)},
	"open_license_resource_types":  {Path: []string{"open_licenses", "resource_types"}, Transform: static(facet.ByCombinedKey)},
	"registration_agencies":        {Path: []string{"registration_agencies"}, Transform: static(facet.ByRegistrationAgency)},
	"repositories":                 {Path: []string{"clients"}, Transform: static(facet.ByCombinedKey)},
	"affiliations":                 {Path: []string{"affiliations"}, Transform: static(facet.ByCombinedKey), AddOther: true},
	"authors":                      {Path: []string{"authors"}, Transform: static(facet.ByAuthors)},
	"creators_and_contributors":    {Path: []string{"creators_and_contributors"}, Transform: static(facet.ByCreatorsAndContributors)},
	"funders":                      {Path: []string{"funders"}, Transform: static(facet.ByFunders)},
	"fields_of_science":            {Path: []string{"fields_of_science", "subject"}, Transform: static(facet.ByFOS)},
	"fields_of_science_combined":   {Path: []string{"fields_of_science_combined"}, Transform: static(facet.ByFOS)},
	"fields_of_science_repository": {Path: []string{"fields_of_science_repository"}, Transform: static(facet.ByFOS)},
	"pid_entities":                 {Path: []string{"pid_entities", "subject"}, Transform: static(facet.ByKeyRaw)},
	"licenses":                     {Path: []string{"licenses"}, Transform: static(facet.ByLicense), AddOther: true},
	"languages":                    {Path: []string{"languages"}, Transform: static(facet.ByLanguage)},
	"repository_types":             {Path: []string{"client_types"}, Transform: static(facet.ByClientType)},
}

// multiLevelField is served by Connection.MultiFacet.
const multiLevelField = "person_to_work_types_multilevel"

// Entity describes one connection: the resource type it is pinned to and
// the facets it exposes.
type Entity struct {
	Name             string
	ResourceTypeID   string
	ResourceType     string
	SchemaOrgType    string
	Facets           []string
	ConnectionCounts bool
}

var (
	workFacets = []string{
		"published", "resource_types", "open_license_resource_types", "registration_agencies",
		"repositories", "affiliations", "authors", "creators_and_contributors", "funders",
		"fields_of_science", "fields_of_science_combined", "fields_of_science_repository",
		"pid_entities", "licenses", "languages", "repository_types", multiLevelField,
	}
	standardFacets = []string{
		"published", "registration_agencies", "repositories", "affiliations",
		"fields_of_science", "licenses", "languages",
	}
	softwareFacets = []string{"years", "registration_agencies", "repositories", "affiliations", "fields_of_science"}
	imageFacets    = []string{"published", "registration_agencies", "repositories", "affiliations"}
)

var entities = map[string]Entity{}

func init() {
	for _, e := range []Entity{
		{Name: "works", Facets: workFacets},
		{Name: "datasets", ResourceTypeID: "Dataset", SchemaOrgType: "Dataset", Facets: standardFacets, ConnectionCounts: true},
		{Name: "publications", ResourceTypeID: "Text", SchemaOrgType: "ScholarlyArticle", Facets: standardFacets, ConnectionCounts: true},
		{Name: "software", ResourceTypeID: "Software", SchemaOrgType: "SoftwareSourceCode", Facets: softwareFacets, ConnectionCounts: true},
		{Name: "services", ResourceTypeID: "Service", Facets: softwareFacets},
		{Name: "audiovisuals", ResourceTypeID: "Audiovisual", Facets: imageFacets},
		{Name: "collections", ResourceTypeID: "Collection", Facets: []string{"published", "repositories", "affiliations", "licenses", "languages"}},
		{Name: "data_papers", ResourceTypeID: "DataPaper", Facets: standardFacets},
		{Name: "events", ResourceTypeID: "Event", Facets: imageFacets},
		{Name: "images", ResourceTypeID: "Image", Facets: imageFacets},
		{Name: "interactive_resources", ResourceTypeID: "InteractiveResource", Facets: imageFacets},
		{Name: "models", ResourceTypeID: "Model", Facets: imageFacets},
		{Name: "physical_objects", ResourceTypeID: "PhysicalObject", Facets: []string{"published", "registration_agencies", "repositories", "affiliations", "languages"}},
		{Name: "sounds", ResourceTypeID: "Sound", Facets: imageFacets},
		{Name: "workflows", ResourceTypeID: "Workflow", Facets: imageFacets},
		{Name: "dissertations", ResourceTypeID: "Text", ResourceType: "Dissertation,Thesis", Facets: standardFacets},
		{Name: "data_management_plans", ResourceTypeID: "Text", ResourceType: "Data Management Plan", Facets: standardFacets},
		{Name: "preprints", ResourceTypeID: "Text", ResourceType: "PostedContent,Preprint", Facets: standardFacets},
		{Name: "peer_reviews", ResourceTypeID: "Text", ResourceType: "Peer review", Facets: standardFacets},
		{Name: "conference_papers", ResourceTypeID: "Text", ResourceType: "Conference paper", Facets: standardFacets},
		{Name: "book_chapters", ResourceTypeID: "Text", ResourceType: "BookChapter", Facets: []string{"published", "registration_agencies", "repositories", "affiliations", "licenses"}},
		{Name: "books", ResourceTypeID: "Text", ResourceType: "Book", Facets: standardFacets},
		{Name: "journal_articles", ResourceTypeID: "Text", ResourceType: "JournalArticle", Facets: standardFacets},
		{Name: "instruments", ResourceTypeID: "Other", ResourceType: "Instrument", Facets: imageFacets},
		{Name: "others", ResourceTypeID: "Other", Facets: imageFacets},
	} {
		entities[e.Name] = e
	}
}

// Lookup returns the entity called name.
func Lookup(name string) (Entity, bool) {
	e, ok := entities[name]
	return e, ok
}

// Names lists every connection name, sorted.
func Names() []string {
	out := make([]string, 0, len(entities))
	for name := range entities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasFacet reports whether the entity exposes field.
func (e Entity) HasFacet(field string) bool {
	for _, f := range e.Facets {
		if f == field {
			return true
		}
	}
	return false
}

// Aggregations lists the aggregations the entity's facets read.
func (e Entity) Aggregations() []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, f := range e.Facets {
		if f == multiLevelField {
			add("creators_and_contributors")
			continue
		}
		add(facetFields[f].Aggregation())
	}
	if e.Name == "works" {
		add("open_licenses")
		add("content_url_count")
	}
	return out
}
