package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/datacite/lupo-sub003/internal/identifier"
	"github.com/datacite/lupo-sub003/internal/textcase"
)

const (
	schemaVersionPrefix = "http://datacite.org/schema/kernel-"
	fosScheme           = "Fields of Science and Technology (FOS)"
	pidEntityScheme     = "PidEntity"
	fosPrefix           = "FOS: "
)

// Params is the flat option bag of a search request. Booleans arrive as
// "true"/"false"; lists as comma separated strings.
type Params map[string]string

// Get returns the value of key, or "" when the key is absent, blank or "false".
func (p Params) Get(key string) string {
	v := strings.TrimSpace(p[key])
	if v == "false" {
		return ""
	}
	return v
}

// Has reports whether key carries a usable value.
func (p Params) Has(key string) bool {
	return p.Get(key) != ""
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// countFilters maps "has any" parameters to the counter field they bound.
var countFilters = []struct{ param, field string }{
	{"has_references", "reference_count"},
	{"has_citations", "citation_count"},
	{"has_parts", "part_count"},
	{"has_part_of", "part_of_count"},
	{"has_versions", "version_count"},
	{"has_version_of", "version_of_count"},
	{"has_views", "view_count"},
	{"has_downloads", "download_count"},
}

// CompileFilters translates params into AND-ed predicates. Unknown keys and
// blank values emit nothing; compilation never fails.
func CompileFilters(p Params) []Predicate {
	var out []Predicate

	if ids := identifier.SplitList(p.Get("ids")); len(ids) > 0 {
		out = append(out, Terms{Field: "doi", Values: mapStrings(ids, strings.ToUpper)})
	}
	if v := p.Get("uid"); v != "" {
		out = append(out, Term{Field: "uid", Value: v})
	}
	if v := p.Get("resource_type_id"); v != "" {
		out = append(out, Term{Field: "resource_type_id", Value: textcase.ResourceTypeID(v)})
	}
	if v := p.Get("resource_type_general"); v != "" {
		out = append(out, Terms{Field: "types.resourceTypeGeneral", Values: identifier.SplitList(v)})
	}
	out = appendTerms(out, "types.resourceType", p.Get("resource_type"), nil)
	out = appendTerms(out, "agency", p.Get("agency"), strings.ToLower)
	out = appendTerms(out, "prefix", p.Get("prefix"), nil)
	out = appendTerms(out, "language", p.Get("language"), strings.ToLower)

	out = appendYearRange(out, "created", p.Get("created"))
	out = appendYearRange(out, "publication_year", p.Get("published"))
	out = appendYearRange(out, "registered", p.Get("registered"))

	if v := p.Get("schema_version"); v != "" {
		out = append(out, Term{Field: "schema_version", Value: schemaVersionPrefix + v})
	}
	out = appendTerms(out, "subjects.subject", p.Get("subject"), nil)
	out = appendTerms(out, "rights_list.rightsIdentifier", p.Get("license"), nil)
	if v := p.Get("source"); v != "" {
		out = append(out, Term{Field: "source", Value: v})
	}

	for _, cf := range countFilters {
		if v := p.Get(cf.param); v != "" {
			out = append(out, Range{Field: cf.field, GTE: atoi(v)})
		}
	}

	out = appendLandingPage(out, p)

	out = appendTerms(out, "aasm_state", p.Get("state"), nil)
	if v := p.Get("consortium_id"); v != "" {
		out = append(out, Term{Field: "consortium_id", Value: v, CaseInsensitive: true})
	}
	if v := p.Get("re3data_id"); v != "" {
		out = append(out, Term{Field: "client.re3data_id", Value: identifier.DOIFromURL(v)})
	}
	if v := p.Get("opendoar_id"); v != "" {
		out = append(out, Term{Field: "client.opendoar_id", Value: v})
	}
	out = appendTerms(out, "client.certificate", p.Get("certificate"), nil)
	if ids := identifier.SplitList(p.Get("user_id")); len(ids) > 0 {
		out = append(out, Terms{
			Field:  "creators.nameIdentifiers.nameIdentifier",
			Values: mapStrings(ids, identifier.ORCIDURL),
		})
	}
	if p.Has("has_person") {
		out = append(out, Term{Field: "creators.nameIdentifiers.nameIdentifierScheme", Value: "ORCID"})
	}
	if v := p.Get("client_type"); v != "" {
		out = append(out, Term{Field: "client.client_type", Value: v})
		if v == "igsnCatalog" {
			out = append(out, Term{Field: "types.resourceTypeGeneral", Value: "PhysicalObject"})
		}
	}

	if vals := identifier.SplitList(p.Get("pid_entity")); len(vals) > 0 {
		out = append(out,
			Term{Field: "subjects.subjectScheme", Value: pidEntityScheme},
			Terms{Field: "subjects.subject", Values: mapStrings(vals, textcase.Humanize)},
		)
	}
	if vals := identifier.SplitList(p.Get("field_of_science")); len(vals) > 0 {
		out = append(out,
			Term{Field: "subjects.subjectScheme", Value: fosScheme},
			Terms{Field: "subjects.subject", Values: mapStrings(vals, fosLabel)},
		)
	}
	out = appendTerms(out, "fields_of_science_repository", p.Get("field_of_science_repository"), textcase.Humanize)
	out = appendTerms(out, "fields_of_science_combined", p.Get("field_of_science_combined"), textcase.Humanize)

	return out
}

func appendLandingPage(out []Predicate, p Params) []Predicate {
	if v := p.Get("link_check_status"); v != "" {
		out = append(out, Term{Field: "landing_page.status", Value: atoi(v)})
	}
	if p.Has("link_checked") {
		out = append(out, Exists{Field: "landing_page.checked"})
	}
	if v := strings.TrimSpace(p["link_check_has_schema_org"]); v != "" {
		out = append(out, Term{Field: "landing_page.hasSchemaOrg", Value: v == "true"})
	}
	if v := strings.TrimSpace(p["link_check_body_has_pid"]); v != "" {
		out = append(out, Term{Field: "landing_page.bodyHasPid", Value: v == "true"})
	}
	if p.Has("link_check_found_schema_org_id") {
		out = append(out, Exists{Field: "landing_page.schemaOrgId"})
	}
	if p.Has("link_check_found_dc_identifier") {
		out = append(out, Exists{Field: "landing_page.dcIdentifier"})
	}
	if p.Has("link_check_found_citation_doi") {
		out = append(out, Exists{Field: "landing_page.citationDoi"})
	}
	if v := p.Get("link_check_redirect_count_gte"); v != "" {
		out = append(out, Range{Field: "landing_page.redirectCount", GTE: atoi(v)})
	}
	return out
}

func appendTerms(out []Predicate, field, raw string, fn func(string) string) []Predicate {
	vals := identifier.SplitList(raw)
	if len(vals) == 0 {
		return out
	}
	if fn != nil {
		vals = mapStrings(vals, fn)
	}
	return append(out, Terms{Field: field, Values: vals})
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// appendYearRange accepts "YYYY" or "YYYY,YYYY" and rounds both bounds to the
// year. Tokens that are not four-digit years are dropped.
func appendYearRange(out []Predicate, field, raw string) []Predicate {
	var years []string
	for _, y := range identifier.SplitList(raw) {
		if yearPattern.MatchString(y) {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return out
	}
	lo, hi := years[0], years[0]
	for _, y := range years[1:] {
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	return append(out, Range{Field: field, GTE: lo + "||/y", LTE: hi + "||/y", Format: "yyyy"})
}

func fosLabel(s string) string {
	return fosPrefix + textcase.Humanize(s)
}

func mapStrings(in []string, fn func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}

// atoi parses the leading integer of s, 0 when there is none.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && s[end] == '-') {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
