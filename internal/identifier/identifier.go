// Package identifier normalizes DOIs, ORCID iDs and ROR ids into the forms
// stored in the search index.
package identifier

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	doiPattern    = regexp.MustCompile(`^(?:(?:http|https)://(?:dx\.)?(?:doi\.org|handle\.test\.datacite\.org)/)?(?:doi:)?(10\.\d{4,5}/.+)$`)
	prefixPattern = regexp.MustCompile(`^(?:(?:http|https)://(?:dx\.)?(?:doi\.org|handle\.test\.datacite\.org)/)?(?:doi:)?(10\.\d{4,5})(?:/.*)?$`)
	orcidPattern  = regexp.MustCompile(`^(?:(?:http|https)://)?(?:orcid\.org/)?(.+)$`)
	rorPattern    = regexp.MustCompile(`^(?:(?:http|https)://)?(?:ror\.org/)?(.+)$`)
)

// zero-width space, seen in pasted identifiers
const zwsp = "\u200b"

// DOIFromURL returns the lowercased DOI path of a DOI, doi: URI or resolver
// URL. It returns "" when raw is not a DOI.
func DOIFromURL(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, zwsp, ""))
	m := doiPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	doi := m[1]
	if unescaped, err := url.PathUnescape(doi); err == nil {
		doi = unescaped
	}
	return strings.ToLower(doi)
}

// NormalizeDOI returns the canonical https://doi.org/ form, or "".
func NormalizeDOI(raw string) string {
	doi := DOIFromURL(raw)
	if doi == "" {
		return ""
	}
	return "https://doi.org/" + doi
}

// UpperDOI is the stored form used in the doi keyword field.
func UpperDOI(raw string) string {
	return strings.ToUpper(DOIFromURL(raw))
}

// Prefix returns the 10.xxxx registrant prefix of raw, or "".
func Prefix(raw string) string {
	m := prefixPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	return m[1]
}

// ORCIDFromURL strips scheme and host from an ORCID iD.
func ORCIDFromURL(raw string) string {
	m := orcidPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	return m[1]
}

// ORCIDURL returns https://orcid.org/<id>, or "" for blank input.
func ORCIDURL(raw string) string {
	id := ORCIDFromURL(raw)
	if id == "" {
		return ""
	}
	return "https://orcid.org/" + id
}

// RORFromURL returns the "ror.org/<id>" form used by organization_id.
func RORFromURL(raw string) string {
	m := rorPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	return "ror.org/" + m[1]
}

// RORURL returns https://ror.org/<id>, or "".
func RORURL(raw string) string {
	ror := RORFromURL(raw)
	if ror == "" {
		return ""
	}
	return "https://" + ror
}

// SplitList splits a comma separated parameter, trimming blanks.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
