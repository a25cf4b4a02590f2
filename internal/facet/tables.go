package facet

var regions = map[string]string{
	"APAC": "Asia and Pacific",
	"EMEA": "Europe, Middle East and Africa",
	"AMER": "Americas",
}

var registrationAgencies = map[string]string{
	"airiti":   "Airiti",
	"cnki":     "CNKI",
	"crossref": "Crossref",
	"datacite": "DataCite",
	"istic":    "ISTIC",
	"jalc":     "JaLC",
	"kisti":    "KISTI",
	"medra":    "mEDRA",
	"op":       "OP",
}

var clientTypes = map[string]string{
	"repository":   "Repository",
	"periodical":   "Periodical",
	"igsnCatalog":  "IGSN ID Catalog",
	"raidRegistry": "RAiD Registry",
}

var sources = map[string]string{
	"datacite-usage":      "DataCite Usage Stats",
	"datacite-resolution": "DataCite Resolution Stats",
	"datacite-related":    "DataCite Related Identifiers",
	"datacite-crossref":   "DataCite to Crossref",
	"datacite-kisti":      "DataCite to KISTI",
	"datacite-cnki":       "DataCite to CNKI",
	"datacite-istic":      "DataCite to ISTIC",
	"datacite-medra":      "DataCite to mEDRA",
	"datacite-op":         "DataCite to OP",
	"datacite-jalc":       "DataCite to JaLC",
	"datacite-airiti":     "DataCite to Airiti",
	"datacite-url":        "DataCite URL Links",
	"datacite-funder":     "DataCite Funder Information",
	"crossref":            "Crossref to DataCite",
}

var licenses = map[string]string{
	"afl-1.1":         "AFL-1.1",
	"apache-2.0":      "Apache-2.0",
	"bsd-2-clause":    "BSD-2-clause",
	"bsd-3-clause":    "BSD-3-clause",
	"cc-by-1.0":       "CC-BY-1.0",
	"cc-by-2.0":       "CC-BY-2.0",
	"cc-by-2.5":       "CC-BY-2.5",
	"cc-by-3.0":       "CC-BY-3.0",
	"cc-by-4.0":       "CC-BY-4.0",
	"cc-by-nc-2.0":    "CC-BY-NC-2.0",
	"cc-by-nc-2.5":    "CC-BY-NC-2.5",
	"cc-by-nc-3.0":    "CC-BY-NC-3.0",
	"cc-by-nc-4.0":    "CC-BY-NC-4.0",
	"cc-by-nc-nd-3.0": "CC-BY-NC-ND-3.0",
	"cc-by-nc-nd-4.0": "CC-BY-NC-ND-4.0",
	"cc-by-nc-sa-3.0": "CC-BY-NC-SA-3.0",
	"cc-by-nc-sa-4.0": "CC-BY-NC-SA-4.0",
	"cc-by-nd-2.0":    "CC-BY-ND-2.0",
	"cc-by-nd-3.0":    "CC-BY-ND-3.0",
	"cc-by-nd-4.0":    "CC-BY-ND-4.0",
	"cc-by-sa-4.0":    "CC-BY-SA-4.0",
	"cc-pddc":         "CC-PDDC",
	"cc0-1.0":         "CC0-1.0",
	"eupl-1.1":        "EUPL-1.1",
	"gpl-2.0+":        "GPL-2.0+",
	"gpl-3.0":         "GPL-3.0",
	"isc":             "ISC",
	"mit":             "MIT",
	"mpl-2.0":         "MPL-2.0",
	"ogl-canada-2.0":  "OGL-Canada-2.0",
}
