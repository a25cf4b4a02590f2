package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// NameIdentifier is an ORCID, ROR or other identifier attached to a person
// or organization.
type NameIdentifier struct {
	NameIdentifier       string `json:"nameIdentifier"`
	NameIdentifierScheme string `json:"nameIdentifierScheme,omitempty"`
	SchemeURI            string `json:"schemeUri,omitempty"`
}

// Affiliation is an institutional affiliation of a creator.
type Affiliation struct {
	Name                        string `json:"name"`
	AffiliationIdentifier       string `json:"affiliationIdentifier,omitempty"`
	AffiliationIdentifierScheme string `json:"affiliationIdentifierScheme,omitempty"`
}

// Affiliations decodes the shapes found in stored metadata: a bare name,
// a single object, or a list mixing both.
type Affiliations []Affiliation

func (a *Affiliations) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}

	var items []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
	} else {
		items = []json.RawMessage{data}
	}

	out := make(Affiliations, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			if name != "" {
				out = append(out, Affiliation{Name: name})
			}
			continue
		}
		var aff Affiliation
		if err := json.Unmarshal(item, &aff); err != nil {
			return err
		}
		out = append(out, aff)
	}
	*a = out
	return nil
}

// Person is a creator or contributor.
type Person struct {
	Name            string           `json:"name"`
	NameType        string           `json:"nameType,omitempty"`
	GivenName       string           `json:"givenName,omitempty"`
	FamilyName      string           `json:"familyName,omitempty"`
	NameIdentifiers []NameIdentifier `json:"nameIdentifiers,omitempty"`
	Affiliation     Affiliations     `json:"affiliation,omitempty"`
	ContributorType string           `json:"contributorType,omitempty"`
}

// ORCIDs returns every ORCID URL attached to p.
func (p Person) ORCIDs() []string {
	var out []string
	for _, ni := range p.NameIdentifiers {
		if ni.NameIdentifierScheme == "ORCID" {
			out = append(out, ni.NameIdentifier)
		}
	}
	return out
}

// Subject is a keyword, optionally from a controlled scheme.
type Subject struct {
	Subject       string `json:"subject"`
	SubjectScheme string `json:"subjectScheme,omitempty"`
	SchemeURI     string `json:"schemeUri,omitempty"`
}

// Rights is one entry of the rights list.
type Rights struct {
	Rights           string `json:"rights,omitempty"`
	RightsURI        string `json:"rightsUri,omitempty"`
	RightsIdentifier string `json:"rightsIdentifier,omitempty"`
}

// FundingReference names a funder and optionally an award.
type FundingReference struct {
	FunderName           string `json:"funderName"`
	FunderIdentifier     string `json:"funderIdentifier,omitempty"`
	FunderIdentifierType string `json:"funderIdentifierType,omitempty"`
	AwardNumber          string `json:"awardNumber,omitempty"`
	AwardTitle           string `json:"awardTitle,omitempty"`
}

// Types classifies a record.
type Types struct {
	ResourceTypeGeneral string `json:"resourceTypeGeneral"`
	ResourceType        string `json:"resourceType,omitempty"`
	SchemaOrg           string `json:"schemaOrg,omitempty"`
}

// LandingPage holds the result of the last landing page check.
type LandingPage struct {
	Checked       *time.Time `json:"checked,omitempty"`
	Status        int        `json:"status,omitempty"`
	URL           string     `json:"url,omitempty"`
	ContentType   string     `json:"contentType,omitempty"`
	Error         string     `json:"error,omitempty"`
	RedirectCount int        `json:"redirectCount,omitempty"`
	HasSchemaOrg  bool       `json:"hasSchemaOrg"`
	SchemaOrgID   string     `json:"schemaOrgId,omitempty"`
	DCIdentifier  string     `json:"dcIdentifier,omitempty"`
	CitationDOI   string     `json:"citationDoi,omitempty"`
	BodyHasPID    bool       `json:"bodyHasPid"`
}

// Title is one title of a record.
type Title struct {
	Title     string `json:"title"`
	TitleType string `json:"titleType,omitempty"`
	Lang      string `json:"lang,omitempty"`
}

// Description is one description of a record.
type Description struct {
	Description     string `json:"description"`
	DescriptionType string `json:"descriptionType,omitempty"`
}

// RelatedIdentifier links a record to another identifier.
type RelatedIdentifier struct {
	RelatedIdentifier     string `json:"relatedIdentifier"`
	RelatedIdentifierType string `json:"relatedIdentifierType"`
	RelationType          string `json:"relationType"`
}

// Counts are derived from relation events. All values are non-negative.
type Counts struct {
	ReferenceCount int `json:"reference_count"`
	CitationCount  int `json:"citation_count"`
	PartCount      int `json:"part_count"`
	PartOfCount    int `json:"part_of_count"`
	VersionCount   int `json:"version_count"`
	VersionOfCount int `json:"version_of_count"`
	ViewCount      int `json:"view_count"`
	DownloadCount  int `json:"download_count"`
}

// Client is the repository a record belongs to.
type Client struct {
	ID          string   `db:"symbol"          json:"id"`
	Name        string   `db:"name"            json:"name"`
	ClientType  string   `db:"client_type"     json:"client_type"`
	Re3dataID   string   `db:"re3data_id"      json:"re3data_id,omitempty"`
	OpendoarID  string   `db:"opendoar_id"     json:"opendoar_id,omitempty"`
	Certificate []string `db:"-"               json:"certificate,omitempty"`
	ProviderID  string   `db:"provider_symbol" json:"provider_id"`
}

// Record is a DOI-bearing work as stored in the search index. The JSON
// field names are the index document field names.
type Record struct {
	ID                 int64               `json:"-"`
	UID                string              `json:"uid"`
	DOI                string              `json:"doi"`
	Identifier         string              `json:"identifier"`
	URL                string              `json:"url,omitempty"`
	Prefix             string              `json:"prefix"`
	Suffix             string              `json:"suffix"`
	ClientID           string              `json:"client_id"`
	ProviderID         string              `json:"provider_id"`
	ConsortiumID       string              `json:"consortium_id,omitempty"`
	Agency             string              `json:"agency"`
	State              string              `json:"aasm_state"`
	SchemaVersion      string              `json:"schema_version,omitempty"`
	Source             string              `json:"source,omitempty"`
	Types              Types               `json:"types"`
	ResourceTypeID     string              `json:"resource_type_id"`
	Titles             []Title             `json:"titles"`
	Descriptions       []Description       `json:"descriptions,omitempty"`
	Publisher          string              `json:"publisher,omitempty"`
	PublicationYear    int                 `json:"publication_year,omitempty"`
	Language           string              `json:"language,omitempty"`
	Version            string              `json:"version_info,omitempty"`
	Creators           []Person            `json:"creators"`
	Contributors       []Person            `json:"contributors,omitempty"`
	Subjects           []Subject           `json:"subjects,omitempty"`
	RightsList         []Rights            `json:"rights_list,omitempty"`
	FundingReferences  []FundingReference  `json:"funding_references,omitempty"`
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers,omitempty"`
	ContentURL         []string            `json:"content_url,omitempty"`
	LandingPage        *LandingPage        `json:"landing_page,omitempty"`
	Client             *Client             `json:"client,omitempty"`
	FunderRORs         []string            `json:"funder_rors,omitempty"`
	FunderParentRORs   []string            `json:"funder_parent_rors,omitempty"`
	AffiliationID      []string            `json:"affiliation_id,omitempty"`
	Counts
	Created    time.Time  `json:"created"`
	Registered *time.Time `json:"registered,omitempty"`
	Published  *time.Time `json:"published,omitempty"`
	Updated    time.Time  `json:"updated"`
}

// ORCIDs returns the distinct ORCID URLs of the record's creators.
func (r *Record) ORCIDs() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range r.Creators {
		for _, id := range c.ORCIDs() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
