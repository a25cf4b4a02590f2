package external

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/identifier"
)

const orcidAccept = "application/vnd.orcid+json"

var orcidIDPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[0-9X]$`)

// ORCIDClient reads public person records.
type ORCIDClient struct {
	svc *service
}

// NewORCIDClient creates an ORCID public API client.
func NewORCIDClient(cfg Config, deps Deps) *ORCIDClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://pub.orcid.org/v2.1"
	}
	return &ORCIDClient{svc: newService("orcid", cfg, deps)}
}

type valueField struct {
	Value string `json:"value"`
}

type orcidPerson struct {
	Name *struct {
		GivenNames *valueField `json:"given-names"`
		FamilyName *valueField `json:"family-name"`
		CreditName *valueField `json:"credit-name"`
	} `json:"name"`
}

func (v *valueField) get() string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(v.Value)
}

// Person fetches the name of the ORCID iD in id, which may be a URL.
func (c *ORCIDClient) Person(ctx context.Context, id string) (*domain.Researcher, error) {
	orcid := identifier.ORCIDFromURL(id)
	if !orcidIDPattern.MatchString(orcid) {
		return nil, fmt.Errorf("orcid %q: %w", id, domain.ErrInvalidInput)
	}

	var person orcidPerson
	if err := c.svc.getJSON(ctx, "/"+orcid+"/person", nil, orcidAccept, &person); err != nil {
		return nil, err
	}

	res := &domain.Researcher{UID: orcid}
	if person.Name != nil {
		res.GivenNames = person.Name.GivenNames.get()
		res.FamilyName = person.Name.FamilyName.get()
		res.Name = person.Name.CreditName.get()
	}
	if res.Name == "" {
		res.Name = strings.TrimSpace(res.GivenNames + " " + res.FamilyName)
	}
	return res, nil
}
