package external

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/identifier"
)

// Registration agencies as reported by doi.org.
const (
	AgencyDataCite = "DataCite"
	AgencyCrossref = "Crossref"
)

// crossrefFunderPrefix is the Crossref Funder Registry prefix; its DOIs name
// funders, not works.
const crossrefFunderPrefix = "10.13039"

// RAClient looks up the registration agency of a DOI prefix.
type RAClient struct {
	svc *service
}

// NewRAClient creates a client for the doi.org RA endpoint.
func NewRAClient(cfg Config, deps Deps) *RAClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://doi.org"
	}
	return &RAClient{svc: newService("doi_ra", cfg, deps)}
}

type raEntry struct {
	DOI    string `json:"DOI"`
	RA     string `json:"RA"`
	Status string `json:"status"`
}

// Agency returns the registration agency for doi or a bare prefix. An
// unknown prefix is domain.ErrNotFound.
func (c *RAClient) Agency(ctx context.Context, doi string) (string, error) {
	prefix := identifier.Prefix(doi)
	if prefix == "" {
		prefix = doi
	}
	if !strings.HasPrefix(prefix, "10.") {
		return "", fmt.Errorf("registration agency of %q: %w", doi, domain.ErrInvalidInput)
	}

	return cached(ctx, c.svc, "ras/"+prefix, false, func(ctx context.Context) (string, error) {
		var entries []raEntry
		if err := c.svc.getJSON(ctx, "/ra/"+url.PathEscape(prefix), nil, "", &entries); err != nil {
			return "", err
		}
		if len(entries) == 0 || entries[0].RA == "" {
			return "", fmt.Errorf("registration agency of %s: %w", prefix, domain.ErrNotFound)
		}
		return entries[0].RA, nil
	})
}

// DOIsToImport keeps the DOIs among ids that are registered with an agency
// other than DataCite, skipping Crossref Funder IDs. Unknown prefixes are
// skipped; service errors abort.
func (c *RAClient) DOIsToImport(ctx context.Context, ids ...string) ([]string, error) {
	var out []string
	for _, id := range ids {
		doi := identifier.DOIFromURL(id)
		if doi == "" {
			continue
		}
		if identifier.Prefix(doi) == crossrefFunderPrefix {
			continue
		}

		ra, err := c.Agency(ctx, doi)
		if err != nil {
			if isAbsent(err) {
				continue
			}
			return nil, err
		}
		if strings.EqualFold(ra, AgencyDataCite) {
			continue
		}
		out = append(out, doi)
	}
	return out, nil
}
