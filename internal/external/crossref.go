package external

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/identifier"
)

// CrossrefClient reads work metadata from the Crossref REST API.
type CrossrefClient struct {
	svc *service
}

// NewCrossrefClient creates a Crossref client.
func NewCrossrefClient(cfg Config, deps Deps) *CrossrefClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.crossref.org"
	}
	return &CrossrefClient{svc: newService("crossref", cfg, deps)}
}

type crossrefWork struct {
	Message struct {
		DOI    string `json:"DOI"`
		Member string `json:"member"`
		Type   string `json:"type"`
	} `json:"message"`
}

// MemberID returns the registrant id "crossref.<member>" for doi. A DOI
// Crossref does not know is domain.ErrNotFound. refresh bypasses the cache.
func (c *CrossrefClient) MemberID(ctx context.Context, doi string, refresh bool) (string, error) {
	doi = identifier.DOIFromURL(doi)
	if doi == "" {
		return "", fmt.Errorf("crossref member: %w", domain.ErrInvalidInput)
	}

	return cached(ctx, c.svc, "members_ids/"+doi, refresh, func(ctx context.Context) (string, error) {
		var work crossrefWork
		if err := c.svc.getJSON(ctx, "/works/"+url.PathEscape(doi), nil, "", &work); err != nil {
			return "", err
		}
		if work.Message.Member == "" {
			return "", fmt.Errorf("crossref member of %s: %w", doi, domain.ErrNotFound)
		}
		return "crossref." + work.Message.Member, nil
	})
}

// Exists reports whether Crossref has metadata for doi.
func (c *CrossrefClient) Exists(ctx context.Context, doi string) (bool, error) {
	_, err := c.MemberID(ctx, doi, false)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func isAbsent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput)
}
