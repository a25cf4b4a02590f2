package worker

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/identifier"
	"github.com/datacite/lupo-sub003/internal/job"
)

const (
	schemaNamespacePrefix = "http://datacite.org/schema/kernel-"

	crossrefCitationsClient = "crossref.citations"
	crossrefProvider        = "crossref"
	crossrefAgency          = "crossref"
)

// Affiliation rewrites the stored metadata of each target DOI with
// affiliations in object form and reindexes it. Bare-name affiliations are
// converted when the record is decoded.
func (h *Handlers) Affiliation(ctx context.Context, _ *job.Job, args job.Args) error {
	log := h.logFor(ctx)
	for _, doi := range targets(args) {
		rec, err := h.deps.DOIs.Get(ctx, doi)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("DOI not found", logger.DOI(doi))
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", doi, err)
		}
		if err = h.deps.DOIs.UpdateMetadata(ctx, rec); err != nil {
			return fmt.Errorf("update affiliations of %s: %w", doi, err)
		}
		if err = h.indexDOI(ctx, rec.UID); err != nil {
			return err
		}
	}
	return nil
}

// Transfer moves DOIs to the client named by the client_target_id option
// and reindexes them. Targets are DOIs; with the source_client_id option
// every DOI of that client is moved instead.
func (h *Handlers) Transfer(ctx context.Context, _ *job.Job, args job.Args) error {
	clientID := args.String("client_target_id")
	if clientID == "" {
		return fmt.Errorf("%w: transfer needs client_target_id", domain.ErrInvalidInput)
	}

	dois := targets(args)
	if source := args.String("source_client_id"); source != "" {
		var err error
		if dois, err = h.deps.DOIs.ListDOIsByClient(ctx, source); err != nil {
			return err
		}
	}

	log := h.logFor(ctx)
	moved := 0
	for _, doi := range dois {
		err := h.deps.DOIs.UpdateClient(ctx, doi, clientID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("DOI not found for transfer", logger.DOI(doi))
			continue
		}
		if err != nil {
			return fmt.Errorf("transfer %s: %w", doi, err)
		}
		if err = h.indexDOI(ctx, doi); err != nil {
			return err
		}
		moved++
	}

	log.Info("Transferred DOIs",
		logger.String("client_id", clientID),
		logger.Int("count", moved),
	)
	return nil
}

// TransferClient moves every DOI of the target client to the provider
// named by the provider_target_id option and queues their reindexing.
func (h *Handlers) TransferClient(ctx context.Context, _ *job.Job, args job.Args) error {
	clientID := args.Target
	providerID := args.String("provider_target_id")
	if clientID == "" || providerID == "" {
		return fmt.Errorf("%w: transfer_client needs a client and provider_target_id", domain.ErrInvalidInput)
	}

	updated, err := h.deps.DOIs.UpdateProvider(ctx, clientID, providerID)
	if err != nil {
		return err
	}
	if updated == 0 {
		return nil
	}

	dois, err := h.deps.DOIs.ListDOIsByClient(ctx, clientID)
	if err != nil {
		return err
	}
	for start := 0; start < len(dois); start += int(h.cfg.BatchSize) {
		end := min(start+int(h.cfg.BatchSize), len(dois))
		if err = h.enqueue(ctx, OpIndex, job.Args{Targets: dois[start:end]}); err != nil {
			return fmt.Errorf("enqueue reindex of %s: %w", clientID, err)
		}
	}

	h.logFor(ctx).Info("Transferred client",
		logger.String("client_id", clientID),
		logger.String("provider_id", providerID),
		logger.Int64("dois", updated),
	)
	return nil
}

// SchemaVersion sets the schema version of each target DOI that has none
// from the namespace of its stored XML.
func (h *Handlers) SchemaVersion(ctx context.Context, _ *job.Job, args job.Args) error {
	log := h.logFor(ctx)
	for _, doi := range targets(args) {
		rec, err := h.deps.DOIs.Get(ctx, doi)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("DOI not found", logger.DOI(doi))
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", doi, err)
		}
		if rec.SchemaVersion != "" {
			continue
		}

		raw, err := h.deps.DOIs.XML(ctx, doi)
		if err != nil {
			return fmt.Errorf("load xml of %s: %w", doi, err)
		}
		version := SchemaNamespace(raw)
		if version == "" {
			log.Error("No DataCite schema namespace in metadata", logger.DOI(doi))
			continue
		}

		if err = h.deps.DOIs.UpdateSchemaVersion(ctx, doi, version); err != nil {
			return fmt.Errorf("update schema version of %s: %w", doi, err)
		}
		log.Debug("Set schema version", logger.DOI(doi), logger.String("schema_version", version))
	}
	return nil
}

// SchemaNamespace returns the DataCite kernel namespace of the root element
// of doc, or "" when doc is not DataCite XML.
func SchemaNamespace(doc []byte) string {
	if len(bytes.TrimSpace(doc)) == 0 {
		return ""
	}
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if start, ok := tok.(xml.StartElement); ok {
			if strings.HasPrefix(start.Name.Space, schemaNamespacePrefix) {
				return start.Name.Space
			}
			return ""
		}
	}
}

// CrossrefDOI registers a Crossref DOI referenced by an event as a
// placeholder record under the crossref.citations client and queues its
// indexing. DOIs already present, or unknown to Crossref, are skipped.
func (h *Handlers) CrossrefDOI(ctx context.Context, _ *job.Job, args job.Args) error {
	log := h.logFor(ctx)
	for _, id := range targets(args) {
		doi := identifier.DOIFromURL(id)
		if doi == "" {
			log.Warn("Not a DOI", logger.String("id", id))
			continue
		}

		_, err := h.deps.DOIs.Get(ctx, doi)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("load %s: %w", doi, err)
		}

		if _, err = h.deps.Members.MemberID(ctx, doi, args.Refresh()); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Info("DOI unknown to Crossref", logger.DOI(doi))
				continue
			}
			return err
		}

		rec := &domain.Record{
			DOI:        doi,
			ClientID:   crossrefCitationsClient,
			ProviderID: crossrefProvider,
			Agency:     crossrefAgency,
			State:      "findable",
		}
		created, err := h.deps.DOIs.Create(ctx, rec)
		if err != nil {
			return err
		}
		if !created {
			continue
		}
		if err = h.enqueue(ctx, OpIndex, job.Args{Target: doi}); err != nil {
			return fmt.Errorf("enqueue index of %s: %w", doi, err)
		}
		log.Info("Imported Crossref DOI", logger.DOI(doi))
	}
	return nil
}
