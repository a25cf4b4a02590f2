package worker

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/external"
	"github.com/datacite/lupo-sub003/internal/identifier"
	"github.com/datacite/lupo-sub003/internal/job"
)

// Event sources whose Crossref side carries a registrant id.
const (
	sourceDataCiteCrossref = "datacite-crossref"
	sourceCrossref         = "crossref"
)

// EventRegistrantUpdate records the Crossref member of the Crossref side of
// each target event: the object for datacite-crossref events, the subject
// for crossref events. The event is reindexed after the update.
func (h *Handlers) EventRegistrantUpdate(ctx context.Context, _ *job.Job, args job.Args) error {
	log := h.logFor(ctx)
	for _, uuid := range targets(args) {
		e, err := h.deps.Events.GetByUUID(ctx, uuid)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("Event not found", logger.String("uuid", uuid))
			continue
		}
		if err != nil {
			return fmt.Errorf("load event %s: %w", uuid, err)
		}

		var (
			doi  string
			side *map[string]any
			key  string
		)
		switch e.SourceID {
		case sourceDataCiteCrossref:
			doi, side, key = e.ObjID, &e.Obj, "registrantId"
		case sourceCrossref:
			doi, side, key = e.SubjID, &e.Subj, "registrant_id"
		default:
			continue
		}

		registrant, err := h.crossrefRegistrant(ctx, doi, args.Refresh())
		if err != nil {
			return err
		}
		if registrant == "" {
			continue
		}

		updated := maps.Clone(*side)
		if updated == nil {
			updated = map[string]any{}
		}
		updated[key] = registrant
		*side = updated

		if err = h.deps.Events.UpdateSubjObj(ctx, e.UUID, e.Subj, e.Obj); err != nil {
			return fmt.Errorf("update registrant of %s: %w", uuid, err)
		}
		if err = h.enqueue(ctx, OpIndex, job.Args{Target: e.UUID, Options: map[string]any{"kind": KindEvent}}); err != nil {
			return fmt.Errorf("enqueue index of event %s: %w", uuid, err)
		}
		log.Debug("Updated event registrant",
			logger.String("uuid", uuid),
			logger.String("registrant_id", registrant),
		)
	}
	return nil
}

// crossrefRegistrant returns the Crossref member of doi, or "" when doi is
// not a Crossref DOI.
func (h *Handlers) crossrefRegistrant(ctx context.Context, doi string, refresh bool) (string, error) {
	ra, err := h.deps.Agencies.Agency(ctx, doi)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("registration agency of %s: %w", doi, err)
	}
	if ra != external.AgencyCrossref {
		return "", nil
	}

	member, err := h.deps.Members.MemberID(ctx, doi, refresh)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("crossref member of %s: %w", doi, err)
	}
	return member, nil
}

// OtherDOIImport queues a crossref_doi job for every DOI referenced by an
// event that is neither a DataCite DOI nor a funder id. The identifiers are
// the targets, or the subj_id and obj_id options.
func (h *Handlers) OtherDOIImport(ctx context.Context, _ *job.Job, args job.Args) error {
	ids := targets(args)
	for _, name := range []string{"subj_id", "obj_id"} {
		if v := args.String(name); v != "" {
			ids = append(ids, v)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: other_doi_import needs identifiers", domain.ErrInvalidInput)
	}

	dois, err := h.deps.Agencies.DOIsToImport(ctx, ids...)
	if err != nil {
		return err
	}
	for _, doi := range dois {
		if err = h.enqueue(ctx, OpCrossrefDOI, job.Args{Target: doi}); err != nil {
			return fmt.Errorf("enqueue import of %s: %w", doi, err)
		}
	}
	if len(dois) > 0 {
		h.logFor(ctx).Info("Queued DOI imports", logger.Strings("dois", dois))
	}
	return nil
}

// ORCIDAutoUpdate stores the public profile of the target ORCID. Known
// researchers are skipped unless the refresh option is set; profiles ORCID
// does not know are ignored.
func (h *Handlers) ORCIDAutoUpdate(ctx context.Context, _ *job.Job, args job.Args) error {
	log := h.logFor(ctx)
	for _, raw := range targets(args) {
		id := identifier.ORCIDFromURL(raw)
		if id == "" {
			return fmt.Errorf("%w: %q is not an ORCID iD", domain.ErrInvalidInput, raw)
		}
		if !args.Refresh() {
			exists, err := h.deps.Researchers.Exists(ctx, id)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
		}

		person, err := h.deps.People.Person(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("ORCID record not found", logger.String("orcid", id))
			continue
		}
		if err != nil {
			return err
		}
		if err = h.deps.Researchers.Upsert(ctx, person); err != nil {
			return err
		}
		log.Debug("Updated researcher", logger.String("orcid", person.UID))
	}
	return nil
}
