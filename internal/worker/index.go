package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/event"
	"github.com/datacite/lupo-sub003/internal/identifier"
	"github.com/datacite/lupo-sub003/internal/job"
)

const crossrefFunderPrefix = "10.13039"

func kindOf(args job.Args) (string, error) {
	switch kind := args.String("kind"); kind {
	case "", KindDOI:
		return KindDOI, nil
	case KindEvent:
		return KindEvent, nil
	default:
		return "", fmt.Errorf("%w: unknown document kind %q", domain.ErrInvalidInput, kind)
	}
}

func (h *Handlers) indexFor(kind string) string {
	if kind == KindEvent {
		return h.cfg.EventIndex
	}
	return h.cfg.DOIIndex
}

// Index writes the current document of each target to the search index.
// Targets are DOIs, or event UUIDs when the kind option is "event".
func (h *Handlers) Index(ctx context.Context, _ *job.Job, args job.Args) error {
	kind, err := kindOf(args)
	if err != nil {
		return err
	}
	ids := targets(args)
	if len(ids) == 0 {
		return fmt.Errorf("%w: index needs a target", domain.ErrInvalidInput)
	}

	for _, id := range ids {
		if kind == KindEvent {
			err = h.indexEvent(ctx, id)
		} else {
			err = h.indexDOI(ctx, id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) indexDOI(ctx context.Context, doi string) error {
	rec, err := h.deps.DOIs.Get(ctx, doi)
	if err != nil {
		return fmt.Errorf("load %s: %w", doi, err)
	}
	if err = h.prepareRecord(ctx, rec); err != nil {
		return err
	}
	if err = h.deps.Index.Index(ctx, h.cfg.DOIIndex, rec.UID, rec); err != nil {
		return fmt.Errorf("index %s: %w", rec.UID, err)
	}
	h.logFor(ctx).Debug("Indexed DOI", logger.DOI(rec.UID))
	return nil
}

func (h *Handlers) indexEvent(ctx context.Context, uuid string) error {
	e, err := h.deps.Events.GetByUUID(ctx, uuid)
	if err != nil {
		return fmt.Errorf("load event %s: %w", uuid, err)
	}
	if !event.Known(e.RelationTypeID) {
		return fmt.Errorf("%w: event %s has relation type %q", domain.ErrInvalidInput, uuid, e.RelationTypeID)
	}
	doc := eventDocument(e)
	if err = h.deps.Index.Index(ctx, h.cfg.EventIndex, e.UUID, doc); err != nil {
		return fmt.Errorf("index event %s: %w", uuid, err)
	}
	return nil
}

func eventDocument(e *domain.RelationEvent) event.Document {
	event.SetSourceAndTarget(e)
	e.CitationType = event.CitationType(e.SubjType(), e.ObjType())
	return event.NewDocument(e)
}

// prepareRecord adds the derived fields of the index document: relation
// counters, affiliation RORs and funder RORs with their ancestors.
func (h *Handlers) prepareRecord(ctx context.Context, rec *domain.Record) error {
	counts, err := h.deps.Counts.Counts(ctx, rec.UID)
	if err != nil {
		return fmt.Errorf("event counts for %s: %w", rec.UID, err)
	}
	rec.Counts = counts
	rec.AffiliationID = affiliationIDs(rec)

	rec.FunderRORs, rec.FunderParentRORs, err = h.funderRORs(ctx, rec)
	return err
}

func affiliationIDs(rec *domain.Record) []string {
	var out []string
	seen := map[string]bool{}
	for _, people := range [][]domain.Person{rec.Creators, rec.Contributors} {
		for _, p := range people {
			for _, aff := range p.Affiliation {
				if !strings.EqualFold(aff.AffiliationIdentifierScheme, "ROR") {
					continue
				}
				id := identifier.RORFromURL(aff.AffiliationIdentifier)
				if id != "" && !seen[id] {
					seen[id] = true
					out = append(out, id)
				}
			}
		}
	}
	return out
}

func (h *Handlers) funderRORs(ctx context.Context, rec *domain.Record) (rors, parents []string, err error) {
	if h.deps.Funders == nil {
		return nil, nil, nil
	}

	seen := map[string]bool{}
	for _, fr := range rec.FundingReferences {
		doi := identifier.DOIFromURL(fr.FunderIdentifier)
		if identifier.Prefix(doi) != crossrefFunderPrefix {
			continue
		}
		_, suffix, _ := strings.Cut(doi, "/")

		ror, ok, lookupErr := h.deps.Funders.FunderROR(ctx, suffix)
		if lookupErr != nil {
			return nil, nil, fmt.Errorf("funder ror of %s: %w", suffix, lookupErr)
		}
		if !ok || seen[ror] {
			continue
		}
		seen[ror] = true
		rors = append(rors, ror)

		ancestors, lookupErr := h.deps.Funders.Ancestors(ctx, ror)
		if lookupErr != nil {
			return nil, nil, fmt.Errorf("ror ancestors of %s: %w", ror, lookupErr)
		}
		for _, a := range ancestors {
			if !slices.Contains(parents, a) {
				parents = append(parents, a)
			}
		}
	}
	return rors, parents, nil
}

// Delete removes each target from the search index. Documents already
// absent count as deleted.
func (h *Handlers) Delete(ctx context.Context, _ *job.Job, args job.Args) error {
	kind, err := kindOf(args)
	if err != nil {
		return err
	}
	index := h.indexFor(kind)
	for _, id := range targets(args) {
		if kind == KindDOI {
			id = identifier.DOIFromURL(id)
		}
		err = h.deps.Index.Delete(ctx, index, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete %s from %s: %w", id, index, err)
		}
	}
	return nil
}

// EventCounts reindexes each target DOI so its relation counters reflect
// the current events.
func (h *Handlers) EventCounts(ctx context.Context, j *job.Job, args job.Args) error {
	return h.Index(ctx, j, job.Args{Targets: targets(args)})
}

// ImportRange splits an id range into import_batch jobs of BatchSize ids.
// Without an explicit range the whole table is covered.
func (h *Handlers) ImportRange(ctx context.Context, _ *job.Job, args job.Args) error {
	kind, err := kindOf(args)
	if err != nil {
		return err
	}

	from, until := args.FromID, args.UntilID
	if from == 0 || until == 0 {
		minID, maxID, boundsErr := h.bounds(ctx, kind)
		if boundsErr != nil {
			return boundsErr
		}
		if from == 0 {
			from = minID
		}
		if until == 0 {
			until = maxID
		}
	}
	if until < from || until == 0 {
		h.logFor(ctx).Info("Nothing to import",
			logger.String("kind", kind),
			logger.Int64("from_id", from),
			logger.Int64("until_id", until),
		)
		return nil
	}

	batches := 0
	for start := from; start <= until; start += h.cfg.BatchSize {
		end := min(start+h.cfg.BatchSize-1, until)
		child := job.Args{
			FromID:  start,
			UntilID: end,
			Options: map[string]any{"kind": kind},
		}
		if err = h.enqueue(ctx, OpImportBatch, child); err != nil {
			return fmt.Errorf("enqueue batch %d-%d: %w", start, end, err)
		}
		batches++
	}

	h.logFor(ctx).Info("Queued import batches",
		logger.String("kind", kind),
		logger.Int64("from_id", from),
		logger.Int64("until_id", until),
		logger.Int("batches", batches),
	)
	return nil
}

func (h *Handlers) bounds(ctx context.Context, kind string) (minID, maxID int64, err error) {
	if kind == KindEvent {
		minID, maxID, err = h.deps.Events.IDBounds(ctx)
	} else {
		minID, maxID, err = h.deps.DOIs.IDBounds(ctx)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%s id bounds: %w", kind, err)
	}
	return minID, maxID, nil
}

// ImportBatch bulk-indexes the records with ids in [FromID, UntilID].
// Failed items make the whole batch retryable.
func (h *Handlers) ImportBatch(ctx context.Context, _ *job.Job, args job.Args) error {
	kind, err := kindOf(args)
	if err != nil {
		return err
	}
	if args.FromID <= 0 || args.UntilID < args.FromID {
		return fmt.Errorf("%w: invalid id range %d-%d", domain.ErrInvalidInput, args.FromID, args.UntilID)
	}

	var docs []elasticsearch.BulkDocument
	if kind == KindEvent {
		docs, err = h.eventBatch(ctx, args.FromID, args.UntilID)
	} else {
		docs, err = h.doiBatch(ctx, args.FromID, args.UntilID)
	}
	if err != nil {
		return err
	}

	result, err := h.deps.Index.Bulk(ctx, h.indexFor(kind), docs)
	if err != nil {
		return fmt.Errorf("bulk index %d-%d: %w", args.FromID, args.UntilID, err)
	}

	h.logFor(ctx).Info("Imported batch",
		logger.String("kind", kind),
		logger.Int64("from_id", args.FromID),
		logger.Int64("until_id", args.UntilID),
		logger.Int("indexed", result.Indexed),
		logger.Int("failed", len(result.Failed)),
	)
	if len(result.Failed) > 0 {
		return job.Retryable(fmt.Errorf("bulk index %d-%d: %d items failed", args.FromID, args.UntilID, len(result.Failed)))
	}
	return nil
}

func (h *Handlers) doiBatch(ctx context.Context, from, until int64) ([]elasticsearch.BulkDocument, error) {
	records, err := h.deps.DOIs.ListByIDRange(ctx, from, until)
	if err != nil {
		return nil, err
	}
	docs := make([]elasticsearch.BulkDocument, 0, len(records))
	for i := range records {
		rec := &records[i]
		if err = h.prepareRecord(ctx, rec); err != nil {
			return nil, err
		}
		docs = append(docs, elasticsearch.BulkDocument{ID: rec.UID, Source: rec})
	}
	return docs, nil
}

func (h *Handlers) eventBatch(ctx context.Context, from, until int64) ([]elasticsearch.BulkDocument, error) {
	events, err := h.deps.Events.ListByIDRange(ctx, from, until)
	if err != nil {
		return nil, err
	}
	docs := make([]elasticsearch.BulkDocument, 0, len(events))
	for i := range events {
		e := &events[i]
		if !event.Known(e.RelationTypeID) {
			h.logFor(ctx).Warn("Skipping event with unknown relation type",
				logger.String("uuid", e.UUID),
				logger.String("relation_type_id", e.RelationTypeID),
			)
			continue
		}
		docs = append(docs, elasticsearch.BulkDocument{ID: e.UUID, Source: eventDocument(e)})
	}
	return docs, nil
}
