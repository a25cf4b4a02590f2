package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/textcase"
)

const agencyDataCite = "datacite"

// ErrEnrichmentRejected marks an enrichment that cannot be applied to the
// current metadata of its DOI.
var ErrEnrichmentRejected = errors.New("enrichment rejected")

// enrichableFields maps enrichment field names onto record document keys.
var enrichableFields = map[string]string{
	"creators":           "creators",
	"contributors":       "contributors",
	"titles":             "titles",
	"descriptions":       "descriptions",
	"publisher":          "publisher",
	"publicationYear":    "publication_year",
	"subjects":           "subjects",
	"language":           "language",
	"types":              "types",
	"relatedIdentifiers": "related_identifiers",
	"version":            "version_info",
	"rightsList":         "rights_list",
	"fundingReferences":  "funding_references",
}

// ApplyEnrichment returns a copy of rec with en applied. Supported actions
// are insert, update, update_child and delete_child (camelCase accepted).
// The result must still be a valid record.
func ApplyEnrichment(rec *domain.Record, en *domain.Enrichment) (*domain.Record, error) {
	key, ok := enrichableFields[en.Field]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported field %q", ErrEnrichmentRejected, en.Field)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.DOI, err)
	}
	doc := map[string]any{}
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rec.DOI, err)
	}

	original, err := decodeValue(en.OriginalValue)
	if err != nil {
		return nil, fmt.Errorf("%w: original value: %v", ErrEnrichmentRejected, err)
	}
	enriched, err := decodeValue(en.EnrichedValue)
	if err != nil {
		return nil, fmt.Errorf("%w: enriched value: %v", ErrEnrichmentRejected, err)
	}

	switch textcase.Underscore(en.Action) {
	case domain.EnrichInsert:
		items, _ := doc[key].([]any)
		doc[key] = append(items, enriched)
	case domain.EnrichUpdate:
		if !reflect.DeepEqual(doc[key], original) {
			return nil, fmt.Errorf("%w: original value does not match current value for update", ErrEnrichmentRejected)
		}
		doc[key] = enriched
	case domain.EnrichUpdateChild:
		items, _ := doc[key].([]any)
		i := indexOf(items, original)
		if i < 0 {
			return nil, fmt.Errorf("%w: original value not found for update_child", ErrEnrichmentRejected)
		}
		items[i] = enriched
	case domain.EnrichDeleteChild:
		items, _ := doc[key].([]any)
		kept := items[:0]
		for _, item := range items {
			if !reflect.DeepEqual(item, original) {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(items) {
			return nil, fmt.Errorf("%w: original value not found for delete_child", ErrEnrichmentRejected)
		}
		doc[key] = kept
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrEnrichmentRejected, en.Action)
	}

	if raw, err = json.Marshal(doc); err != nil {
		return nil, fmt.Errorf("encode enriched %s: %w", rec.DOI, err)
	}
	var out domain.Record
	if err = json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentRejected, err)
	}
	out.ID = rec.ID
	if err = validateRecord(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func indexOf(items []any, v any) int {
	for i, item := range items {
		if reflect.DeepEqual(item, v) {
			return i
		}
	}
	return -1
}

// validateRecord enforces the mandatory properties of a DataCite record.
func validateRecord(rec *domain.Record) error {
	if len(rec.Titles) == 0 || rec.Titles[0].Title == "" {
		return fmt.Errorf("%w: a title is required", ErrEnrichmentRejected)
	}
	if len(rec.Creators) == 0 {
		return fmt.Errorf("%w: a creator is required", ErrEnrichmentRejected)
	}
	for _, c := range rec.Creators {
		if c.Name == "" {
			return fmt.Errorf("%w: creator name is required", ErrEnrichmentRejected)
		}
	}
	if rec.Types.ResourceTypeGeneral == "" {
		return fmt.Errorf("%w: resourceTypeGeneral is required", ErrEnrichmentRejected)
	}
	if rec.PublicationYear != 0 && (rec.PublicationYear < 1000 || rec.PublicationYear > 9999) {
		return fmt.Errorf("%w: publication year %d is invalid", ErrEnrichmentRejected, rec.PublicationYear)
	}
	return nil
}

// EnrichmentBatch validates every enrichment line against the current
// metadata of its DataCite DOI and stores the ones that apply cleanly.
// Lines for unknown DOIs or producing invalid metadata are logged and
// skipped; storage failures fail the job.
func (h *Handlers) EnrichmentBatch(ctx context.Context, _ *job.Job, args job.Args) error {
	log := h.logFor(ctx)
	var stored, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.EnrichmentConcurrency)
	for i, line := range args.Lines {
		g.Go(func() error {
			ok, err := h.enrichLine(gctx, line)
			if err != nil {
				return fmt.Errorf("enrichment line %d: %w", i, err)
			}
			if ok {
				stored.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Processed enrichment batch",
		logger.Int("lines", len(args.Lines)),
		logger.Int64("stored", stored.Load()),
		logger.Int64("skipped", skipped.Load()),
	)
	return nil
}

func (h *Handlers) enrichLine(ctx context.Context, line json.RawMessage) (bool, error) {
	log := h.logFor(ctx)

	var en domain.Enrichment
	if err := json.Unmarshal(line, &en); err != nil {
		log.Error("Undecodable enrichment line", logger.Error(err))
		return false, nil
	}

	rec, err := h.deps.DOIs.GetByAgency(ctx, en.DOI, agencyDataCite)
	if errors.Is(err, domain.ErrNotFound) {
		log.Error("DOI does not exist", logger.DOI(en.DOI))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err = ApplyEnrichment(rec, &en); err != nil {
		if errors.Is(err, ErrEnrichmentRejected) {
			log.Error("Enrichment does not produce valid metadata", logger.DOI(en.DOI), logger.Error(err))
			return false, nil
		}
		return false, err
	}

	if err = h.deps.Enrichments.Create(ctx, &en); err != nil {
		return false, err
	}
	return true, nil
}
