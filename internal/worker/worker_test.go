package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/event"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/worker"
)

func TestQueueFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		operation string
		want      string
	}{
		{worker.OpIndex, job.QueueDefault},
		{worker.OpImportBatch, job.QueueImport},
		{worker.OpTransfer, job.QueueTransfer},
		{worker.OpCrossrefDOI, job.QueueOther},
		{worker.OpEventRegistrantUpdate, job.QueueEvents},
		{worker.OpEnrichmentBatch, job.QueueBackground},
		{"unknown", job.QueueDefault},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, worker.QueueFor(tt.operation))
		})
	}
}

func TestHandlers_IndexDOI(t *testing.T) {
	t.Parallel()

	rec := record("10.5061/DRYAD.8515")
	rec.FundingReferences = []domain.FundingReference{
		{FunderName: "NSF", FunderIdentifier: "https://doi.org/10.13039/100000001", FunderIdentifierType: "Crossref Funder ID"},
		{FunderName: "Other", FunderIdentifier: "https://example.org/funder"},
	}
	rec.Creators[0].Affiliation = domain.Affiliations{
		{Name: "DataCite", AffiliationIdentifier: "https://ror.org/04wxnsj81", AffiliationIdentifierScheme: "ROR"},
		{Name: "Unknown"},
	}
	f := newFixture(newFakeDOIs(rec), newFakeEvents())

	err := f.handlers.Index(context.Background(), &job.Job{}, job.Args{Target: "10.5061/dryad.8515"})
	require.NoError(t, err)

	require.Len(t, f.index.docs, 1)
	got := f.index.docs[0]
	assert.Equal(t, "dois", got.index)
	assert.Equal(t, "10.5061/dryad.8515", got.id)

	doc, ok := got.doc.(*domain.Record)
	require.True(t, ok)
	assert.Equal(t, 3, doc.CitationCount)
	assert.Equal(t, 10, doc.ViewCount)
	assert.Equal(t, []string{"ror.org/04wxnsj81"}, doc.AffiliationID)
	assert.Equal(t, []string{"https://ror.org/021nxhr62"}, doc.FunderRORs)
	assert.Equal(t, []string{"https://ror.org/00a"}, doc.FunderParentRORs)
}

func TestHandlers_IndexDOIIsRepeatable(t *testing.T) {
	t.Parallel()

	rec := record("10.5061/dryad.8515")
	rec.FundingReferences = []domain.FundingReference{
		{FunderName: "NSF", FunderIdentifier: "https://doi.org/10.13039/100000001", FunderIdentifierType: "Crossref Funder ID"},
	}
	f := newFixture(newFakeDOIs(rec), newFakeEvents())
	args := job.Args{Target: "10.5061/dryad.8515"}

	require.NoError(t, f.handlers.Index(context.Background(), &job.Job{}, args))
	first, err := json.Marshal(f.index.docs[0].doc)
	require.NoError(t, err)

	require.NoError(t, f.handlers.Index(context.Background(), &job.Job{}, args))
	second, err := json.Marshal(f.index.docs[1].doc)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestHandlers_IndexMissingDOIIsDiscarded(t *testing.T) {
	t.Parallel()
	f := newFixture(newFakeDOIs(), newFakeEvents())

	err := f.handlers.Index(context.Background(), &job.Job{}, job.Args{Target: "10.5061/missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, job.OutcomeDiscard, job.Classify(err))
}

func TestHandlers_IndexRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	f := newFixture(newFakeDOIs(), newFakeEvents())

	err := f.handlers.Index(context.Background(), &job.Job{}, job.Args{
		Target:  "x",
		Options: map[string]any{"kind": "client"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHandlers_IndexEvent(t *testing.T) {
	t.Parallel()

	e := &domain.RelationEvent{
		UUID:           "e1",
		SubjID:         "https://doi.org/10.1016/j.x",
		ObjID:          "https://doi.org/10.5061/dryad.8515",
		Subj:           map[string]any{"@type": "ScholarlyArticle"},
		Obj:            map[string]any{"@type": "Dataset"},
		RelationTypeID: "references",
		SourceID:       "crossref",
	}
	f := newFixture(newFakeDOIs(), newFakeEvents(e))

	err := f.handlers.Index(context.Background(), &job.Job{}, job.Args{
		Target:  "e1",
		Options: map[string]any{"kind": worker.KindEvent},
	})
	require.NoError(t, err)

	require.Len(t, f.index.docs, 1)
	assert.Equal(t, "events", f.index.docs[0].index)
	doc, ok := f.index.docs[0].doc.(event.Document)
	require.True(t, ok)
	assert.Equal(t, "Dataset-ScholarlyArticle", doc.CitationType)
	assert.NotEmpty(t, doc.CitationID)
}

func TestHandlers_IndexEvent_UnknownRelationType(t *testing.T) {
	t.Parallel()

	e := &domain.RelationEvent{UUID: "e9", SubjID: "https://doi.org/10.1/a", ObjID: "https://doi.org/10.2/b", RelationTypeID: "is-friends-with"}
	f := newFixture(newFakeDOIs(), newFakeEvents(e))

	err := f.handlers.Index(context.Background(), &job.Job{}, job.Args{
		Target:  "e9",
		Options: map[string]any{"kind": worker.KindEvent},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.index.docs)
}

func TestHandlers_Delete(t *testing.T) {
	t.Parallel()

	f := newFixture(newFakeDOIs(), newFakeEvents())
	err := f.handlers.Delete(context.Background(), &job.Job{}, job.Args{Targets: []string{"https://doi.org/10.5061/ABC"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"dois/10.5061/abc"}, f.index.deleted)

	f.index.err = domain.ErrNotFound
	err = f.handlers.Delete(context.Background(), &job.Job{}, job.Args{Target: "10.5061/gone"})
	require.NoError(t, err, "absent documents count as deleted")

	f.index.err = domain.NewBackendError("delete", errors.New("connection refused"))
	err = f.handlers.Delete(context.Background(), &job.Job{}, job.Args{Target: "10.5061/abc"})
	require.Error(t, err)
	assert.Equal(t, job.OutcomeRetry, job.Classify(err))
}

func TestHandlers_EventCounts(t *testing.T) {
	t.Parallel()

	f := newFixture(newFakeDOIs(record("10.5061/a"), record("10.5061/b")), newFakeEvents())
	err := f.handlers.EventCounts(context.Background(), &job.Job{}, job.Args{Targets: []string{"10.5061/a", "10.5061/b"}})
	require.NoError(t, err)
	assert.Len(t, f.index.docs, 2)
}

func TestHandlers_ImportRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       job.Args
		minID      int64
		maxID      int64
		wantRanges [][2]int64
	}{
		{
			name:       "whole table",
			minID:      1,
			maxID:      1200,
			wantRanges: [][2]int64{{1, 500}, {501, 1000}, {1001, 1200}},
		},
		{
			name:       "explicit range",
			args:       job.Args{FromID: 100, UntilID: 600},
			minID:      1,
			maxID:      5000,
			wantRanges: [][2]int64{{100, 599}, {600, 600}},
		},
		{
			name:       "open-ended range",
			args:       job.Args{FromID: 900},
			minID:      1,
			maxID:      1000,
			wantRanges: [][2]int64{{900, 1000}},
		},
		{
			name: "empty table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dois := newFakeDOIs()
			dois.minID, dois.maxID = tt.minID, tt.maxID
			f := newFixture(dois, newFakeEvents())

			require.NoError(t, f.handlers.ImportRange(context.Background(), &job.Job{}, tt.args))

			var got [][2]int64
			for _, q := range f.jobs.jobs {
				assert.Equal(t, job.QueueImport, q.queue)
				assert.Equal(t, worker.OpImportBatch, q.operation)
				assert.Equal(t, worker.KindDOI, q.args.String("kind"))
				got = append(got, [2]int64{q.args.FromID, q.args.UntilID})
			}
			assert.Equal(t, tt.wantRanges, got)
		})
	}
}

func TestHandlers_ImportBatch(t *testing.T) {
	t.Parallel()

	a := record("10.5061/a")
	a.ID = 1
	b := record("10.5061/b")
	b.ID = 2
	outside := record("10.5061/c")
	outside.ID = 900
	f := newFixture(newFakeDOIs(a, b, outside), newFakeEvents())

	err := f.handlers.ImportBatch(context.Background(), &job.Job{}, job.Args{FromID: 1, UntilID: 500})
	require.NoError(t, err)
	require.Len(t, f.index.bulk, 2)
	ids := []string{f.index.bulk[0].ID, f.index.bulk[1].ID}
	assert.ElementsMatch(t, []string{"10.5061/a", "10.5061/b"}, ids)
}

func TestHandlers_ImportBatchEvents(t *testing.T) {
	t.Parallel()

	e := &domain.RelationEvent{ID: 5, UUID: "e5", SubjID: "https://doi.org/10.1/a", ObjID: "https://doi.org/10.2/b", RelationTypeID: "references"}
	f := newFixture(newFakeDOIs(), newFakeEvents(e))

	err := f.handlers.ImportBatch(context.Background(), &job.Job{}, job.Args{
		FromID:  1,
		UntilID: 10,
		Options: map[string]any{"kind": worker.KindEvent},
	})
	require.NoError(t, err)
	require.Len(t, f.index.bulk, 1)
	assert.Equal(t, "e5", f.index.bulk[0].ID)
}

func TestHandlers_ImportBatchFailedItemsRetry(t *testing.T) {
	t.Parallel()

	a := record("10.5061/a")
	a.ID = 1
	f := newFixture(newFakeDOIs(a), newFakeEvents())
	f.index.failed = []string{"10.5061/a"}

	err := f.handlers.ImportBatch(context.Background(), &job.Job{}, job.Args{FromID: 1, UntilID: 500})
	require.Error(t, err)
	assert.Equal(t, job.OutcomeRetry, job.Classify(err))
}

func TestHandlers_ImportBatchInvalidRange(t *testing.T) {
	t.Parallel()
	f := newFixture(newFakeDOIs(), newFakeEvents())

	err := f.handlers.ImportBatch(context.Background(), &job.Job{}, job.Args{FromID: 10, UntilID: 5})
	assert.Equal(t, job.OutcomeDiscard, job.Classify(err))
}

func TestHandlers_Register(t *testing.T) {
	t.Parallel()

	f := newFixture(newFakeDOIs(), newFakeEvents())
	r := job.NewRunner(nil, nil, job.DefaultRunnerConfig(), nil, logger.NewNop())
	f.handlers.Register(r)

	assert.ElementsMatch(t, []string{
		worker.OpIndex, worker.OpDelete, worker.OpImportRange, worker.OpImportBatch,
		worker.OpEventCounts, worker.OpAffiliation, worker.OpTransfer, worker.OpTransferClient,
		worker.OpSchemaVersion, worker.OpORCIDAutoUpdate, worker.OpCrossrefDOI,
		worker.OpEventRegistrantUpdate, worker.OpOtherDOIImport, worker.OpEnrichmentBatch,
	}, r.Operations())
}
