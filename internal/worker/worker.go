// Package worker holds the background job handlers: indexing, bulk import,
// metadata maintenance, external lookups and enrichment batches. Handlers
// are registered on a job.Runner under their operation names.
package worker

import (
	"context"
	"sort"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/job"
)

// Operation names.
const (
	OpIndex                 = "index"
	OpDelete                = "delete"
	OpImportRange           = "import_range"
	OpImportBatch           = "import_batch"
	OpEventCounts           = "event_counts"
	OpAffiliation           = "affiliation"
	OpTransfer              = "transfer"
	OpTransferClient        = "transfer_client"
	OpSchemaVersion         = "schema_version"
	OpORCIDAutoUpdate       = "orcid_auto_update"
	OpCrossrefDOI           = "crossref_doi"
	OpEventRegistrantUpdate = "event_registrant_update"
	OpOtherDOIImport        = "other_doi_import"
	OpEnrichmentBatch       = "enrichment_batch"
)

// Document kinds accepted by the "kind" option of index, delete and import jobs.
const (
	KindDOI   = "doi"
	KindEvent = "event"
)

var operationQueues = map[string]string{
	OpIndex:                 job.QueueDefault,
	OpDelete:                job.QueueDefault,
	OpImportRange:           job.QueueImport,
	OpImportBatch:           job.QueueImport,
	OpEventCounts:           job.QueueBackground,
	OpAffiliation:           job.QueueBackground,
	OpTransfer:              job.QueueTransfer,
	OpTransferClient:        job.QueueTransfer,
	OpSchemaVersion:         job.QueueBackground,
	OpORCIDAutoUpdate:       job.QueueBackground,
	OpCrossrefDOI:           job.QueueOther,
	OpEventRegistrantUpdate: job.QueueEvents,
	OpOtherDOIImport:        job.QueueEvents,
	OpEnrichmentBatch:       job.QueueBackground,
}

// QueueFor returns the queue an operation is delivered on. Unknown
// operations go to the default queue.
func QueueFor(operation string) string {
	if q, ok := operationQueues[operation]; ok {
		return q
	}
	return job.QueueDefault
}

// Operations lists every operation name, sorted.
func Operations() []string {
	ops := make([]string, 0, len(operationQueues))
	for op := range operationQueues {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// DOIStore is the system of record for DOI metadata.
type DOIStore interface {
	Get(ctx context.Context, doi string) (*domain.Record, error)
	GetByAgency(ctx context.Context, doi, agency string) (*domain.Record, error)
	Create(ctx context.Context, rec *domain.Record) (bool, error)
	ListByIDRange(ctx context.Context, from, until int64) ([]domain.Record, error)
	IDBounds(ctx context.Context) (minID, maxID int64, err error)
	ListDOIsByClient(ctx context.Context, clientID string) ([]string, error)
	UpdateClient(ctx context.Context, doi, clientID string) error
	UpdateProvider(ctx context.Context, clientID, providerID string) (int64, error)
	UpdateSchemaVersion(ctx context.Context, doi, version string) error
	UpdateMetadata(ctx context.Context, rec *domain.Record) error
	XML(ctx context.Context, doi string) ([]byte, error)
}

// EventStore is the system of record for relation events.
type EventStore interface {
	GetByUUID(ctx context.Context, uuid string) (*domain.RelationEvent, error)
	ListByIDRange(ctx context.Context, from, until int64) ([]domain.RelationEvent, error)
	IDBounds(ctx context.Context) (minID, maxID int64, err error)
	UpdateSubjObj(ctx context.Context, uuid string, subj, obj map[string]any) error
}

// EnrichmentStore persists accepted enrichments.
type EnrichmentStore interface {
	Create(ctx context.Context, en *domain.Enrichment) error
}

// ResearcherStore persists ORCID researcher profiles.
type ResearcherStore interface {
	Exists(ctx context.Context, uid string) (bool, error)
	Upsert(ctx context.Context, res *domain.Researcher) error
}

// Indexer writes documents to the search backend.
type Indexer interface {
	Index(ctx context.Context, index, id string, doc any) error
	Delete(ctx context.Context, index, id string) error
	Bulk(ctx context.Context, index string, docs []elasticsearch.BulkDocument) (elasticsearch.BulkResult, error)
}

// CountSource derives relation counters of a DOI.
type CountSource interface {
	Counts(ctx context.Context, doi string) (domain.Counts, error)
}

// AgencyLookup resolves registration agencies.
type AgencyLookup interface {
	Agency(ctx context.Context, doi string) (string, error)
	DOIsToImport(ctx context.Context, ids ...string) ([]string, error)
}

// MemberLookup resolves the Crossref member of a DOI.
type MemberLookup interface {
	MemberID(ctx context.Context, doi string, refresh bool) (string, error)
}

// PersonLookup fetches a public ORCID profile.
type PersonLookup interface {
	Person(ctx context.Context, id string) (*domain.Researcher, error)
}

// FunderLookup maps Crossref funder ids onto ROR and walks the ROR hierarchy.
type FunderLookup interface {
	FunderROR(ctx context.Context, funderID string) (string, bool, error)
	Ancestors(ctx context.Context, rorID string) ([]string, error)
}

// Enqueuer schedules follow-up jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue, operation string, args job.Args) (*job.Job, error)
}

// Config holds handler settings.
type Config struct {
	DOIIndex   string
	EventIndex string
	// BatchSize is the id span of one import_batch job.
	BatchSize int64
	// EnrichmentConcurrency bounds parallel line processing in enrichment_batch.
	EnrichmentConcurrency int
}

const (
	defaultBatchSize             = 500
	defaultEnrichmentConcurrency = 10
)

// Deps groups the collaborators of the handlers.
type Deps struct {
	DOIs        DOIStore
	Events      EventStore
	Enrichments EnrichmentStore
	Researchers ResearcherStore
	Index       Indexer
	Counts      CountSource
	Agencies    AgencyLookup
	Members     MemberLookup
	People      PersonLookup
	Funders     FunderLookup
	Jobs        Enqueuer
	Logger      logger.Logger
}

// Handlers implements every job operation.
type Handlers struct {
	cfg  Config
	deps Deps
	log  logger.Logger
}

// New creates the handler set.
func New(cfg Config, deps Deps) *Handlers {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.EnrichmentConcurrency <= 0 {
		cfg.EnrichmentConcurrency = defaultEnrichmentConcurrency
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Handlers{cfg: cfg, deps: deps, log: log}
}

// Register binds every operation on r.
func (h *Handlers) Register(r *job.Runner) {
	r.Register(OpIndex, h.Index)
	r.Register(OpDelete, h.Delete)
	r.Register(OpImportRange, h.ImportRange)
	r.Register(OpImportBatch, h.ImportBatch)
	r.Register(OpEventCounts, h.EventCounts)
	r.Register(OpAffiliation, h.Affiliation)
	r.Register(OpTransfer, h.Transfer)
	r.Register(OpTransferClient, h.TransferClient)
	r.Register(OpSchemaVersion, h.SchemaVersion)
	r.Register(OpORCIDAutoUpdate, h.ORCIDAutoUpdate)
	r.Register(OpCrossrefDOI, h.CrossrefDOI)
	r.Register(OpEventRegistrantUpdate, h.EventRegistrantUpdate)
	r.Register(OpOtherDOIImport, h.OtherDOIImport)
	r.Register(OpEnrichmentBatch, h.EnrichmentBatch)
}

// enqueue schedules a follow-up job on the operation's queue.
func (h *Handlers) enqueue(ctx context.Context, operation string, args job.Args) error {
	_, err := h.deps.Jobs.Enqueue(ctx, QueueFor(operation), operation, args)
	return err
}

// logFor returns the job-scoped logger placed on ctx by the runner, or the
// handler logger outside a job.
func (h *Handlers) logFor(ctx context.Context) logger.Logger {
	return logger.FromContextOr(ctx, h.log)
}

// targets returns Targets, falling back to the single Target.
func targets(args job.Args) []string {
	if len(args.Targets) > 0 {
		return args.Targets
	}
	if args.Target != "" {
		return []string{args.Target}
	}
	return nil
}
