package worker_test

import (
	"context"
	"strings"
	"sync"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/worker"
)

type fakeDOIs struct {
	mu        sync.Mutex
	records   map[string]*domain.Record
	xml       map[string][]byte
	created   []*domain.Record
	updated   []*domain.Record
	versions  map[string]string
	providers map[string]string
	minID     int64
	maxID     int64
}

func newFakeDOIs(records ...*domain.Record) *fakeDOIs {
	f := &fakeDOIs{
		records:   map[string]*domain.Record{},
		xml:       map[string][]byte{},
		versions:  map[string]string{},
		providers: map[string]string{},
	}
	for _, r := range records {
		f.records[strings.ToLower(r.DOI)] = r
	}
	return f
}

func (f *fakeDOIs) get(doi string) (*domain.Record, error) {
	rec, ok := f.records[strings.ToLower(doi)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeDOIs) Get(_ context.Context, doi string) (*domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(doi)
}

func (f *fakeDOIs) GetByAgency(_ context.Context, doi, agency string) (*domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, err := f.get(doi)
	if err != nil {
		return nil, err
	}
	if rec.Agency != agency {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeDOIs) Create(_ context.Context, rec *domain.Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[strings.ToLower(rec.DOI)]; ok {
		return false, nil
	}
	f.records[strings.ToLower(rec.DOI)] = rec
	f.created = append(f.created, rec)
	return true, nil
}

func (f *fakeDOIs) ListByIDRange(_ context.Context, from, until int64) ([]domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Record
	for _, r := range f.records {
		if r.ID >= from && r.ID <= until {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeDOIs) IDBounds(context.Context) (int64, int64, error) {
	return f.minID, f.maxID, nil
}

func (f *fakeDOIs) ListDOIsByClient(_ context.Context, clientID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for doi, r := range f.records {
		if r.ClientID == clientID {
			out = append(out, doi)
		}
	}
	return out, nil
}

func (f *fakeDOIs) UpdateClient(_ context.Context, doi, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[strings.ToLower(doi)]
	if !ok {
		return domain.ErrNotFound
	}
	rec.ClientID = clientID
	return nil
}

func (f *fakeDOIs) UpdateProvider(_ context.Context, clientID, providerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.records {
		if r.ClientID == clientID {
			r.ProviderID = providerID
			n++
		}
	}
	f.providers[clientID] = providerID
	return n, nil
}

func (f *fakeDOIs) UpdateSchemaVersion(_ context.Context, doi, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[strings.ToLower(doi)] = version
	return nil
}

func (f *fakeDOIs) UpdateMetadata(_ context.Context, rec *domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, rec)
	return nil
}

func (f *fakeDOIs) XML(_ context.Context, doi string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.xml[strings.ToLower(doi)], nil
}

type fakeEvents struct {
	events  map[string]*domain.RelationEvent
	updates map[string][2]map[string]any
	minID   int64
	maxID   int64
}

func newFakeEvents(events ...*domain.RelationEvent) *fakeEvents {
	f := &fakeEvents{events: map[string]*domain.RelationEvent{}, updates: map[string][2]map[string]any{}}
	for _, e := range events {
		f.events[e.UUID] = e
	}
	return f
}

func (f *fakeEvents) GetByUUID(_ context.Context, uuid string) (*domain.RelationEvent, error) {
	e, ok := f.events[uuid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) ListByIDRange(_ context.Context, from, until int64) ([]domain.RelationEvent, error) {
	var out []domain.RelationEvent
	for _, e := range f.events {
		if e.ID >= from && e.ID <= until {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEvents) IDBounds(context.Context) (int64, int64, error) {
	return f.minID, f.maxID, nil
}

func (f *fakeEvents) UpdateSubjObj(_ context.Context, uuid string, subj, obj map[string]any) error {
	f.updates[uuid] = [2]map[string]any{subj, obj}
	return nil
}

type indexed struct {
	index string
	id    string
	doc   any
}

type fakeIndexer struct {
	mu      sync.Mutex
	docs    []indexed
	deleted []string
	bulk    []elasticsearch.BulkDocument
	failed  []string
	err     error
}

func (f *fakeIndexer) Index(_ context.Context, index, id string, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, indexed{index: index, id: id, doc: doc})
	return nil
}

func (f *fakeIndexer) Delete(_ context.Context, index, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, index+"/"+id)
	return nil
}

func (f *fakeIndexer) Bulk(_ context.Context, _ string, docs []elasticsearch.BulkDocument) (elasticsearch.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return elasticsearch.BulkResult{}, f.err
	}
	f.bulk = append(f.bulk, docs...)
	return elasticsearch.BulkResult{Indexed: len(docs) - len(f.failed), Failed: f.failed}, nil
}

type fakeCounts struct {
	counts domain.Counts
}

func (f fakeCounts) Counts(context.Context, string) (domain.Counts, error) {
	return f.counts, nil
}

type fakeAgencies struct {
	agencies map[string]string
	toImport []string
}

func (f fakeAgencies) Agency(_ context.Context, doi string) (string, error) {
	ra, ok := f.agencies[doi]
	if !ok {
		return "", domain.ErrNotFound
	}
	return ra, nil
}

func (f fakeAgencies) DOIsToImport(context.Context, ...string) ([]string, error) {
	return f.toImport, nil
}

type fakeMembers struct {
	members map[string]string
	calls   int
}

func (f *fakeMembers) MemberID(_ context.Context, doi string, _ bool) (string, error) {
	f.calls++
	m, ok := f.members[doi]
	if !ok {
		return "", domain.ErrNotFound
	}
	return m, nil
}

type fakePeople struct {
	people map[string]*domain.Researcher
	calls  int
}

func (f *fakePeople) Person(_ context.Context, id string) (*domain.Researcher, error) {
	f.calls++
	p, ok := f.people[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeResearchers struct {
	known    map[string]bool
	upserted []*domain.Researcher
}

func (f *fakeResearchers) Exists(_ context.Context, uid string) (bool, error) {
	return f.known[uid], nil
}

func (f *fakeResearchers) Upsert(_ context.Context, res *domain.Researcher) error {
	f.upserted = append(f.upserted, res)
	return nil
}

type fakeFunders struct {
	rors      map[string]string
	ancestors map[string][]string
}

func (f fakeFunders) FunderROR(_ context.Context, funderID string) (string, bool, error) {
	ror, ok := f.rors[funderID]
	return ror, ok, nil
}

func (f fakeFunders) Ancestors(_ context.Context, rorID string) ([]string, error) {
	return f.ancestors[rorID], nil
}

type fakeEnrichments struct {
	mu      sync.Mutex
	created []domain.Enrichment
}

func (f *fakeEnrichments) Create(_ context.Context, en *domain.Enrichment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *en)
	return nil
}

type queued struct {
	queue     string
	operation string
	args      job.Args
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []queued
}

func (f *fakeJobs) Enqueue(_ context.Context, queue, operation string, args job.Args) (*job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, queued{queue: queue, operation: operation, args: args})
	return &job.Job{Queue: queue, Operation: operation}, nil
}

type fixture struct {
	dois        *fakeDOIs
	events      *fakeEvents
	index       *fakeIndexer
	agencies    fakeAgencies
	members     *fakeMembers
	people      *fakePeople
	researchers *fakeResearchers
	enrichments *fakeEnrichments
	jobs        *fakeJobs
	handlers    *worker.Handlers
}

func newFixture(dois *fakeDOIs, events *fakeEvents) *fixture {
	f := &fixture{
		dois:        dois,
		events:      events,
		index:       &fakeIndexer{},
		agencies:    fakeAgencies{agencies: map[string]string{}},
		members:     &fakeMembers{members: map[string]string{}},
		people:      &fakePeople{people: map[string]*domain.Researcher{}},
		researchers: &fakeResearchers{known: map[string]bool{}},
		enrichments: &fakeEnrichments{},
		jobs:        &fakeJobs{},
	}
	f.build()
	return f
}

func (f *fixture) build() {
	f.handlers = worker.New(worker.Config{DOIIndex: "dois", EventIndex: "events", BatchSize: 500}, worker.Deps{
		DOIs:        f.dois,
		Events:      f.events,
		Enrichments: f.enrichments,
		Researchers: f.researchers,
		Index:       f.index,
		Counts:      fakeCounts{counts: domain.Counts{CitationCount: 3, ViewCount: 10}},
		Agencies:    f.agencies,
		Members:     f.members,
		People:      f.people,
		Funders: fakeFunders{
			rors:      map[string]string{"100000001": "https://ror.org/021nxhr62"},
			ancestors: map[string][]string{"https://ror.org/021nxhr62": {"https://ror.org/00a"}},
		},
		Jobs: f.jobs,
	})
}

func record(doi string) *domain.Record {
	return &domain.Record{
		DOI:      strings.ToUpper(doi),
		UID:      strings.ToLower(doi),
		ClientID: "datacite.test",
		Agency:   "datacite",
		Titles:   []domain.Title{{Title: "Ocean data"}},
		Creators: []domain.Person{{Name: "Garza, Kristian"}},
		Types:    domain.Types{ResourceTypeGeneral: "Dataset"},
	}
}
