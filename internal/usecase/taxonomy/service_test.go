package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
	"github.com/kailas-cloud/bioportal/internal/domain/identity"
	domtax "github.com/kailas-cloud/bioportal/internal/domain/taxonomy"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// --- Mocks ---

type mockRecords struct {
	mu         sync.Mutex
	paths      []domtax.Path
	pathCalls  int
	rows       map[string][]aggregate.GroupRow
	groupByErr error
}

func (m *mockRecords) TaxonomyPaths(context.Context, condition.Condition) ([]domtax.Path, error) {
	m.pathCalls++
	return m.paths, nil
}

func (m *mockRecords) GroupByField(_ context.Context, _ condition.Condition, column string) ([]aggregate.GroupRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupByErr != nil {
		return nil, m.groupByErr
	}
	return m.rows[column], nil
}

type mockSummaries struct {
	docs   []db.Document
	fields []string
}

func (m *mockSummaries) Collection(g aggregate.ScopeGroup) (string, bool) {
	return "summaries", g == aggregate.GroupSummary
}

func (m *mockSummaries) FieldValues(
	_ context.Context, _ aggregate.ScopeGroup, _ condition.Condition, fields []string,
) ([]db.Document, error) {
	m.fields = fields
	return m.docs, nil
}

type mockDocuments struct {
	docs  []db.Document
	calls int
}

func (m *mockDocuments) SummaryDocuments(
	context.Context, string, aggregate.ScopeGroup, condition.Condition,
) ([]db.Document, error) {
	m.calls++
	return m.docs, nil
}

type mockIDs struct{ warm map[string]bool }

func (m *mockIDs) Get(_ context.Context, key cachekey.Key) ([]string, bool) {
	if m.warm[key.ID()] {
		return []string{"x"}, true
	}
	return nil, false
}

type mockNodes struct {
	byName   map[string][]domtax.Node
	byTaxID  map[int64]domtax.Node
	children map[int64][]domtax.Node
	lookups  int
}

func (m *mockNodes) ByNameAndRank(_ context.Context, name, rank string) ([]domtax.Node, error) {
	return m.byName[rank+"/"+name], nil
}

func (m *mockNodes) ByTaxIDs(_ context.Context, ids []int64) ([]domtax.Node, error) {
	m.lookups++
	var out []domtax.Node
	for _, id := range ids {
		if n, ok := m.byTaxID[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNodes) ByParentTaxIDs(_ context.Context, ids []int64) ([]domtax.Node, error) {
	var out []domtax.Node
	for _, id := range ids {
		out = append(out, m.children[id]...)
	}
	return out, nil
}

type memMeta struct {
	data map[string][]byte
	ttl  time.Duration
}

func (m *memMeta) Get(_ context.Context, key cachekey.Key, dst any) bool {
	raw, ok := m.data[key.String()]
	return ok && json.Unmarshal(raw, dst) == nil
}

func (m *memMeta) Set(_ context.Context, key cachekey.Key, value any, ttl time.Duration) bool {
	b, _ := json.Marshal(value)
	m.data[key.String()] = b
	m.ttl = ttl
	return true
}

type fixture struct {
	svc       *Service
	records   *mockRecords
	summaries *mockSummaries
	documents *mockDocuments
	ids       *mockIDs
	nodes     *mockNodes
	meta      *memMeta
}

func newFixture(cacheAfter time.Duration) *fixture {
	f := &fixture{
		records:   &mockRecords{rows: make(map[string][]aggregate.GroupRow)},
		summaries: &mockSummaries{},
		documents: &mockDocuments{},
		ids:       &mockIDs{warm: make(map[string]bool)},
		nodes: &mockNodes{
			byName:   make(map[string][]domtax.Node),
			byTaxID:  make(map[int64]domtax.Node),
			children: make(map[int64][]domtax.Node),
		},
		meta: &memMeta{data: make(map[string][]byte)},
	}
	f.svc = New(condition.NewBuilder(fieldtable.V1), f.records, f.summaries, f.documents, f.ids, f.nodes, f.meta,
		Config{CacheAfter: cacheAfter, CacheTTL: 24 * time.Hour, DominantShare: 0.95, DefaultNodeThreshold: 1000})
	return f
}

// slowClock advances by step on every reading.
func slowClock(step time.Duration) func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func encode(t *testing.T, raw string, e extent.Extent) string {
	t.Helper()
	q, err := triplet.Sanitize(raw, e)
	if err != nil {
		t.Fatal(err)
	}
	return identity.Encode(q)
}

func path(specimens int64, names ...string) domtax.Path {
	p := domtax.Path{Names: make(map[string]string), Specimens: specimens}
	for i, n := range names {
		p.Names[domtax.Ranks[i]] = n
	}
	return p
}

// --- Tests ---

func TestMap_RawPathForMixedQuery(t *testing.T) {
	f := newFixture(time.Hour)
	f.records.paths = []domtax.Path{
		path(3, "Animalia", "Arthropoda"),
		path(1, "Animalia", "Chordata"),
	}

	got, err := f.svc.Map(context.Background(), encode(t, "ids:processid:A;tax:kingdom:Animalia", extent.Limited), 0)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if f.records.pathCalls != 1 {
		t.Errorf("raw path calls = %d, want 1", f.records.pathCalls)
	}
	if got.Taxonomy["kingdom"]["Animalia"] != 4 {
		t.Errorf("kingdom counts = %v", got.Taxonomy["kingdom"])
	}
	if got.Lineage["Arthropoda"] != "Animalia" {
		t.Errorf("lineage = %v", got.Lineage)
	}
	if len(f.meta.data) != 0 {
		t.Error("fast build must not be cached")
	}
}

func TestMap_SummaryFieldValuesWhenCold(t *testing.T) {
	f := newFixture(time.Hour)
	f.summaries.docs = []db.Document{
		{"kingdom": "Plantae", "phylum": "Tracheophyta", "counts": map[string]any{"specimens": json.Number("7")}},
	}

	got, err := f.svc.Map(context.Background(), encode(t, "geo:country:Peru", extent.Limited), 0)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if f.documents.calls != 0 || f.records.pathCalls != 0 {
		t.Error("cold summary query must use the field-value find")
	}
	wantFields := append(append([]string{}, domtax.Ranks...), "counts.specimens")
	if diff := cmp.Diff(wantFields, f.summaries.fields); diff != "" {
		t.Errorf("projected fields mismatch (-want +got):\n%s", diff)
	}
	if got.Taxonomy["phylum"]["Tracheophyta"] != 7 {
		t.Errorf("taxonomy = %v", got.Taxonomy)
	}
}

func TestMap_SummaryDocumentsWhenWarm(t *testing.T) {
	f := newFixture(time.Hour)
	f.documents.docs = []db.Document{
		{"kingdom": "Fungi", "counts": map[string]any{"specimens": 2.0}},
		nil,
	}
	q, _ := triplet.Sanitize("tax:kingdom:Fungi", extent.Full)
	f.ids.warm[identity.Encode(q)] = true

	got, err := f.svc.Map(context.Background(), encode(t, "tax:kingdom:Fungi", extent.Large), 0)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if f.documents.calls != 1 {
		t.Errorf("summary document loads = %d, want 1", f.documents.calls)
	}
	if got.Taxonomy["kingdom"]["Fungi"] != 2 {
		t.Errorf("taxonomy = %v", got.Taxonomy)
	}
}

func TestMap_SlowBuildIsCached(t *testing.T) {
	f := newFixture(2 * time.Second)
	f.svc.now = slowClock(3 * time.Second)
	f.records.paths = []domtax.Path{path(1, "Animalia")}
	id := encode(t, "ids:processid:A", extent.Limited)

	if _, err := f.svc.Map(context.Background(), id, 10); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if f.meta.ttl != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", f.meta.ttl)
	}

	// Another extent of the same query reads the cached map.
	if _, err := f.svc.Map(context.Background(), encode(t, "ids:processid:A", extent.Full), 10); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if f.records.pathCalls != 1 {
		t.Errorf("raw path calls = %d, want 1", f.records.pathCalls)
	}
}

func TestMap_BadIdentity(t *testing.T) {
	f := newFixture(time.Hour)
	if _, err := f.svc.Map(context.Background(), "not-an-id", 0); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestByQuery_DistinctSpecimensPerRank(t *testing.T) {
	f := newFixture(time.Hour)
	f.records.rows["kingdom"] = []aggregate.GroupRow{
		{Column: "kingdom", Value: "Animalia", ProcessIDs: []string{"A", "A", "B"}},
	}
	f.records.rows["genus"] = []aggregate.GroupRow{
		{Column: "genus", Value: "Danaus", ProcessIDs: []string{"A"}},
		{Column: "genus", Value: nil, ProcessIDs: []string{"B"}},
	}

	got, err := f.svc.ByQuery(context.Background(), encode(t, "tax:kingdom:Animalia", extent.Limited))
	if err != nil {
		t.Fatalf("ByQuery: %v", err)
	}
	if len(got) != len(domtax.Ranks) {
		t.Errorf("ranks = %d, want %d", len(got), len(domtax.Ranks))
	}
	if got["kingdom"]["Animalia"] != 2 || got["genus"]["Danaus"] != 1 || len(got["genus"]) != 1 {
		t.Errorf("counts = %v", got)
	}
}

func TestByQuery_StoreError(t *testing.T) {
	f := newFixture(time.Hour)
	f.records.groupByErr = &db.Error{Op: db.OpGroupBy, Err: errors.New("down")}

	_, err := f.svc.ByQuery(context.Background(), encode(t, "tax:kingdom:Animalia", extent.Limited))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func node(taxid, parent int64, rank, name string) domtax.Node {
	return domtax.Node{TaxID: taxid, ParentTaxID: parent, Rank: rank, Name: name,
		Doc: map[string]any{"taxid": taxid, "taxon": name}}
}

func TestHierarchy_AncestorsAndChildren(t *testing.T) {
	f := newFixture(time.Hour)
	genus := node(30, 20, "genus", "Danaus")
	f.nodes.byName["genus/Danaus"] = []domtax.Node{genus}
	f.nodes.byTaxID[20] = node(20, 10, "family", "Nymphalidae")
	f.nodes.byTaxID[10] = node(10, 0, "kingdom", "Animalia")
	f.nodes.children[30] = []domtax.Node{node(40, 30, "species", "Danaus plexippus")}

	got, ok, err := f.svc.Hierarchy(context.Background(), "Danaus", "genus")
	if err != nil || !ok {
		t.Fatalf("Hierarchy = %v, %v", ok, err)
	}
	for rank, want := range map[string]int{"kingdom": 1, "family": 1, "genus": 1, "species": 1, "order": 0} {
		if len(got[rank]) != want {
			t.Errorf("%s nodes = %d, want %d", rank, len(got[rank]), want)
		}
	}
}

func TestHierarchy_CycleStops(t *testing.T) {
	f := newFixture(time.Hour)
	f.nodes.byName["genus/Loop"] = []domtax.Node{node(2, 1, "genus", "Loop")}
	f.nodes.byTaxID[1] = node(1, 2, "family", "Back")

	got, ok, err := f.svc.Hierarchy(context.Background(), "Loop", "genus")
	if err != nil || !ok {
		t.Fatalf("Hierarchy = %v, %v", ok, err)
	}
	if len(got["family"]) != 1 || len(got["genus"]) != 1 {
		t.Errorf("hierarchy = %v", got)
	}
	if f.nodes.lookups > len(domtax.Ranks) {
		t.Errorf("parent lookups = %d, walk did not stop", f.nodes.lookups)
	}
}

func TestHierarchy_NotFound(t *testing.T) {
	f := newFixture(time.Hour)
	_, ok, err := f.svc.Hierarchy(context.Background(), "Nothing", "genus")
	if err != nil || ok {
		t.Fatalf("Hierarchy = %v, %v; want not found", ok, err)
	}
}

func TestHierarchy_UnknownRank(t *testing.T) {
	f := newFixture(time.Hour)
	_, _, err := f.svc.Hierarchy(context.Background(), "X", "domain")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}
