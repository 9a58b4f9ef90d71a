package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

func TestFields_CentricityIsExplicit(t *testing.T) {
	for _, f := range Fields {
		if f.Centricity != SpecimenCentric && f.Centricity != RowCentric {
			t.Errorf("field %q has no explicit centricity", f.Name)
		}
		if f.Column == "" || f.SnapshotKey == "" {
			t.Errorf("field %q is incomplete: %+v", f.Name, f)
		}
	}
}

func TestFields_SpecimenCentricSet(t *testing.T) {
	want := map[string]bool{
		"bin_uri": true, "collection_date_start": true, "coord": true, "country/ocean": true,
		"identified_by": true, "inst": true, "species": true, "specimens": true,
	}
	for _, f := range Fields {
		if got := f.Centricity == SpecimenCentric; got != want[f.Name] {
			t.Errorf("field %q: specimen-centric = %v, want %v", f.Name, got, want[f.Name])
		}
	}
}

func TestSelectFields(t *testing.T) {
	got := SelectFields([]string{"species", "unknown", "specimens", "species"})
	if len(got) != 2 || got[0].Name != "species" || got[1].Column != "processid" {
		t.Errorf("unexpected selection: %+v", got)
	}
}

func parseAll(t *testing.T, raw ...string) []triplet.Triplet {
	t.Helper()
	out := make([]triplet.Triplet, 0, len(raw))
	for _, r := range raw {
		tr, err := triplet.Parse(r)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, tr.Normalize())
	}
	return out
}

func TestDetectScopeGroup(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want ScopeGroup
	}{
		{"geo and tax", []string{"geo:country/ocean:Canada", "tax:kingdom:Animalia"}, GroupSummary},
		{"inst name", []string{"inst:name:CBG"}, GroupSummary},
		{"seqsite", []string{"inst:seqsite:CCDB"}, GroupSeqsite},
		{"bin", []string{"bin:uri:BOLD:AAA0001"}, GroupBin},
		{"dataset", []string{"recordsetcode:code:DS-ABC"}, GroupDataset},
		{"mixed", []string{"tax:kingdom:Animalia", "bin:uri:BOLD:AAA0001"}, GroupNone},
		{"ids", []string{"ids:processid:ABC-123"}, GroupNone},
		{"inst mixed", []string{"inst:name:CBG", "inst:seqsite:CCDB"}, GroupNone},
	}
	for _, tc := range tests {
		if got := DetectScopeGroup(parseAll(t, tc.in...)); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
	if DetectScopeGroup(nil) != GroupNone {
		t.Error("empty triplets must not select a group")
	}
}

func TestFromGroupRows_SpecimenCentricDedup(t *testing.T) {
	species, _ := LookupField("species")
	rows := []GroupRow{
		{Column: "species", Value: "Homo sapiens", ProcessIDs: []string{"P1", "P1", "P2"}},
	}
	s := FromGroupRows(rows, []Field{species})
	if got := s.Counts["species"]["Homo sapiens"]; got != 2 {
		t.Errorf("expected 2 distinct specimens, got %d", got)
	}
}

func TestFromGroupRows_RowCentricNoDedup(t *testing.T) {
	marker, _ := LookupField("marker_code")
	rows := []GroupRow{
		{Column: "marker_code", Value: "COI-5P", ProcessIDs: []string{"P1", "P1", "P2"}},
	}
	s := FromGroupRows(rows, []Field{marker})
	if got := s.Counts["marker_code"]["COI-5P"]; got != 3 {
		t.Errorf("expected 3 rows, got %d", got)
	}
}

func TestFromGroupRows_ValuesAndCounts(t *testing.T) {
	fields := SelectFields([]string{"coord", "specimens", "inst"})
	rows := []GroupRow{
		{Column: "coord", Value: []any{43.5, -80.25}, ProcessIDs: []string{"P1"}},
		{Column: "coord", Value: []any{}, ProcessIDs: []string{"P2"}},
		{Column: "inst", Value: nil, ProcessIDs: []string{"P3"}},
		{Column: "inst", Value: "", ProcessIDs: []string{"P4"}},
		{Column: "inst", Value: map[string]any{"a": "b"}, ProcessIDs: []string{"P5"}},
		{Column: "processid", Value: "P1", ProcessIDs: []string{"P1"}},
		{Column: "processid", Value: "P2", ProcessIDs: []string{"P2"}},
		{Column: "unrequested", Value: "x", ProcessIDs: []string{"P1"}},
	}
	s := FromGroupRows(rows, fields)
	want := map[string]Counts{
		"coord":  {"(43.5, -80.25)": 1},
		"inst":   {`{"a":"b"}`: 1},
		"counts": {"specimens": 2},
	}
	if diff := cmp.Diff(want, s.Counts); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_PointwiseSum(t *testing.T) {
	docs := []map[string]any{
		Flatten(map[string]any{
			"_id":        "tax:kingdom:Animalia",
			"aggregates": map[string]any{"species": map[string]any{"a": 2.0, "b": 1.0}},
			"counts":     map[string]any{"specimens": 3.0},
		}),
		Flatten(map[string]any{
			"_id":        "geo:country/ocean:Canada",
			"aggregates": map[string]any{"species": map[string]any{"b": 4.0, "c": 1.0}},
			"counts":     map[string]any{"specimens": 5.0, "bins": 1.0},
		}),
	}
	got := Reduce(docs)
	want := map[string]Counts{
		"species": {"a": 2, "b": 5, "c": 1},
		"counts":  {"specimens": 8, "bins": 1},
	}
	if diff := cmp.Diff(want, got.Counts); diff != "" {
		t.Errorf("reduce mismatch (-want +got):\n%s", diff)
	}

	// Reducing one document at a time and summing gives the same result.
	sum := NewSummary()
	for _, d := range docs {
		for f, c := range Reduce([]map[string]any{d}).Counts {
			for k, v := range c {
				sum.Add(f, k, v)
			}
		}
	}
	if diff := cmp.Diff(got.Counts, sum.Counts); diff != "" {
		t.Errorf("reduce is not point-wise (-all +incremental):\n%s", diff)
	}
}

// snapshotDoc renders a raw summary the way precomputed summary documents are stored.
func snapshotDoc(id string, s Summary) map[string]any {
	aggs := make(map[string]any)
	counts := make(map[string]any)
	for field, c := range s.Counts {
		m := make(map[string]any, len(c))
		for k, v := range c {
			m[k] = float64(v)
		}
		if field == CountsKey {
			counts = m
			continue
		}
		aggs[field] = m
	}
	return map[string]any{"_id": id, "aggregates": aggs, "counts": counts}
}

func TestReduce_MatchesRawOverUnion(t *testing.T) {
	fields := SelectFields([]string{"species", "inst", "marker_code", "specimens"})

	// Each specimen belongs to exactly one entity.
	entities := map[string][]GroupRow{
		"tax:genus:Danaus": {
			{Column: "species", Value: "Danaus plexippus", ProcessIDs: []string{"P1", "P1", "P2"}},
			{Column: "species", Value: "Danaus gilippus", ProcessIDs: []string{"P3"}},
			{Column: "inst", Value: "CBG", ProcessIDs: []string{"P1", "P2", "P3"}},
			{Column: "marker_code", Value: "COI-5P", ProcessIDs: []string{"P1", "P1", "P2", "P3"}},
			{Column: "processid", Value: "P1", ProcessIDs: []string{"P1", "P1"}},
			{Column: "processid", Value: "P2", ProcessIDs: []string{"P2"}},
			{Column: "processid", Value: "P3", ProcessIDs: []string{"P3"}},
		},
		"tax:genus:Papilio": {
			{Column: "species", Value: "Papilio machaon", ProcessIDs: []string{"P4", "P5"}},
			{Column: "inst", Value: "CBG", ProcessIDs: []string{"P4"}},
			{Column: "inst", Value: "SMNH", ProcessIDs: []string{"P5"}},
			{Column: "marker_code", Value: "COI-5P", ProcessIDs: []string{"P4"}},
			{Column: "marker_code", Value: "ITS", ProcessIDs: []string{"P5", "P5"}},
			{Column: "processid", Value: "P4", ProcessIDs: []string{"P4"}},
			{Column: "processid", Value: "P5", ProcessIDs: []string{"P5", "P5"}},
		},
	}

	// The raw path groups the union of both entities' records.
	type group struct{ column, value string }
	merged := make(map[group][]string)
	var order []group
	var docs []map[string]any
	for id, rows := range entities {
		for _, r := range rows {
			g := group{r.Column, r.Value.(string)}
			if _, ok := merged[g]; !ok {
				order = append(order, g)
			}
			merged[g] = append(merged[g], r.ProcessIDs...)
		}
		docs = append(docs, Flatten(snapshotDoc(id, FromGroupRows(rows, fields))))
	}
	var union []GroupRow
	for _, g := range order {
		union = append(union, GroupRow{Column: g.column, Value: g.value, ProcessIDs: merged[g]})
	}

	raw := FromGroupRows(union, fields)
	reduced := Project(Reduce(docs), fields)
	if diff := cmp.Diff(raw.Counts, reduced.Counts); diff != "" {
		t.Errorf("reduced snapshots differ from raw aggregate (-raw +reduced):\n%s", diff)
	}
	if got := raw.Counts["species"]["Danaus plexippus"]; got != 2 {
		t.Errorf("expected 2 distinct specimens, got %d", got)
	}
	if got := raw.Counts["counts"]["specimens"]; got != 5 {
		t.Errorf("expected 5 specimens, got %d", got)
	}
}

func TestProject_DropsUnrequestedCounts(t *testing.T) {
	snapshot := Summary{
		Counts: map[string]Counts{
			"species": {"a": 1},
			"inst":    {"CBG": 3},
			"counts":  {"specimens": 8, "bins": 2},
		},
	}
	got := Project(snapshot, SelectFields([]string{"species", "specimens"}))
	want := map[string]Counts{
		"species": {"a": 1},
		"counts":  {"specimens": 8},
	}
	if diff := cmp.Diff(want, got.Counts); diff != "" {
		t.Errorf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyReduce(t *testing.T) {
	s := NewSummary()
	s.Add("species", "a", 2)
	s.Add("species", "b", 3)
	s.Add("counts", "specimens", 5)

	s = ApplyReduce(s, []string{"species", "counts", "missing"})
	if s.Scalars["species"] != 5 {
		t.Errorf("expected species collapsed to 5, got %+v", s)
	}
	if _, ok := s.Counts["counts"]; !ok {
		t.Error("counts must never be collapsed")
	}
}

func TestSummary_JSON(t *testing.T) {
	s := NewSummary()
	s.Add("species", "a", 2)
	s.Scalars["inst"] = 4

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"inst":4,"species":{"a":2}}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var back Summary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s, back); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"Canada", "Canada", true},
		{"", "", false},
		{nil, "", false},
		{0.0, "", false},
		{[]any{"a"}, "('a',)", true},
		{[]any{1.0, 2.5}, "(1.0, 2.5)", true},
		{json.Number("2019"), "2019", true},
	}
	for _, tc := range tests {
		got, ok := FormatValue(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("FormatValue(%#v) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCountDistinct(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want int
	}{
		{"nil", nil, 0},
		{"unique", []string{"P1", "P2"}, 2},
		{"repeated", []string{"P1", "P1", "P2", "P1"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountDistinct(tt.ids); got != tt.want {
				t.Errorf("CountDistinct(%v) = %d, want %d", tt.ids, got, tt.want)
			}
		})
	}
}
