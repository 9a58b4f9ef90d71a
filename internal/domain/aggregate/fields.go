// Package aggregate reduces specimen records and precomputed summary documents
// into per-field value frequencies.
package aggregate

// Centricity says how a field counts its values.
type Centricity int

const (
	// SpecimenCentric counts distinct specimens per value.
	SpecimenCentric Centricity = iota + 1
	// RowCentric counts matching rows per value.
	RowCentric
)

// CountsKey is the summary entry holding the counts-only fields.
const CountsKey = "counts"

// Field describes one summarizable field.
type Field struct {
	// Name is the name accepted in requests and returned in responses.
	Name string
	// Column is the primary-record column aggregated on the raw path.
	Column string
	// SnapshotKey is the entry of a reduced summary snapshot holding the field.
	SnapshotKey string
	Centricity  Centricity
}

// CountsOnly reports whether the field folds into the counts entry.
func (f Field) CountsOnly() bool { return f.SnapshotKey == CountsKey }

// Fields is the allowed field table.
var Fields = []Field{
	{Name: "bin_uri", Column: "bin_uri", SnapshotKey: "bin_uri", Centricity: SpecimenCentric},
	{Name: "collection_date_start", Column: "collection_date_start", SnapshotKey: "collection_date_start", Centricity: SpecimenCentric},
	{Name: "coord", Column: "coord", SnapshotKey: "coord", Centricity: SpecimenCentric},
	{Name: "country/ocean", Column: "country/ocean", SnapshotKey: "country/ocean", Centricity: SpecimenCentric},
	{Name: "identified_by", Column: "identified_by", SnapshotKey: "identified_by", Centricity: SpecimenCentric},
	{Name: "inst", Column: "inst", SnapshotKey: "inst", Centricity: SpecimenCentric},
	{Name: "marker_code", Column: "marker_code", SnapshotKey: "marker_code", Centricity: RowCentric},
	{Name: "sequence_run_site", Column: "sequence_run_site", SnapshotKey: "sequence_run_site", Centricity: RowCentric},
	{Name: "sequence_upload_date", Column: "sequence_upload_date", SnapshotKey: "sequence_upload_date", Centricity: RowCentric},
	{Name: "species", Column: "species", SnapshotKey: "species", Centricity: SpecimenCentric},
	{Name: "specimens", Column: "processid", SnapshotKey: CountsKey, Centricity: SpecimenCentric},
}

// LookupField returns the allowed field named name.
func LookupField(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SelectFields resolves requested names, dropping unknown and repeated ones.
func SelectFields(names []string) []Field {
	var out []Field
	seen := make(map[string]bool)
	for _, n := range names {
		f, ok := LookupField(n)
		if !ok || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	return out
}
