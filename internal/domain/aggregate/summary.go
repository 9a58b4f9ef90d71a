package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Counts maps a field value to its frequency.
type Counts map[string]int64

// Total sums all frequencies.
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// Summary is a set of per-field frequencies plus fields collapsed to scalars.
// It serializes as one flat JSON object.
type Summary struct {
	Counts  map[string]Counts
	Scalars map[string]int64
}

// NewSummary returns an empty summary.
func NewSummary() Summary {
	return Summary{Counts: make(map[string]Counts), Scalars: make(map[string]int64)}
}

// Empty reports whether the summary holds no entries.
func (s Summary) Empty() bool { return len(s.Counts) == 0 && len(s.Scalars) == 0 }

// Add increments value of field by n.
func (s Summary) Add(field, value string, n int64) {
	c, ok := s.Counts[field]
	if !ok {
		c = make(Counts)
		s.Counts[field] = c
	}
	c[value] += n
}

// MarshalJSON renders counts and scalars side by side.
func (s Summary) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Counts)+len(s.Scalars))
	for k, v := range s.Counts {
		out[k] = v
	}
	for k, v := range s.Scalars {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flat form written by MarshalJSON.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewSummary()
	for k, v := range raw {
		var counts map[string]float64
		if err := json.Unmarshal(v, &counts); err == nil {
			c := make(Counts, len(counts))
			for val, n := range counts {
				c[val] = int64(math.Round(n))
			}
			s.Counts[k] = c
			continue
		}
		var n float64
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("summary field %q: %w", k, err)
		}
		s.Scalars[k] = int64(math.Round(n))
	}
	return nil
}

// Flatten lifts the aggregates of a summary document next to its counts.
func Flatten(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "aggregates" {
			continue
		}
		out[k] = v
	}
	if aggs, ok := doc["aggregates"].(map[string]any); ok {
		for k, v := range aggs {
			out[k] = v
		}
	}
	return out
}

// Reduce sums the object-valued entries of flattened summary documents key-wise.
// Non-object entries are ignored.
func Reduce(docs []map[string]any) Summary {
	s := NewSummary()
	for _, doc := range docs {
		for field, v := range doc {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if _, seen := s.Counts[field]; !seen {
				s.Counts[field] = make(Counts, len(m))
			}
			for key, n := range m {
				s.Counts[field][key] += toInt64(n)
			}
		}
	}
	return s
}

// Project keeps the requested fields of a reduced snapshot.
// Counts-only entries not requested by name are dropped.
func Project(snapshot Summary, fields []Field) Summary {
	out := NewSummary()
	requested := make(map[string]bool, len(fields))
	for _, f := range fields {
		requested[f.Name] = true
		if c, ok := snapshot.Counts[f.SnapshotKey]; ok {
			out.Counts[f.SnapshotKey] = c
		}
	}
	if counts, ok := out.Counts[CountsKey]; ok {
		kept := make(Counts)
		for k, v := range counts {
			if requested[k] {
				kept[k] = v
			}
		}
		out.Counts[CountsKey] = kept
	}
	return out
}

// GroupRow is one (field, value) group of primary records.
type GroupRow struct {
	Column     string
	Value      any
	ProcessIDs []string
}

// FromGroupRows builds a summary from grouped primary records.
// Counts-only fields fold into the counts entry.
func FromGroupRows(rows []GroupRow, fields []Field) Summary {
	byColumn := make(map[string]Field, len(fields))
	for _, f := range fields {
		byColumn[f.Column] = f
	}

	s := NewSummary()
	for _, row := range rows {
		f, ok := byColumn[row.Column]
		if !ok {
			continue
		}
		val, ok := FormatValue(row.Value)
		if !ok {
			continue
		}
		n := int64(len(row.ProcessIDs))
		if f.Centricity == SpecimenCentric {
			n = int64(CountDistinct(row.ProcessIDs))
		}
		if f.CountsOnly() {
			s.Add(CountsKey, f.Name, n)
			continue
		}
		s.Add(f.Name, val, n)
	}
	return s
}

// ApplyReduce collapses the named fields to the sum of their frequencies.
// The counts entry is never collapsed.
func ApplyReduce(s Summary, names []string) Summary {
	for _, name := range names {
		if name == CountsKey {
			continue
		}
		c, ok := s.Counts[name]
		if !ok {
			continue
		}
		s.Scalars[name] = c.Total()
		delete(s.Counts, name)
	}
	return s
}

// FormatValue renders a grouped value as a frequency key.
// Nil and empty values report false.
func FormatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		if !x {
			return "", false
		}
		return "True", true
	case map[string]any:
		if len(x) == 0 {
			return "", false
		}
		b, err := json.Marshal(x)
		if err != nil {
			return "", false
		}
		return string(b), true
	case []any:
		if len(x) == 0 {
			return "", false
		}
		return formatTuple(x), true
	default:
		if n, ok := Number(x); ok {
			if n == 0 {
				return "", false
			}
			return formatNumber(x), true
		}
		return fmt.Sprint(x), true
	}
}

func formatTuple(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		switch x := it.(type) {
		case string:
			parts[i] = "'" + x + "'"
		case nil:
			parts[i] = "None"
		default:
			parts[i] = formatNumber(x)
		}
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatNumber(v any) string {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return formatNumber(float64(x))
	case json.Number:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Number converts a decoded numeric value to float64.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt64(v any) int64 {
	n, _ := Number(v)
	return int64(math.Round(n))
}

// CountDistinct returns the number of distinct ids.
func CountDistinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
