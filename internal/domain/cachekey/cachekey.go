// Package cachekey names every cached artifact of the portal.
package cachekey

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the artifact a key names.
type Kind int

// Key kinds.
const (
	KindQueryIDs Kind = iota + 1
	KindSummaryIDs
	KindDocument
	KindSummary
	KindMap
	KindTaxMap
	KindAncillarySet
	KindStats
)

func (k Kind) String() string {
	switch k {
	case KindQueryIDs:
		return "query_ids"
	case KindSummaryIDs:
		return "summary_ids"
	case KindDocument:
		return "document"
	case KindSummary:
		return "summary"
	case KindMap:
		return "map"
	case KindTaxMap:
		return "tax_map"
	case KindAncillarySet:
		return "ancillary_set"
	case KindStats:
		return "stats"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Durable reports whether keys of this kind live in the durable ID cache.
func (k Kind) Durable() bool {
	return k == KindQueryIDs || k == KindSummaryIDs
}

// Key is a tagged cache key. The zero value is invalid.
type Key struct {
	kind  Kind
	parts []string
}

// QueryIDs names the resolved document-ID list of a query identity.
func QueryIDs(queryID string) Key { return Key{kind: KindQueryIDs, parts: []string{queryID}} }

// SummaryIDs names the resolved summary-document-ID list of a query identity.
func SummaryIDs(queryID string) Key { return Key{kind: KindSummaryIDs, parts: []string{queryID}} }

// Document names a single stored document.
func Document(docID string) Key { return Key{kind: KindDocument, parts: []string{docID}} }

// Summary names the reduced aggregate snapshot of a query identity.
func Summary(queryID string) Key { return Key{kind: KindSummary, parts: []string{queryID}} }

// Map names the coordinate map of a query.
func Map(queryID string, offset float64, countryISO string) Key {
	return Key{kind: KindMap, parts: []string{
		queryID,
		strconv.FormatFloat(offset, 'f', -1, 64),
		countryISO,
	}}
}

// TaxMap names the taxonomy map of a query at a node threshold.
func TaxMap(queryID string, nodeThreshold int) Key {
	return Key{kind: KindTaxMap, parts: []string{queryID, strconv.Itoa(nodeThreshold)}}
}

// AncillarySet names a joined registry/summary set.
func AncillarySet(ancillary, derived, ancillaryKey, derivedKey, joinType string) Key {
	return Key{kind: KindAncillarySet, parts: []string{ancillary, derived, ancillaryKey, derivedKey, joinType}}
}

// Stats names the global statistics snapshot.
func Stats() Key { return Key{kind: KindStats} }

// Kind returns the key kind.
func (k Key) Kind() Kind { return k.kind }

// ID returns the first key component (the query identity or document ID).
func (k Key) ID() string {
	if len(k.parts) == 0 {
		return ""
	}
	return k.parts[0]
}

// Valid reports whether the key was built by a constructor.
func (k Key) Valid() bool { return k.kind != 0 }

// Layout selects how keys render in the shared key-value store.
type Layout int

// Key layouts.
const (
	// LayoutTyped tags every key with its kind under a version segment.
	LayoutTyped Layout = iota
	// LayoutBare keys IDs, documents and summaries by the bare identifier,
	// the layout of caches warmed by other writers.
	LayoutBare
)

const typedVersion = "v1:"

// ParseLayout maps a configured layout name to a Layout. Empty selects LayoutTyped.
func ParseLayout(name string) (Layout, error) {
	switch name {
	case "", "typed":
		return LayoutTyped, nil
	case "bare":
		return LayoutBare, nil
	}
	return 0, fmt.Errorf("unknown key layout %q", name)
}

// Render returns the storage name of the key under prefix.
func (k Key) Render(prefix string, layout Layout) string {
	if layout == LayoutBare {
		return prefix + k.bare()
	}
	return prefix + typedVersion + k.String()
}

// String renders the unprefixed kind-tagged name. Names of different kinds never collide.
func (k Key) String() string {
	switch k.kind {
	case KindQueryIDs:
		return "query-ids:" + k.ID()
	case KindSummaryIDs:
		return "summary-ids:" + k.ID()
	case KindDocument:
		return "doc:" + k.ID()
	case KindSummary:
		return "summary:" + k.ID()
	case KindMap:
		return "map:" + strings.Join(k.parts, ",")
	case KindTaxMap:
		return "tax-map:" + strings.Join(k.parts, ",")
	case KindAncillarySet:
		return "ancillary-set:" + strings.Join(k.parts, ",")
	case KindStats:
		return "stats"
	}
	return ""
}

func (k Key) bare() string {
	switch k.kind {
	case KindQueryIDs, KindSummaryIDs, KindDocument, KindSummary:
		return k.ID()
	}
	return k.String()
}

// Entry is one value to cache under Key.
type Entry struct {
	Key   Key
	Value any
}
