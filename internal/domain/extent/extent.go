// Package extent defines how many document IDs a query resolves to.
package extent

import (
	"fmt"

	"github.com/kailas-cloud/bioportal/internal/domain"
)

// Extent is the result-size policy marker carried at the end of a query.
type Extent string

const (
	// Zero never executes the query.
	Zero Extent = "zero"
	// Limited caps the result at Policy.Limited IDs.
	Limited Extent = "limited"
	// Large caps the result at Policy.Large IDs.
	Large Extent = "large"
	// Full is unbounded.
	Full Extent = "full"
)

// Default is used when a request does not name an extent.
const Default = Limited

// Parse validates an extent marker. An empty string yields Default.
func Parse(s string) (Extent, error) {
	switch Extent(s) {
	case "":
		return Default, nil
	case Zero, Limited, Large, Full:
		return Extent(s), nil
	default:
		return "", domain.NewParseError(s, "extent must be one of zero, limited, large, full")
	}
}

// Valid reports whether e is a known extent.
func (e Extent) Valid() bool {
	switch e {
	case Zero, Limited, Large, Full:
		return true
	}
	return false
}

func (e Extent) String() string { return string(e) }

// Policy holds the numeric caps of the bounded extents.
type Policy struct {
	Limited int
	Large   int
}

// DefaultPolicy returns the caps used by the portal.
func DefaultPolicy() Policy {
	return Policy{Limited: 1000, Large: 20000}
}

// Validate checks that the caps are usable.
func (p Policy) Validate() error {
	if p.Limited <= 0 || p.Large <= 0 {
		return fmt.Errorf("extent caps must be positive, got limited=%d large=%d", p.Limited, p.Large)
	}
	if p.Large < p.Limited {
		return fmt.Errorf("large cap %d is below limited cap %d", p.Large, p.Limited)
	}
	return nil
}

// Limit returns the row cap for e. bounded is false for Full.
func (p Policy) Limit(e Extent) (n int, bounded bool) {
	switch e {
	case Zero:
		return 0, true
	case Limited:
		return p.Limited, true
	case Large:
		return p.Large, true
	case Full:
		return 0, false
	}
	return 0, true
}

// ExtentLimit is the value reported to clients: nil for an unbounded extent.
func (p Policy) ExtentLimit(e Extent) *int {
	n, bounded := p.Limit(e)
	if !bounded {
		return nil
	}
	return &n
}
