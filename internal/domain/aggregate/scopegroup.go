package aggregate

import (
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// ScopeGroup names a family of precomputed summary documents.
type ScopeGroup string

// Scope groups served by precomputed summaries.
const (
	GroupNone    ScopeGroup = ""
	GroupSummary ScopeGroup = "summary"
	GroupSeqsite ScopeGroup = "seqsite"
	GroupBin     ScopeGroup = "bin"
	GroupDataset ScopeGroup = "dataset"
)

var groupOrder = []ScopeGroup{GroupSummary, GroupSeqsite, GroupBin, GroupDataset}

var groupMembers = map[ScopeGroup]func(triplet.Triplet) bool{
	GroupSummary: func(t triplet.Triplet) bool {
		return t.Scope == fieldtable.ScopeGeo ||
			t.Scope == fieldtable.ScopeTax ||
			(t.Scope == fieldtable.ScopeInst && t.Subscope == "name")
	},
	GroupSeqsite: func(t triplet.Triplet) bool {
		return t.Scope == fieldtable.ScopeInst && t.Subscope == "seqsite"
	},
	GroupBin: func(t triplet.Triplet) bool {
		return t.Scope == fieldtable.ScopeBin
	},
	GroupDataset: func(t triplet.Triplet) bool {
		return t.Scope == fieldtable.ScopeRecordsetCode
	},
}

// DetectScopeGroup returns the group whose summaries can answer ts, or GroupNone.
func DetectScopeGroup(ts []triplet.Triplet) ScopeGroup {
	if len(ts) == 0 {
		return GroupNone
	}
	for _, g := range groupOrder {
		member := groupMembers[g]
		all := true
		for _, t := range ts {
			if !member(t) {
				all = false
				break
			}
		}
		if all {
			return g
		}
	}
	return GroupNone
}
