package taxonomy

// Node is a taxonomy summary entry linked to its parent by taxid.
type Node struct {
	TaxID       int64
	ParentTaxID int64
	Rank        string
	Name        string
	// Doc is the stored summary document, returned as is.
	Doc map[string]any
}

// Tree collects nodes reachable from one taxon.
type Tree struct {
	nodes map[int64]Node
	order []int64
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[int64]Node)}
}

// Add inserts n. It reports false when the taxid is already present.
func (t *Tree) Add(n Node) bool {
	if _, ok := t.nodes[n.TaxID]; ok {
		return false
	}
	t.nodes[n.TaxID] = n
	t.order = append(t.order, n.TaxID)
	return true
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.order) }

// CanParent reports whether parent sits at a coarser rank than child.
// Unknown ranks are accepted.
func CanParent(parent, child Node) bool {
	pi, ci := RankIndex(parent.Rank), RankIndex(child.Rank)
	if pi < 0 || ci < 0 {
		return true
	}
	return pi < ci
}

// Lineage walks parent pointers from taxid to the root inside the tree.
// The walk stops at a missing parent, a repeated taxid or a rank order violation.
func (t *Tree) Lineage(taxid int64) []Node {
	cur, ok := t.nodes[taxid]
	if !ok {
		return nil
	}
	out := []Node{cur}
	seen := map[int64]bool{taxid: true}
	for {
		parent, ok := t.nodes[cur.ParentTaxID]
		if !ok || seen[parent.TaxID] || !CanParent(parent, cur) {
			return out
		}
		seen[parent.TaxID] = true
		out = append(out, parent)
		cur = parent
	}
}

// Children returns the nodes whose parent is taxid, in insertion order.
func (t *Tree) Children(taxid int64) []Node {
	var out []Node
	for _, id := range t.order {
		n := t.nodes[id]
		if n.ParentTaxID == taxid && n.TaxID != taxid {
			out = append(out, n)
		}
	}
	return out
}

// ByRank groups node documents by rank with every rank present.
func (t *Tree) ByRank() map[string][]map[string]any {
	out := make(map[string][]map[string]any, len(Ranks))
	for _, r := range Ranks {
		out[r] = []map[string]any{}
	}
	for _, id := range t.order {
		n := t.nodes[id]
		out[n.Rank] = append(out[n.Rank], n.Doc)
	}
	return out
}
