package index

import (
	"sort"

	"github.com/temirov/repo2txt/internal/types"
)

// Snapshot is a consistent, unshared copy of an index.
type Snapshot struct {
	Root  string
	Nodes map[string]types.Node
}

// IsEligible reports whether a node is exported: a selected file whose immediate
// parent, when present in the snapshot, is selected too.
func (snapshot Snapshot) IsEligible(node types.Node) bool {
	if node.IsDirectory || !node.Selected {
		return false
	}
	if !node.HasParent() {
		return true
	}
	parent, exists := snapshot.Nodes[node.ParentID]
	if !exists {
		return true
	}
	return parent.Selected
}

// Eligible returns the exported files ordered by relative path.
func (snapshot Snapshot) Eligible() []types.Node {
	eligible := make([]types.Node, 0, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		if snapshot.IsEligible(node) {
			eligible = append(eligible, node)
		}
	}
	sort.Slice(eligible, func(left, right int) bool {
		return eligible[left].RelativePath < eligible[right].RelativePath
	})
	return eligible
}

// Tree groups nodes by parent id with each group in display order.
func (snapshot Snapshot) Tree() map[string][]types.Node {
	tree := make(map[string][]types.Node)
	for _, node := range snapshot.Nodes {
		tree[node.ParentID] = append(tree[node.ParentID], node)
	}
	for parentID := range tree {
		types.SortNodes(tree[parentID])
	}
	return tree
}
