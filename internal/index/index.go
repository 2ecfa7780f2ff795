// Package index holds the in-memory node map shared by scans, analysis, selection edits and exports.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/temirov/repo2txt/internal/types"
)

// Index maps node ids to nodes for one root. All access takes the lock for the
// duration of the map operation only; callers never perform file I/O while holding it.
type Index struct {
	mutex sync.RWMutex
	root  string
	nodes map[string]types.Node
}

// New returns an empty index without a root.
func New() *Index {
	return &Index{nodes: make(map[string]types.Node)}
}

// Install replaces the root and every node.
func (index *Index) Install(root string, nodes []types.Node) {
	replacement := make(map[string]types.Node, len(nodes))
	for _, node := range nodes {
		replacement[node.ID] = node
	}
	index.mutex.Lock()
	defer index.mutex.Unlock()
	index.root = root
	index.nodes = replacement
}

// Merge adds nodes whose ids are not present yet and returns the ones that were added.
func (index *Index) Merge(nodes []types.Node) []types.Node {
	index.mutex.Lock()
	defer index.mutex.Unlock()
	added := make([]types.Node, 0, len(nodes))
	for _, node := range nodes {
		if _, exists := index.nodes[node.ID]; exists {
			continue
		}
		index.nodes[node.ID] = node
		added = append(added, node)
	}
	return added
}

// Root returns the scan root or an empty string before the first scan.
func (index *Index) Root() string {
	index.mutex.RLock()
	defer index.mutex.RUnlock()
	return index.root
}

// Get returns a copy of the node with the given id.
func (index *Index) Get(id string) (types.Node, bool) {
	index.mutex.RLock()
	defer index.mutex.RUnlock()
	node, exists := index.nodes[id]
	return node, exists
}

// Len returns the number of nodes.
func (index *Index) Len() int {
	index.mutex.RLock()
	defer index.mutex.RUnlock()
	return len(index.nodes)
}

// Nodes returns every node in display order.
func (index *Index) Nodes() []types.Node {
	index.mutex.RLock()
	nodes := make([]types.Node, 0, len(index.nodes))
	for _, node := range index.nodes {
		nodes = append(nodes, node)
	}
	index.mutex.RUnlock()
	types.SortNodes(nodes)
	return nodes
}

// Snapshot copies the root and node map for lock-free reading.
func (index *Index) Snapshot() Snapshot {
	index.mutex.RLock()
	defer index.mutex.RUnlock()
	nodes := make(map[string]types.Node, len(index.nodes))
	for id, node := range index.nodes {
		nodes[id] = node
	}
	return Snapshot{Root: index.root, Nodes: nodes}
}

// UpdateSelection sets the selection flag of the node and, for a directory, of every
// node whose id starts with the directory id followed by a separator.
// It reports false when the id is unknown.
func (index *Index) UpdateSelection(id string, selected bool) bool {
	index.mutex.Lock()
	defer index.mutex.Unlock()
	node, exists := index.nodes[id]
	if !exists {
		return false
	}
	node.Selected = selected
	index.nodes[id] = node
	if !node.IsDirectory {
		return true
	}
	descendantPrefix := id + types.PathSeparator
	for descendantID, descendant := range index.nodes {
		if strings.HasPrefix(descendantID, descendantPrefix) {
			descendant.Selected = selected
			index.nodes[descendantID] = descendant
		}
	}
	return true
}

// ToggleExpanded sets only the node's own expansion flag. It reports false when the id is unknown.
func (index *Index) ToggleExpanded(id string, expanded bool) bool {
	index.mutex.Lock()
	defer index.mutex.Unlock()
	node, exists := index.nodes[id]
	if !exists {
		return false
	}
	node.Expanded = expanded
	index.nodes[id] = node
	return true
}

// SelectAll selects every file. Directories keep their flag.
func (index *Index) SelectAll() {
	index.mutex.Lock()
	defer index.mutex.Unlock()
	for id, node := range index.nodes {
		if node.IsDirectory {
			continue
		}
		node.Selected = true
		index.nodes[id] = node
	}
}

// DeselectAll clears the selection flag of every node.
func (index *Index) DeselectAll() {
	index.mutex.Lock()
	defer index.mutex.Unlock()
	for id, node := range index.nodes {
		node.Selected = false
		index.nodes[id] = node
	}
}

// ApplyUpdates records analyzer measurements. Ids missing from the index are skipped.
func (index *Index) ApplyUpdates(updates []types.FileUpdate) int {
	index.mutex.Lock()
	defer index.mutex.Unlock()
	applied := 0
	for _, update := range updates {
		node, exists := index.nodes[update.ID]
		if !exists {
			continue
		}
		node.Size = types.Int64Pointer(update.Size)
		node.TokenCount = types.IntPointer(update.TokenCount)
		index.nodes[update.ID] = node
		applied++
	}
	return applied
}

// Search returns the ids of nodes whose name contains query, ignoring case.
// Closer fuzzy matches come first; ties are ordered by id.
func (index *Index) Search(query string) []string {
	lowerQuery := strings.ToLower(query)
	index.mutex.RLock()
	ids := make([]string, 0, len(index.nodes))
	names := make([]string, 0, len(index.nodes))
	for id, node := range index.nodes {
		if !strings.Contains(strings.ToLower(node.Name), lowerQuery) {
			continue
		}
		ids = append(ids, id)
		names = append(names, node.Name)
	}
	index.mutex.RUnlock()

	ranks := fuzzy.RankFindFold(query, names)
	sort.SliceStable(ranks, func(left, right int) bool {
		if ranks[left].Distance != ranks[right].Distance {
			return ranks[left].Distance < ranks[right].Distance
		}
		return ids[ranks[left].OriginalIndex] < ids[ranks[right].OriginalIndex]
	})
	matches := make([]string, 0, len(ids))
	ranked := make(map[int]struct{}, len(ranks))
	for _, rank := range ranks {
		ranked[rank.OriginalIndex] = struct{}{}
		matches = append(matches, ids[rank.OriginalIndex])
	}
	var unranked []string
	for candidateIndex, id := range ids {
		if _, exists := ranked[candidateIndex]; !exists {
			unranked = append(unranked, id)
		}
	}
	sort.Strings(unranked)
	return append(matches, unranked...)
}
