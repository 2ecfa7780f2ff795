package generator

import (
	"strings"

	"github.com/temirov/repo2txt/internal/index"
	"github.com/temirov/repo2txt/internal/types"
)

const (
	selectedMarker   = "[✓]"
	unselectedMarker = "[ ]"
	directoryIcon    = "▶ "
	branchPrefix     = "├── "
	lastBranchPrefix = "└── "
	continuePrefix   = "│   "
	emptyPrefix      = "    "
)

// RenderTree draws every node of the snapshot. A directory's children are shown
// when it is expanded or selected.
func RenderTree(snapshot index.Snapshot) string {
	tree := snapshot.Tree()
	var lines []string
	var traverse func(node types.Node, prefix string, isLast bool)
	traverse = func(node types.Node, prefix string, isLast bool) {
		marker := unselectedMarker
		if node.Selected {
			marker = selectedMarker
		}
		icon := ""
		if node.IsDirectory {
			icon = directoryIcon
		}
		currentPrefix, nextPrefix := branchPrefix, continuePrefix
		if isLast {
			currentPrefix, nextPrefix = lastBranchPrefix, emptyPrefix
		}
		lines = append(lines, prefix+currentPrefix+marker+" "+icon+node.Name)

		if !node.IsDirectory || !(node.Expanded || node.Selected) {
			return
		}
		children := tree[node.ID]
		for childIndex, child := range children {
			traverse(child, prefix+nextPrefix, childIndex == len(children)-1)
		}
	}

	roots := tree[""]
	for rootIndex, root := range roots {
		traverse(root, "", rootIndex == len(roots)-1)
	}
	return strings.Join(lines, "\n")
}
