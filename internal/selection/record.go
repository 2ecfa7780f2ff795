// Package selection reads and writes the per-root selection record.
package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/repo2txt/internal/index"
	"github.com/temirov/repo2txt/internal/types"
	"github.com/temirov/repo2txt/internal/utils"
)

// RecordVersion is written into every record.
const RecordVersion = "1.0"

// Record is the on-disk selection state of one root.
type Record struct {
	Version string       `json:"version"`
	Nodes   []RecordNode `json:"nodes"`
}

// RecordNode mirrors one indexed node. Children is omitted when empty.
type RecordNode struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	IsDirectory bool         `json:"is_directory"`
	Selected    bool         `json:"selected"`
	Expanded    bool         `json:"expanded"`
	Children    []RecordNode `json:"children,omitempty"`
}

// State is the restored part of a node.
type State struct {
	Selected bool
	Expanded bool
}

// RecordPath returns the location of the record for root.
func RecordPath(root string) string {
	return filepath.Join(root, utils.RecordFileName)
}

// Read parses the record of root. A missing record yields found=false and no error;
// an unparsable record yields an error wrapping types.ErrFormat.
//
// #nosec G304
func Read(root string) (Record, bool, error) {
	recordPath := RecordPath(root)
	content, readErr := os.ReadFile(recordPath)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read selection record %s: %w", recordPath, readErr)
	}
	var record Record
	if decodeErr := json.Unmarshal(content, &record); decodeErr != nil {
		return Record{}, false, fmt.Errorf("parse selection record %s: %w: %v", recordPath, types.ErrFormat, decodeErr)
	}
	return record, true, nil
}

// Flatten maps every recorded relative path to its state.
func Flatten(record Record) map[string]State {
	states := make(map[string]State)
	var walk func(nodes []RecordNode)
	walk = func(nodes []RecordNode) {
		for _, node := range nodes {
			states[node.Path] = State{Selected: node.Selected, Expanded: node.Expanded}
			walk(node.Children)
		}
	}
	walk(record.Nodes)
	return states
}

// LoadState returns the flattened prior state of root. Any read or parse failure
// is logged and treated as no prior state.
func LoadState(root string, logger *zap.Logger) map[string]State {
	if logger == nil {
		logger = zap.NewNop()
	}
	record, found, err := Read(root)
	if err != nil {
		logger.Warn("ignoring selection record", zap.String("root", root), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	return Flatten(record)
}

// BuildRecord captures the selection and expansion state of every node in the snapshot.
func BuildRecord(snapshot index.Snapshot) Record {
	tree := snapshot.Tree()
	var build func(parentID string) []RecordNode
	build = func(parentID string) []RecordNode {
		children := tree[parentID]
		if len(children) == 0 {
			return nil
		}
		recordNodes := make([]RecordNode, 0, len(children))
		for _, child := range children {
			recordNode := RecordNode{
				Name:        child.Name,
				Path:        child.RelativePath,
				IsDirectory: child.IsDirectory,
				Selected:    child.Selected,
				Expanded:    child.Expanded,
			}
			if child.IsDirectory {
				recordNode.Children = build(child.ID)
			}
			recordNodes = append(recordNodes, recordNode)
		}
		return recordNodes
	}
	nodes := build("")
	if nodes == nil {
		nodes = []RecordNode{}
	}
	return Record{Version: RecordVersion, Nodes: nodes}
}

// Nodes converts a record into index nodes under root. Sizes are zero and token counts unknown.
func Nodes(root string, record Record) []types.Node {
	var nodes []types.Node
	var walk func(recordNodes []RecordNode, parentID string)
	walk = func(recordNodes []RecordNode, parentID string) {
		for _, recordNode := range recordNodes {
			relativePath := path.Clean(filepath.ToSlash(recordNode.Path))
			nodes = append(nodes, types.Node{
				ID:           relativePath,
				ParentID:     parentID,
				Name:         recordNode.Name,
				Path:         filepath.Join(root, filepath.FromSlash(relativePath)),
				RelativePath: relativePath,
				IsDirectory:  recordNode.IsDirectory,
				Size:         types.Int64Pointer(0),
				Selected:     recordNode.Selected,
				Expanded:     recordNode.Expanded,
			})
			walk(recordNode.Children, relativePath)
		}
	}
	walk(record.Nodes, "")
	return nodes
}
