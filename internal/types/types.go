// Package types defines every cross‑package data structure used by repo2txt.
package types

import "sort"

const (
	StagePreparing  = "preparing"
	StageProcessing = "processing"
	StageWriting    = "writing"
	StageCompleted  = "completed"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatToon = "toon"

	// PathSeparator delimits segments of node identifiers regardless of platform.
	PathSeparator = "/"
)

// Node is one filesystem entry tracked by the index. ID equals RelativePath.
type Node struct {
	ID           string `json:"id"`
	ParentID     string `json:"parent_id,omitempty"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
	IsDirectory  bool   `json:"is_directory"`
	// Size is nil until measured.
	Size *int64 `json:"size"`
	// TokenCount is nil until computed; binary content always counts zero.
	TokenCount *int `json:"token_count"`
	Selected   bool `json:"selected"`
	Expanded   bool `json:"expanded"`
}

// HasParent reports whether the node sits below a top-level entry.
func (node Node) HasParent() bool {
	return node.ParentID != ""
}

// SizeOrZero returns the measured size or zero when it is unknown.
func (node Node) SizeOrZero() int64 {
	if node.Size == nil {
		return 0
	}
	return *node.Size
}

// TokensOrZero returns the computed token count or zero when it is unknown.
func (node Node) TokensOrZero() int {
	if node.TokenCount == nil {
		return 0
	}
	return *node.TokenCount
}

// Stats aggregates the eligible files of an index.
type Stats struct {
	Files  int   `json:"files"`
	Size   int64 `json:"size"`
	Tokens int   `json:"tokens"`
}

// FileUpdate carries the analyzer's measurements for one file.
type FileUpdate struct {
	ID         string `json:"id"`
	Size       int64  `json:"size"`
	TokenCount int    `json:"token_count"`
}

// ProgressEvent reports export progress.
type ProgressEvent struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Stage   string `json:"stage"`
}

// GenerateResult is returned by an export.
type GenerateResult struct {
	PreviewContent string `json:"preview_content"`
	IsTruncated    bool   `json:"is_truncated"`
	Stats          Stats  `json:"stats"`
}

// Int64Pointer returns a pointer to a copy of value.
func Int64Pointer(value int64) *int64 {
	return &value
}

// IntPointer returns a pointer to a copy of value.
func IntPointer(value int) *int {
	return &value
}

// SortNodes orders nodes directories first, then by name, then by id.
func SortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(left, right int) bool {
		return NodeLess(nodes[left], nodes[right])
	})
}

// NodeLess is the display order shared by scans, tree rendering and listings.
func NodeLess(left, right Node) bool {
	if left.IsDirectory != right.IsDirectory {
		return left.IsDirectory
	}
	if left.Name != right.Name {
		return left.Name < right.Name
	}
	return left.ID < right.ID
}
