// Package output renders workspace results as raw text, JSON or TOON.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alpkeskin/gotoon"

	"github.com/temirov/repo2txt/internal/types"
	"github.com/temirov/repo2txt/internal/utils"
)

const (
	indentPrefix        = ""
	indentSpacer        = "  "
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
	deselectedSuffix    = " (deselected)"
	unsupportedFormat   = "unsupported output format %q"
)

// NodeType values used in listings.
const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"
)

// ListedNode is the serialized form of one node.
type ListedNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size,omitempty"`
	Tokens   int    `json:"tokens,omitempty"`
	Selected bool   `json:"selected"`
	Expanded bool   `json:"expanded,omitempty"`
}

// Listing is a rendered tree: the root, every node in display order and file totals.
type Listing struct {
	Root    string       `json:"root"`
	Nodes   []ListedNode `json:"nodes"`
	Summary types.Stats  `json:"summary"`
}

// SearchResult lists the ids matching a query.
type SearchResult struct {
	Query   string   `json:"query"`
	Matches []string `json:"matches"`
}

// ExportReport describes a finished export without its content.
type ExportReport struct {
	OutputPath  string      `json:"output_path,omitempty"`
	IsTruncated bool        `json:"is_truncated"`
	Copied      bool        `json:"copied,omitempty"`
	Stats       types.Stats `json:"stats"`
}

// ValidateFormat reports an error for formats other than raw, json and toon.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case types.FormatRaw, types.FormatJSON, types.FormatToon:
		return nil
	default:
		return fmt.Errorf(unsupportedFormat, format)
	}
}

// NewListing converts index nodes, already in display order, into a Listing.
// The summary totals every file whose size or token count is known.
func NewListing(root string, nodes []types.Node) Listing {
	listing := Listing{Root: root, Nodes: make([]ListedNode, 0, len(nodes))}
	for _, node := range nodes {
		listedNode := ListedNode{
			ID:       node.ID,
			Name:     node.Name,
			Type:     NodeTypeFile,
			Size:     node.SizeOrZero(),
			Tokens:   node.TokensOrZero(),
			Selected: node.Selected,
			Expanded: node.Expanded,
		}
		if node.IsDirectory {
			listedNode.Type = NodeTypeDirectory
		} else {
			listing.Summary.Files++
			listing.Summary.Size += listedNode.Size
			listing.Summary.Tokens += listedNode.Tokens
		}
		listing.Nodes = append(listing.Nodes, listedNode)
	}
	return listing
}

// RenderListing renders a listing in the requested format.
func RenderListing(format string, listing Listing, nodes []types.Node, includeSummary bool) (string, error) {
	return render(format, listing, func(writer io.Writer) {
		WriteTreeRaw(writer, listing.Root, nodes)
		if includeSummary {
			fmt.Fprintln(writer, FormatSummaryLine(listing.Summary))
		}
	})
}

// RenderStats renders aggregate totals.
func RenderStats(format string, stats types.Stats) (string, error) {
	return render(format, stats, func(writer io.Writer) {
		fmt.Fprintln(writer, FormatSummaryLine(stats))
	})
}

// RenderSearch renders matching ids, one per line in raw form.
func RenderSearch(format string, result SearchResult) (string, error) {
	if result.Matches == nil {
		result.Matches = []string{}
	}
	return render(format, result, func(writer io.Writer) {
		for _, match := range result.Matches {
			fmt.Fprintln(writer, match)
		}
	})
}

// RenderExportReport renders the outcome of an export.
func RenderExportReport(format string, report ExportReport) (string, error) {
	return render(format, report, func(writer io.Writer) {
		if report.OutputPath != "" {
			fmt.Fprintf(writer, "Wrote %s\n", report.OutputPath)
		}
		if report.Copied {
			fmt.Fprintln(writer, "Copied to clipboard")
		}
		fmt.Fprintln(writer, FormatSummaryLine(report.Stats))
	})
}

func render(format string, value interface{}, writeRaw func(io.Writer)) (string, error) {
	switch strings.ToLower(format) {
	case types.FormatJSON:
		encoded, encodeErr := json.MarshalIndent(value, indentPrefix, indentSpacer)
		if encodeErr != nil {
			return "", fmt.Errorf("encode json: %w", encodeErr)
		}
		return string(encoded) + "\n", nil
	case types.FormatToon:
		encoded, encodeErr := gotoon.Encode(value)
		if encodeErr != nil {
			return "", fmt.Errorf("encode toon: %w", encodeErr)
		}
		return strings.TrimRight(encoded, "\n") + "\n", nil
	case types.FormatRaw, "":
		var buffer bytes.Buffer
		writeRaw(&buffer)
		return buffer.String(), nil
	default:
		return "", fmt.Errorf(unsupportedFormat, format)
	}
}

// WriteTreeRaw draws the nodes below root with box connectors. Files show their
// token count and size once known; deselected entries are marked.
func WriteTreeRaw(writer io.Writer, root string, nodes []types.Node) {
	children := make(map[string][]types.Node)
	for _, node := range nodes {
		children[node.ParentID] = append(children[node.ParentID], node)
	}
	fmt.Fprintln(writer, root)
	var renderChildren func(parentID string, prefix string)
	renderChildren = func(parentID string, prefix string) {
		siblings := children[parentID]
		for siblingIndex, node := range siblings {
			connector, childPrefix := treeBranchConnector, prefix+treeBranchPadding
			if siblingIndex == len(siblings)-1 {
				connector, childPrefix = treeLastConnector, prefix+treeLastPadding
			}
			fmt.Fprintf(writer, "%s%s%s\n", prefix+connector, node.Name, nodeDetails(node))
			if node.IsDirectory {
				renderChildren(node.ID, childPrefix)
			}
		}
	}
	renderChildren("", "")
}

func nodeDetails(node types.Node) string {
	var details []string
	if !node.IsDirectory {
		if node.TokenCount != nil {
			details = append(details, fmt.Sprintf("%d tokens", *node.TokenCount))
		}
		if node.Size != nil {
			details = append(details, utils.FormatFileSize(*node.Size))
		}
	}
	suffix := ""
	if len(details) > 0 {
		suffix = " (" + strings.Join(details, ", ") + ")"
	}
	if !node.Selected {
		suffix += deselectedSuffix
	}
	return suffix
}

// FormatSummaryLine formats totals into the raw summary line.
func FormatSummaryLine(stats types.Stats) string {
	label := "files"
	if stats.Files == 1 {
		label = "file"
	}
	tokenSuffix := ""
	if stats.Tokens > 0 {
		tokenSuffix = fmt.Sprintf(", %s tokens", utils.FormatTokenCount(stats.Tokens))
	}
	return fmt.Sprintf("Summary: %d %s, %s%s", stats.Files, label, utils.FormatFileSize(stats.Size), tokenSuffix)
}
