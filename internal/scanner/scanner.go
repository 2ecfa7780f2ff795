// Package scanner walks a root directory and builds the structural node list.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/repo2txt/internal/config"
	"github.com/temirov/repo2txt/internal/selection"
	"github.com/temirov/repo2txt/internal/types"
	"github.com/temirov/repo2txt/internal/utils"
)

const (
	rootMissingMessageFormat = "root directory %s: %w"
	rootNotDirectoryFormat   = "root path %s is not a directory: %w"
)

// Options configures a scan.
type Options struct {
	Root   string
	Config config.AppConfig
	// Prior maps relative paths to the selection state restored from the record.
	Prior  map[string]selection.State
	Logger *zap.Logger
}

// Scan walks the root and returns every entry that passes the ignore rules and the
// policy, sorted directories first and then by name. The root itself is never returned.
// Sizes and token counts are left unknown.
func Scan(ctx context.Context, options Options) ([]types.Node, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	root, rootErr := resolveRoot(options.Root)
	if rootErr != nil {
		return nil, rootErr
	}

	policy := config.NewPolicy(options.Config)
	matcher := utils.NewIgnoreMatcher(nil)
	rootIgnorePatterns, loadErr := config.LoadRootIgnorePatterns(root)
	if loadErr != nil {
		logger.Warn("ignoring unreadable root ignore file", zap.String("root", root), zap.Error(loadErr))
	}

	var nodes []types.Node
	walkFunction := func(currentPath string, directoryEntry fs.DirEntry, walkError error) error {
		if contextErr := ctx.Err(); contextErr != nil {
			return contextErr
		}
		if walkError != nil {
			logger.Debug("skipping unreadable entry", zap.String("path", currentPath), zap.Error(walkError))
			if directoryEntry != nil && directoryEntry.IsDir() && currentPath != root {
				return filepath.SkipDir
			}
			return nil
		}
		if currentPath == root {
			addDirectoryPatterns(matcher, options.Config, root, "", logger)
			matcher.Add(rootIgnorePatterns...)
			return nil
		}

		relativePath := utils.RelativePathOrSelf(currentPath, root)
		isDirectory := directoryEntry.IsDir()
		if matcher.Matches(relativePath, isDirectory) || policy.SkipEntry(directoryEntry.Name(), isDirectory) {
			if isDirectory {
				return filepath.SkipDir
			}
			return nil
		}
		if isDirectory {
			addDirectoryPatterns(matcher, options.Config, currentPath, relativePath, logger)
		}

		node := newNode(root, relativePath, directoryEntry.Name(), isDirectory)
		if state, known := options.Prior[relativePath]; known {
			node.Selected = state.Selected
			node.Expanded = state.Expanded
		}
		nodes = append(nodes, node)
		return nil
	}

	if walkErr := filepath.WalkDir(root, walkFunction); walkErr != nil {
		return nil, fmt.Errorf("scan %s: %w", root, walkErr)
	}
	types.SortNodes(nodes)
	logger.Debug("scan finished", zap.String("root", root), zap.Int("nodes", len(nodes)), zap.Int("ignore_rules", matcher.Len()))
	return nodes, nil
}

// ScanDirectory lists the direct children of the directory node directoryID using the
// same policy as Scan. The root ignore file is not consulted. Files carry their size.
func ScanDirectory(ctx context.Context, options Options, directoryID string) ([]types.Node, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	root, rootErr := resolveRoot(options.Root)
	if rootErr != nil {
		return nil, rootErr
	}
	directoryPath := filepath.Join(root, filepath.FromSlash(directoryID))
	entries, readErr := os.ReadDir(directoryPath)
	if readErr != nil {
		return nil, fmt.Errorf("read directory %s: %w", directoryPath, readErr)
	}

	policy := config.NewPolicy(options.Config)
	patterns, loadErr := config.LoadAncestorIgnorePatterns(root, directoryID, options.Config.UseGitignore, options.Config.UseIgnoreFile)
	if loadErr != nil {
		logger.Warn("ignoring unreadable ignore files", zap.String("directory", directoryPath), zap.Error(loadErr))
	}
	matcher := utils.NewIgnoreMatcher(patterns)
	logger.Debug("ancestor ignore rules loaded", zap.String("directory", directoryID), zap.Int("rules", matcher.Len()))

	nodes := make([]types.Node, 0, len(entries))
	for _, entry := range entries {
		if contextErr := ctx.Err(); contextErr != nil {
			return nil, contextErr
		}
		isDirectory := entry.IsDir()
		relativePath := path.Join(directoryID, entry.Name())
		if matcher.Matches(relativePath, isDirectory) || policy.SkipEntry(entry.Name(), isDirectory) {
			continue
		}
		node := newNode(root, relativePath, entry.Name(), isDirectory)
		var size int64
		if !isDirectory {
			if info, infoErr := entry.Info(); infoErr == nil {
				size = info.Size()
			} else {
				logger.Debug("stat failed", zap.String("path", node.Path), zap.Error(infoErr))
			}
		}
		node.Size = types.Int64Pointer(size)
		nodes = append(nodes, node)
	}
	types.SortNodes(nodes)
	return nodes, nil
}

func resolveRoot(root string) (string, error) {
	absoluteRoot, absErr := filepath.Abs(root)
	if absErr != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, absErr)
	}
	info, statErr := os.Stat(absoluteRoot)
	if statErr != nil {
		return "", fmt.Errorf(rootMissingMessageFormat, absoluteRoot, types.ErrNotFound)
	}
	if !info.IsDir() {
		return "", fmt.Errorf(rootNotDirectoryFormat, absoluteRoot, types.ErrPrecondition)
	}
	return absoluteRoot, nil
}

func addDirectoryPatterns(matcher *utils.IgnoreMatcher, appConfig config.AppConfig, absoluteDirectory string, relativeDirectory string, logger *zap.Logger) {
	patterns, loadErr := config.LoadDirectoryIgnorePatterns(absoluteDirectory, relativeDirectory, appConfig.UseGitignore, appConfig.UseIgnoreFile)
	if loadErr != nil {
		logger.Warn("ignoring unreadable ignore file", zap.String("directory", absoluteDirectory), zap.Error(loadErr))
		return
	}
	matcher.Add(patterns...)
}

func newNode(root string, relativePath string, name string, isDirectory bool) types.Node {
	parentID := path.Dir(relativePath)
	if parentID == "." {
		parentID = ""
	}
	return types.Node{
		ID:           relativePath,
		ParentID:     parentID,
		Name:         name,
		Path:         filepath.Join(root, filepath.FromSlash(relativePath)),
		RelativePath: relativePath,
		IsDirectory:  isDirectory,
		Selected:     true,
	}
}
