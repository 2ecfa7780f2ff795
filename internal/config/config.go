// Package config loads application configuration, ignore files and the scan policy.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/temirov/repo2txt/internal/utils"
)

const (
	negationPrefix  = "!"
	commentPrefix   = "#"
	slashSeparator  = "/"
	recursivePrefix = "**/"
)

// LoadIgnoreFilePatterns reads an ignore file and returns its patterns in file order.
// A missing file yields no patterns and no error.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer func() {
		closeError := fileHandle.Close()
		if closeError != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", ignoreFilePath, closeError)
		}
	}()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		ignorePatterns = append(ignorePatterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return ignorePatterns, nil
}

// LoadDirectoryIgnorePatterns reads .ignore and .gitignore from absoluteDirectoryPath and
// rewrites every pattern so it applies only below relativeDirectory when matched
// against root-relative paths.
func LoadDirectoryIgnorePatterns(absoluteDirectoryPath string, relativeDirectory string, useGitignore bool, useIgnoreFile bool) ([]string, error) {
	var combinedPatterns []string

	if useGitignore {
		gitIgnoreFilePath := filepath.Join(absoluteDirectoryPath, utils.GitIgnoreFileName)
		gitIgnorePatterns, loadError := LoadIgnoreFilePatterns(gitIgnoreFilePath)
		if loadError != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", utils.GitIgnoreFileName, absoluteDirectoryPath, loadError)
		}
		combinedPatterns = append(combinedPatterns, gitIgnorePatterns...)
	}

	if useIgnoreFile {
		ignoreFilePath := filepath.Join(absoluteDirectoryPath, utils.IgnoreFileName)
		ignoreFilePatterns, loadError := LoadIgnoreFilePatterns(ignoreFilePath)
		if loadError != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", utils.IgnoreFileName, absoluteDirectoryPath, loadError)
		}
		combinedPatterns = append(combinedPatterns, ignoreFilePatterns...)
	}

	prefixedPatterns := make([]string, 0, len(combinedPatterns))
	for _, pattern := range combinedPatterns {
		prefixedPatterns = append(prefixedPatterns, PrefixPattern(relativeDirectory, pattern))
	}
	return prefixedPatterns, nil
}

// LoadAncestorIgnorePatterns collects the ignore patterns that govern the children of
// relativeDirectory: those of the root and of every directory on the way down to it.
func LoadAncestorIgnorePatterns(rootDirectoryPath string, relativeDirectory string, useGitignore bool, useIgnoreFile bool) ([]string, error) {
	var aggregatedPatterns []string
	currentRelative := ""
	segments := []string{""}
	if relativeDirectory != "" && relativeDirectory != "." {
		segments = append(segments, strings.Split(filepath.ToSlash(relativeDirectory), slashSeparator)...)
	}
	for _, segment := range segments {
		if segment != "" {
			currentRelative = path.Join(currentRelative, segment)
		}
		absoluteDirectory := filepath.Join(rootDirectoryPath, filepath.FromSlash(currentRelative))
		patterns, loadError := LoadDirectoryIgnorePatterns(absoluteDirectory, currentRelative, useGitignore, useIgnoreFile)
		if loadError != nil {
			return nil, loadError
		}
		aggregatedPatterns = append(aggregatedPatterns, patterns...)
	}
	return aggregatedPatterns, nil
}

// LoadRootIgnorePatterns reads the project ignore file from the scan root.
func LoadRootIgnorePatterns(rootDirectoryPath string) ([]string, error) {
	rootIgnorePath := filepath.Join(rootDirectoryPath, utils.RootIgnoreFileName)
	patterns, loadError := LoadIgnoreFilePatterns(rootIgnorePath)
	if loadError != nil {
		return nil, fmt.Errorf("loading %s from %s: %w", utils.RootIgnoreFileName, rootDirectoryPath, loadError)
	}
	return patterns, nil
}

// PrefixPattern rewrites a pattern read from the ignore file of relativeDirectory so it
// matches root-relative paths. Unanchored patterns may match at any depth below the directory.
func PrefixPattern(relativeDirectory string, pattern string) string {
	if relativeDirectory == "" || relativeDirectory == "." {
		return pattern
	}
	negation := ""
	body := pattern
	if strings.HasPrefix(body, negationPrefix) {
		negation = negationPrefix
		body = strings.TrimPrefix(body, negationPrefix)
	}
	trimmedBody := strings.TrimSuffix(body, slashSeparator)
	prefix := strings.TrimSuffix(filepath.ToSlash(relativeDirectory), slashSeparator) + slashSeparator
	if strings.HasPrefix(trimmedBody, slashSeparator) || strings.Contains(trimmedBody, slashSeparator) {
		return negation + prefix + strings.TrimPrefix(body, slashSeparator)
	}
	return negation + prefix + recursivePrefix + body
}
