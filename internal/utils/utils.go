// Package utils contains general helper functions used across repo2txt.
package utils

import (
	"path/filepath"
	"strings"
)

// Ignore file constants used across the project.
const (
	// IgnoreFileName is the name of the generic ignore file honored alongside .gitignore.
	IgnoreFileName = ".ignore"
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// RootIgnoreFileName is the project-specific ignore file read from the scan root only.
	RootIgnoreFileName = ".r2x_ignore"
	// RecordFileName is the persisted selection record stored in the scan root.
	RecordFileName = ".r2x"
	// RecordLockFileName guards concurrent writers of the selection record.
	RecordLockFileName = ".r2x.lock"
	// RecordTemporaryPrefix starts the names of partially written selection records.
	RecordTemporaryPrefix = RecordFileName + ".tmp-"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
)

const (
	pathSegmentSeparator = "/"
	negationPrefix       = "!"
	commentPrefix        = "#"
	recursiveWildcard    = "**"
)

var serviceFiles = map[string]struct{}{
	RecordFileName:     {},
	RecordLockFileName: {},
}

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// RelativePathOrSelf calculates the relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// IsServiceFile reports whether name is an internal bookkeeping file that never appears in a scan.
func IsServiceFile(name string) bool {
	if _, isServiceFile := serviceFiles[name]; isServiceFile {
		return true
	}
	return strings.HasPrefix(name, RecordTemporaryPrefix)
}

type ignoreRule struct {
	segments      []string
	negated       bool
	directoryOnly bool
	anchored      bool
}

// IgnoreMatcher evaluates gitignore-style patterns against slash-separated relative paths.
// Rules are evaluated in order and the last matching rule decides, so a later
// "!pattern" re-includes an earlier exclusion.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher compiles patterns. Blank lines and comments are skipped.
// A trailing slash restricts a rule to directories. A pattern without an inner
// slash matches the final path segment at any depth, while any other pattern is
// anchored to the root and may use "**" to span several segments.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	matcher := &IgnoreMatcher{}
	matcher.Add(patterns...)
	return matcher
}

// Add compiles further patterns after the existing rules so they take precedence.
func (matcher *IgnoreMatcher) Add(patterns ...string) {
	for _, rawPattern := range patterns {
		patternValue := strings.TrimSpace(strings.ReplaceAll(rawPattern, "\\", pathSegmentSeparator))
		if patternValue == "" || strings.HasPrefix(patternValue, commentPrefix) {
			continue
		}
		rule := ignoreRule{}
		if strings.HasPrefix(patternValue, negationPrefix) {
			rule.negated = true
			patternValue = strings.TrimPrefix(patternValue, negationPrefix)
		}
		if strings.HasSuffix(patternValue, pathSegmentSeparator) {
			rule.directoryOnly = true
			patternValue = strings.TrimRight(patternValue, pathSegmentSeparator)
		}
		if strings.HasPrefix(patternValue, pathSegmentSeparator) {
			rule.anchored = true
			patternValue = strings.TrimLeft(patternValue, pathSegmentSeparator)
		}
		if patternValue == "" {
			continue
		}
		if strings.Contains(patternValue, pathSegmentSeparator) {
			rule.anchored = true
		}
		rule.segments = strings.Split(patternValue, pathSegmentSeparator)
		matcher.rules = append(matcher.rules, rule)
	}
}

// Len returns the number of compiled rules.
func (matcher *IgnoreMatcher) Len() int {
	if matcher == nil {
		return 0
	}
	return len(matcher.rules)
}

// Matches reports whether relativePath is excluded by the compiled rules.
func (matcher *IgnoreMatcher) Matches(relativePath string, isDirectory bool) bool {
	normalizedPath := strings.Trim(filepath.ToSlash(relativePath), pathSegmentSeparator)
	pathSegments := strings.Split(normalizedPath, pathSegmentSeparator)
	if IsServiceFile(pathSegments[len(pathSegments)-1]) {
		return true
	}
	if matcher == nil {
		return false
	}

	ignored := false
	for _, rule := range matcher.rules {
		if rule.directoryOnly && !isDirectory {
			continue
		}
		if rule.matches(pathSegments) {
			ignored = !rule.negated
		}
	}
	return ignored
}

func (rule ignoreRule) matches(pathSegments []string) bool {
	if !rule.anchored {
		isMatched, matchError := filepath.Match(rule.segments[0], pathSegments[len(pathSegments)-1])
		return matchError == nil && isMatched
	}
	return segmentsMatch(rule.segments, pathSegments)
}

// segmentsMatch reports whether the pattern segments match every path segment,
// letting a "**" segment consume zero or more path segments.
func segmentsMatch(patternSegments, pathSegments []string) bool {
	if len(patternSegments) == 0 {
		return len(pathSegments) == 0
	}
	if patternSegments[0] == recursiveWildcard {
		for consumed := 0; consumed <= len(pathSegments); consumed++ {
			if segmentsMatch(patternSegments[1:], pathSegments[consumed:]) {
				return true
			}
		}
		return false
	}
	if len(pathSegments) == 0 {
		return false
	}
	isMatched, matchError := filepath.Match(patternSegments[0], pathSegments[0])
	if matchError != nil || !isMatched {
		return false
	}
	return segmentsMatch(patternSegments[1:], pathSegments[1:])
}
