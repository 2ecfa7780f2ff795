package config

import (
	"path/filepath"
	"strings"
)

const (
	envFileName        = ".env"
	envFilePrefix      = ".env."
	sshKeyMarker       = "id_rsa"
	secretsMarker      = "secrets"
	extensionSeparator = "."
)

var privateSuffixes = []string{".secret", ".key", ".pem"}

// Policy is the predicate set shared by root and subtree scans.
type Policy struct {
	ignoredNames     map[string]struct{}
	binaryExtensions map[string]struct{}
}

// NewPolicy builds the predicates from a resolved configuration.
func NewPolicy(config AppConfig) Policy {
	policy := Policy{
		ignoredNames:     make(map[string]struct{}, len(config.IgnoredNames)),
		binaryExtensions: make(map[string]struct{}, len(config.BinaryExtensions)),
	}
	for _, name := range config.IgnoredNames {
		policy.ignoredNames[name] = struct{}{}
	}
	for _, extension := range config.BinaryExtensions {
		policy.binaryExtensions[strings.ToLower(strings.TrimPrefix(extension, extensionSeparator))] = struct{}{}
	}
	return policy
}

// IsIgnoredName reports whether an entry with this exact name is skipped.
func (policy Policy) IsIgnoredName(name string) bool {
	_, ignored := policy.ignoredNames[name]
	return ignored
}

// IsIgnoredExtension reports whether the extension, with or without its dot, is treated as binary.
func (policy Policy) IsIgnoredExtension(extension string) bool {
	normalized := strings.ToLower(strings.TrimPrefix(extension, extensionSeparator))
	if normalized == "" {
		return false
	}
	_, ignored := policy.binaryExtensions[normalized]
	return ignored
}

// SkipEntry applies the name check to every entry and, for files only,
// the binary-extension and private-file checks.
func (policy Policy) SkipEntry(name string, isDirectory bool) bool {
	if policy.IsIgnoredName(name) {
		return true
	}
	if isDirectory {
		return false
	}
	return policy.IsIgnoredExtension(FileExtension(name)) || IsPrivate(name)
}

// FileExtension returns the lower-case extension of name without its dot.
// A leading dot alone does not start an extension, so ".bashrc" has none.
func FileExtension(name string) string {
	extension := filepath.Ext(name)
	if len(extension) == len(name) {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(extension, extensionSeparator))
}

// IsPrivate reports whether a file name looks like it holds credentials.
// The check is fixed and cannot be disabled by configuration.
func IsPrivate(name string) bool {
	lowerName := strings.ToLower(name)
	if lowerName == envFileName || strings.HasPrefix(lowerName, envFilePrefix) {
		return true
	}
	for _, suffix := range privateSuffixes {
		if strings.HasSuffix(lowerName, suffix) {
			return true
		}
	}
	return strings.Contains(lowerName, sshKeyMarker) || strings.Contains(lowerName, secretsMarker)
}
