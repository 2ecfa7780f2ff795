package generator

import (
	"path"
	"strings"
)

// DefaultLanguage tags files whose language is not recognized.
const DefaultLanguage = "text"

var languageByFileName = map[string]string{
	"Dockerfile":          "dockerfile",
	"Makefile":            "makefile",
	"LICENSE":             "text",
	"README":              "markdown",
	"CHANGELOG":           "markdown",
	".gitignore":          "gitignore",
	".gitattributes":      "gitattributes",
	".env":                "dotenv",
	".env.example":        "dotenv",
	"docker-compose.yml":  "yaml",
	"docker-compose.yaml": "yaml",
}

var languageByExtension = map[string]string{
	"ts":     "typescript",
	"js":     "javascript",
	"tsx":    "tsx",
	"jsx":    "jsx",
	"json":   "json",
	"md":     "markdown",
	"yml":    "yaml",
	"yaml":   "yaml",
	"xml":    "xml",
	"html":   "html",
	"css":    "css",
	"scss":   "scss",
	"sass":   "sass",
	"less":   "less",
	"py":     "python",
	"java":   "java",
	"cpp":    "cpp",
	"hpp":    "cpp",
	"c":      "c",
	"h":      "c",
	"rs":     "rust",
	"go":     "go",
	"php":    "php",
	"rb":     "ruby",
	"sh":     "bash",
	"bash":   "bash",
	"zsh":    "bash",
	"sql":    "sql",
	"vue":    "vue",
	"svelte": "svelte",
	"toml":   "toml",
	"ini":    "ini",
	"conf":   "conf",
	"config": "conf",
}

// LanguageFor returns the code fence tag for a slash-separated relative path.
// Well-known file names win over the extension.
func LanguageFor(relativePath string) string {
	fileName := path.Base(relativePath)
	if language, known := languageByFileName[fileName]; known {
		return language
	}
	extension := path.Ext(fileName)
	if len(extension) == len(fileName) {
		return DefaultLanguage
	}
	if language, known := languageByExtension[strings.ToLower(strings.TrimPrefix(extension, "."))]; known {
		return language
	}
	return DefaultLanguage
}
