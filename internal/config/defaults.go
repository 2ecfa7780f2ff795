package config

import "time"

const (
	// DefaultTokenLimit is the token count above which callers warn about an export.
	DefaultTokenLimit = 128000
	// DefaultMaxFileSize is the largest file, in bytes, whose content is exported.
	DefaultMaxFileSize int64 = 1024 * 1024
	// DefaultOutputTemplate formats one exported file.
	DefaultOutputTemplate = "## {{path}}\n\n```{{language}}\n{{content}}\n```\n\n---\n\n"
	// DefaultOutputFilename is the suggested export file name.
	DefaultOutputFilename = "output.md"
	// DefaultTheme is the interface theme tag.
	DefaultTheme = "system"
	// DefaultServerAddress is where the command server listens unless configured otherwise.
	DefaultServerAddress = "127.0.0.1:7425"
	// DefaultServerShutdownTimeout bounds graceful shutdown of the command server.
	DefaultServerShutdownTimeout = 5 * time.Second
)

var defaultIgnoredFiles = []string{
	".DS_Store",
	"Thumbs.db",
	"Gemfile.lock",
	"go.sum",
	"go.work.sum",
	"yarn.lock",
	"pnpm-lock.yaml",
	"composer.lock",
	"package-lock.json",
	"Cargo.lock",
}

var defaultIgnoredFolders = []string{
	".git", ".svn", ".hg",
	".idea", ".vscode", ".vs", ".history",
	"node_modules", "bower_components", "jspm_packages", "web_modules",
	"dist", "build", "out", "target", "bin", "obj", "release", "debug", "pkg",
	".next", ".nuxt", ".cache", ".parcel-cache", ".turbo", ".vercel", ".output",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".tox", "venv", ".venv", "env",
	"bundler", "vendor", ".bundle",
	"checkouts", ".cargo", ".rustup",
	".gradle", ".settings", ".classpath", ".project",
	"Properties",
	"_build", "deps", "_opam",
	"storage",
	"htmlcov", "coverage", ".nyc_output",
}

var defaultBinaryExtensions = []string{
	"icns", "png", "jpg", "jpeg", "gif", "bmp", "ico", "svg", "webp", "tiff", "tif", "psd", "ai", "eps",
	"mp4", "avi", "mov", "wmv", "flv", "mkv", "webm", "3gp",
	"mp3", "wav", "flac", "aac", "ogg", "wma", "m4a",
	"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "iso", "dmg", "pkg", "deb", "rpm",
	"exe", "dll", "so", "dylib", "bin", "msi", "msu",
	"ttf", "otf", "woff", "woff2", "eot",
	"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt", "ods",
	"sqlite", "db", "db3", "mdb", "accdb",
	"pyc", "pyo", "pyd", "class", "jar", "war", "ear",
	"ds_store", "thumbs.db",
}

// DefaultIgnoredNames returns the curated list of file and folder names skipped by every scan.
func DefaultIgnoredNames() []string {
	names := make([]string, 0, len(defaultIgnoredFiles)+len(defaultIgnoredFolders))
	names = append(names, defaultIgnoredFiles...)
	names = append(names, defaultIgnoredFolders...)
	return names
}

// DefaultBinaryExtensions returns the curated list of lower-case extensions treated as binary.
func DefaultBinaryExtensions() []string {
	return append([]string{}, defaultBinaryExtensions...)
}
