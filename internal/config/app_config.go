package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/repo2txt/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// AppConfig is the resolved configuration consumed by scans and exports.
// Every field carries a value; see DefaultAppConfig.
type AppConfig struct {
	IgnoredNames     []string `json:"ignored_names"`
	BinaryExtensions []string `json:"binary_extensions"`
	TokenLimit       int      `json:"token_limit"`
	MaxFileSize      int64    `json:"max_file_size"`
	OutputTemplate   string   `json:"output_template"`
	OutputFilename   string   `json:"output_filename"`
	Theme            string   `json:"theme"`
	TokenizerModel   string   `json:"tokenizer_model"`
	UseGitignore     bool     `json:"use_gitignore"`
	UseIgnoreFile    bool     `json:"use_ignore"`
}

// DefaultAppConfig returns the shipped defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		IgnoredNames:     DefaultIgnoredNames(),
		BinaryExtensions: DefaultBinaryExtensions(),
		TokenLimit:       DefaultTokenLimit,
		MaxFileSize:      DefaultMaxFileSize,
		OutputTemplate:   DefaultOutputTemplate,
		OutputFilename:   DefaultOutputFilename,
		Theme:            DefaultTheme,
		UseGitignore:     true,
		UseIgnoreFile:    true,
	}
}

// ApplicationConfiguration mirrors the configuration file. Unset fields keep their defaults.
type ApplicationConfiguration struct {
	IgnoredNames     []string            `mapstructure:"ignored_names" json:"ignored_names,omitempty"`
	BinaryExtensions []string            `mapstructure:"binary_extensions" json:"binary_extensions,omitempty"`
	TokenLimit       *int                `mapstructure:"token_limit" json:"token_limit,omitempty"`
	MaxFileSize      *int64              `mapstructure:"max_file_size" json:"max_file_size,omitempty"`
	OutputTemplate   string              `mapstructure:"output_template" json:"output_template,omitempty"`
	OutputFilename   string              `mapstructure:"output_filename" json:"output_filename,omitempty"`
	Theme            string              `mapstructure:"theme" json:"theme,omitempty"`
	TokenizerModel   string              `mapstructure:"tokenizer_model" json:"tokenizer_model,omitempty"`
	UseGitignore     *bool               `mapstructure:"use_gitignore" json:"use_gitignore,omitempty"`
	UseIgnoreFile    *bool               `mapstructure:"use_ignore" json:"use_ignore,omitempty"`
	Server           ServerConfiguration `mapstructure:"server" json:"-"`
}

// ServerConfiguration configures the command server.
type ServerConfiguration struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// ListenAddress returns the configured address or DefaultServerAddress.
func (server ServerConfiguration) ListenAddress() string {
	if strings.TrimSpace(server.Address) == "" {
		return DefaultServerAddress
	}
	return strings.TrimSpace(server.Address)
}

// ShutdownDuration parses the configured shutdown timeout, defaulting to DefaultServerShutdownTimeout.
func (server ServerConfiguration) ShutdownDuration() (time.Duration, error) {
	if strings.TrimSpace(server.ShutdownTimeout) == "" {
		return DefaultServerShutdownTimeout, nil
	}
	duration, parseErr := time.ParseDuration(strings.TrimSpace(server.ShutdownTimeout))
	if parseErr != nil {
		return 0, fmt.Errorf("parse server shutdown timeout %q: %w", server.ShutdownTimeout, parseErr)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("server shutdown timeout must be positive, got %s", duration)
	}
	return duration, nil
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	localConfig, loadErr := loadConfigurationFromPath(localPath)
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	merged = merged.Merge(localConfig)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath
		}
		return filepath.Join(workingDirectory, explicitPath)
	}
	return filepath.Join(workingDirectory, utils.LocalConfigFileName)
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	if len(override.IgnoredNames) > 0 {
		result.IgnoredNames = utils.DeduplicatePatterns(override.IgnoredNames)
	}
	if len(override.BinaryExtensions) > 0 {
		result.BinaryExtensions = utils.DeduplicatePatterns(override.BinaryExtensions)
	}
	if override.TokenLimit != nil {
		result.TokenLimit = cloneInt(override.TokenLimit)
	}
	if override.MaxFileSize != nil {
		result.MaxFileSize = cloneInt64(override.MaxFileSize)
	}
	if override.OutputTemplate != "" {
		result.OutputTemplate = override.OutputTemplate
	}
	if override.OutputFilename != "" {
		result.OutputFilename = override.OutputFilename
	}
	if override.Theme != "" {
		result.Theme = override.Theme
	}
	if override.TokenizerModel != "" {
		result.TokenizerModel = override.TokenizerModel
	}
	if override.UseGitignore != nil {
		result.UseGitignore = cloneBool(override.UseGitignore)
	}
	if override.UseIgnoreFile != nil {
		result.UseIgnoreFile = cloneBool(override.UseIgnoreFile)
	}
	if override.Server.Address != "" {
		result.Server.Address = override.Server.Address
	}
	if override.Server.ShutdownTimeout != "" {
		result.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}
	return result
}

// Resolve applies the configuration onto DefaultAppConfig.
func (config ApplicationConfiguration) Resolve() AppConfig {
	return config.ApplyTo(DefaultAppConfig())
}

// ApplyTo overlays the set fields of the configuration onto base.
func (config ApplicationConfiguration) ApplyTo(base AppConfig) AppConfig {
	result := base
	if len(config.IgnoredNames) > 0 {
		result.IgnoredNames = append([]string{}, config.IgnoredNames...)
	}
	if len(config.BinaryExtensions) > 0 {
		result.BinaryExtensions = normalizeExtensions(config.BinaryExtensions)
	}
	if config.TokenLimit != nil {
		result.TokenLimit = *config.TokenLimit
	}
	if config.MaxFileSize != nil {
		result.MaxFileSize = *config.MaxFileSize
	}
	if config.OutputTemplate != "" {
		result.OutputTemplate = config.OutputTemplate
	}
	if config.OutputFilename != "" {
		result.OutputFilename = config.OutputFilename
	}
	if config.Theme != "" {
		result.Theme = config.Theme
	}
	if config.TokenizerModel != "" {
		result.TokenizerModel = config.TokenizerModel
	}
	if config.UseGitignore != nil {
		result.UseGitignore = *config.UseGitignore
	}
	if config.UseIgnoreFile != nil {
		result.UseIgnoreFile = *config.UseIgnoreFile
	}
	return result
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, 0, len(extensions))
	for _, extension := range extensions {
		trimmed := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return utils.DeduplicatePatterns(normalized)
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
