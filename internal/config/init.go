package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/temirov/repo2txt/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	defaultConfigurationTemplate = `# repo2txt configuration. Every key is optional.
# ignored_names replaces the built-in list of skipped file and folder names.
# ignored_names: [".git", "node_modules"]
# binary_extensions replaces the built-in list of extensions treated as binary.
# binary_extensions: ["png", "zip"]
token_limit: 128000
max_file_size: 1048576
output_template: "## {{path}}\n\n` + "```" + `{{language}}\n{{content}}\n` + "```" + `\n\n---\n\n"
output_filename: output.md
theme: system
tokenizer_model: cl100k_base
use_gitignore: true
use_ignore: true
server:
  address: 127.0.0.1:7425
  shutdown_timeout: 5s
`
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the default configuration to the requested
// target and returns its path. An existing file is replaced only with Force.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, resolveErr := resolveInitDestination(options)
	if resolveErr != nil {
		return "", resolveErr
	}
	openFlags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !options.Force {
		openFlags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	configurationFile, openErr := os.OpenFile(destinationPath, openFlags, 0o600)
	if openErr != nil {
		if errors.Is(openErr, fs.ErrExist) {
			return "", fmt.Errorf("configuration file already exists at %s, use --force to replace it", destinationPath)
		}
		return "", fmt.Errorf("open configuration %s: %w", destinationPath, openErr)
	}
	if _, writeErr := configurationFile.WriteString(defaultConfigurationTemplate); writeErr != nil {
		configurationFile.Close()
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, writeErr)
	}
	if closeErr := configurationFile.Close(); closeErr != nil {
		return "", fmt.Errorf("close configuration %s: %w", destinationPath, closeErr)
	}
	return destinationPath, nil
}

func resolveInitDestination(options InitOptions) (string, error) {
	switch options.Target {
	case InitTargetLocal, "":
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			currentDirectory, workingDirectoryErr := os.Getwd()
			if workingDirectoryErr != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", workingDirectoryErr)
			}
			workingDirectory = currentDirectory
		}
		return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", fmt.Errorf("resolve home directory for configuration: %w", homeErr)
		}
		configurationDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
		if mkdirErr := os.MkdirAll(configurationDirectory, 0o755); mkdirErr != nil {
			return "", fmt.Errorf("create configuration directory %s: %w", configurationDirectory, mkdirErr)
		}
		return filepath.Join(configurationDirectory, utils.ConfigFileName), nil
	default:
		return "", fmt.Errorf("unsupported init target %q", options.Target)
	}
}
