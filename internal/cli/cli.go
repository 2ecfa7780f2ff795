// Package cli provides the repo2txt command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repo2txt/internal/config"
	"github.com/temirov/repo2txt/internal/output"
	"github.com/temirov/repo2txt/internal/services/clipboard"
	"github.com/temirov/repo2txt/internal/services/stream"
	"github.com/temirov/repo2txt/internal/services/workspace"
	"github.com/temirov/repo2txt/internal/tokenizer"
	"github.com/temirov/repo2txt/internal/types"
	"github.com/temirov/repo2txt/internal/utils"
)

const (
	configFlagName         = "config"
	logLevelFlagName       = "log-level"
	formatFlagName         = "format"
	versionFlagName        = "version"
	versionTemplate        = "repo2txt version: %s\n"
	defaultCommandLogLevel = "warn"
	rootUse                = "repo2txt"
	rootShortDescription   = "repo2txt turns a repository into one LLM-ready document"
	rootLongDescription    = `repo2txt indexes a directory, lets you choose which files to include and
exports the selection as a single Markdown document with a directory tree.
Selections persist in a .r2x file at the indexed root.
Use --format to select raw, json, or toon output and --version to print the application version.`

	configFlagDescription   = "path to a configuration file replacing the local .repo2txt.yaml"
	logLevelFlagDescription = "log level (debug, info, warn, error)"
	formatFlagDescription   = "output format (raw, json, toon)"
	versionFlagDescription  = "display application version"

	// errorPathMissingFormat reports a missing path.
	errorPathMissingFormat = "path '%s' does not exist: %w"
	// errorPathNotDirectoryFormat reports a path that cannot be indexed.
	errorPathNotDirectoryFormat = "path '%s' is not a directory: %w"
	// errorStatFormat reports failure to retrieve file statistics.
	errorStatFormat = "stat failed for '%s': %w"
	// errorAbsolutePathFormat reports failure to resolve an absolute path.
	errorAbsolutePathFormat = "abs failed for '%s': %w"
	defaultPath             = "."
)

// Execute runs the repo2txt application until it finishes or receives an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCommand := createRootCommand(dependencies{})
	rootCommand.SetArgs(joinToggleArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// dependencies lets tests replace the clipboard and the token counter.
type dependencies struct {
	copier  clipboard.Copier
	counter tokenizer.Counter
}

// application carries the persistent flag values shared by every subcommand.
type application struct {
	dependencies
	configPath string
	logLevel   string
	format     string
	logger     *zap.Logger
}

func createRootCommand(deps dependencies) *cobra.Command {
	app := &application{dependencies: deps, logger: zap.NewNop()}
	var showVersion bool

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
			if formatErr := output.ValidateFormat(app.format); formatErr != nil {
				return formatErr
			}
			logger, loggerErr := utils.NewLeveledLogger(app.logLevel)
			if loggerErr != nil {
				return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerErr)
			}
			app.logger = logger
			return nil
		},
		PersistentPostRun: func(command *cobra.Command, arguments []string) {
			_ = app.logger.Sync()
		},
	}
	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	persistentFlags.StringVar(&app.configPath, configFlagName, "", configFlagDescription)
	persistentFlags.StringVar(&app.logLevel, logLevelFlagName, defaultCommandLogLevel, logLevelFlagDescription)
	persistentFlags.StringVar(&app.format, formatFlagName, types.FormatRaw, formatFlagDescription)

	rootCommand.AddCommand(
		createTreeCommand(app),
		createExportCommand(app),
		createStatsCommand(app),
		createSelectionCommand(app, true),
		createSelectionCommand(app, false),
		createExpansionCommand(app, true),
		createExpansionCommand(app, false),
		createSearchCommand(app),
		createReadCommand(app),
		createServeCommand(app),
		createConfigCommand(app),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// loadConfiguration resolves the configuration for root: global file, then the
// local file in root, or the --config file instead of the local one.
func (app *application) loadConfiguration(root string) (config.AppConfig, config.ServerConfiguration, error) {
	explicitPath := app.configPath
	if explicitPath != "" {
		absolutePath, absErr := filepath.Abs(explicitPath)
		if absErr != nil {
			return config.AppConfig{}, config.ServerConfiguration{}, fmt.Errorf(errorAbsolutePathFormat, explicitPath, absErr)
		}
		explicitPath = absolutePath
	}
	configuration, loadErr := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: root,
		ExplicitFilePath: explicitPath,
	})
	if loadErr != nil {
		return config.AppConfig{}, config.ServerConfiguration{}, loadErr
	}
	return configuration.Resolve(), configuration.Server, nil
}

func (app *application) newWorkspace(appConfig config.AppConfig, emitter stream.Emitter) *workspace.Service {
	return workspace.New(workspace.Options{
		Config:  appConfig,
		Counter: app.counter,
		Emitter: emitter,
		Copier:  app.copier,
		Logger:  app.logger,
	})
}

// openWorkspace indexes path with its configuration. Callers must Close the result.
func (app *application) openWorkspace(ctx context.Context, path string, emitter stream.Emitter) (*workspace.Service, error) {
	root, rootErr := resolveRoot(path)
	if rootErr != nil {
		return nil, rootErr
	}
	appConfig, _, configErr := app.loadConfiguration(root)
	if configErr != nil {
		return nil, configErr
	}
	service := app.newWorkspace(appConfig, emitter)
	if _, openErr := service.Open(ctx, root, nil); openErr != nil {
		service.Close()
		return nil, openErr
	}
	return service, nil
}

// resolveRoot converts input to a clean absolute path and requires an existing directory.
func resolveRoot(input string) (string, error) {
	if input == "" {
		input = defaultPath
	}
	absolutePath, absErr := filepath.Abs(input)
	if absErr != nil {
		return "", fmt.Errorf(errorAbsolutePathFormat, input, absErr)
	}
	cleanPath := filepath.Clean(absolutePath)
	info, statErr := os.Stat(cleanPath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", fmt.Errorf(errorPathMissingFormat, input, types.ErrNotFound)
		}
		return "", fmt.Errorf(errorStatFormat, input, statErr)
	}
	if !info.IsDir() {
		return "", fmt.Errorf(errorPathNotDirectoryFormat, input, types.ErrPrecondition)
	}
	return cleanPath, nil
}

func firstArgument(arguments []string) string {
	if len(arguments) == 0 {
		return defaultPath
	}
	return arguments[0]
}

// dispatchStream runs produce and consume concurrently over an unbuffered event
// channel. The channel closes when produce returns.
func dispatchStream(
	ctx context.Context,
	produce func(context.Context, chan<- stream.Event) error,
	consume func(stream.Event) error,
) error {
	group, streamCtx := errgroup.WithContext(ctx)
	events := make(chan stream.Event)

	group.Go(func() error {
		defer close(events)
		return produce(streamCtx, events)
	})

	group.Go(func() error {
		for {
			select {
			case <-streamCtx.Done():
				return streamCtx.Err()
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := consume(event); err != nil {
					return err
				}
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
