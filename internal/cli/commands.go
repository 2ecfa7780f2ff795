package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repo2txt/internal/config"
	"github.com/temirov/repo2txt/internal/generator"
	"github.com/temirov/repo2txt/internal/output"
	"github.com/temirov/repo2txt/internal/services/stream"
	"github.com/temirov/repo2txt/internal/types"
)

const (
	treeUse              = "tree [path]"
	treeAlias            = "t"
	treeShortDescription = "display the indexed tree (" + treeAlias + ")"
	treeLongDescription  = `Index a directory and print its tree with token counts and sizes.
Deselected entries are marked. Use --format to select raw, json, or toon output.`
	treeUsageExample = `  # Render the current directory
  repo2txt tree

  # Render a project as JSON without waiting for token counts
  repo2txt tree --format json --tokens=false ./service`

	exportUse              = "export [path]"
	exportAlias            = "x"
	exportShortDescription = "export selected files into one document (" + exportAlias + ")"
	exportLongDescription  = `Export every selected file under the directory into a single Markdown document
that starts with the directory tree. The document is written to --output, or to
the configured output_filename inside the directory. Progress is reported on stderr.`
	exportUsageExample = `  # Export into output.md inside the project
  repo2txt export ./service

  # Print the document and copy it to the clipboard
  repo2txt export --stdout --copy .`

	statsUse                   = "stats [path]"
	statsShortDescription      = "total the files an export would include"
	selectUse                  = "select <path> [ids...]"
	selectShortDescription     = "include nodes in exports"
	deselectUse                = "deselect <path> [ids...]"
	deselectShortDescription   = "exclude nodes from exports"
	expandUse                  = "expand <path> <ids...>"
	expandShortDescription     = "mark directories as expanded"
	collapseUse                = "collapse <path> <ids...>"
	collapseShortDescription   = "mark directories as collapsed"
	searchUse                  = "search <path> <query>"
	searchAlias                = "s"
	searchShortDescription     = "fuzzy search node paths (" + searchAlias + ")"
	readUse                    = "read <path> <id>"
	readShortDescription       = "preview one file as the viewer shows it"
	configUse                  = "config"
	configShortDescription     = "manage repo2txt configuration"
	configInitUse              = "init"
	configInitShortDescription = "write the default configuration file"

	outputFlagName         = "output"
	outputFlagShorthand    = "o"
	outputFlagDescription  = "destination file, relative paths resolve against the indexed directory"
	stdoutFlagName         = "stdout"
	stdoutFlagDescription  = "print the document instead of writing a file"
	copyFlagName           = "copy"
	copyFlagDescription    = "copy the document to the clipboard"
	previewFlagName        = "preview"
	previewFlagDescription = "print the bounded preview before the report"
	summaryFlagName        = "summary"
	summaryFlagDescription = "include summary of listed files"
	tokensFlagName         = "tokens"
	tokensFlagDescription  = "wait for token counts before rendering"
	allFlagName            = "all"
	allFlagDescription     = "apply to every node"
	globalFlagName         = "global"
	globalFlagDescription  = "write to the global configuration directory"
	forceFlagName          = "force"
	forceFlagDescription   = "overwrite an existing configuration file"

	selectionVerbSelected   = "Selected"
	selectionVerbDeselected = "Deselected"
	expansionVerbExpanded   = "Expanded"
	expansionVerbCollapsed  = "Collapsed"
	updatedNodesFormat      = "%s %d nodes\n"
	unknownNodeFormat       = "unknown node %q: %w"
	missingIdentifiersError = "provide node ids or --all"
	tokenLimitWarningFormat = "Warning: export holds %d tokens, above the configured limit of %d\n"
	configWrittenFormat     = "Configuration written to %s\n"
)

func createTreeCommand(app *application) *cobra.Command {
	var summaryEnabled bool
	var waitForTokens bool

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			ctx := command.Context()
			service, openErr := app.openWorkspace(ctx, firstArgument(arguments), nil)
			if openErr != nil {
				return openErr
			}
			defer service.Close()
			if waitForTokens {
				if waitErr := service.WaitForAnalysis(ctx); waitErr != nil {
					return waitErr
				}
			}
			nodes := service.Tree()
			rendered, renderErr := output.RenderListing(app.format, output.NewListing(service.Root(), nodes), nodes, summaryEnabled)
			if renderErr != nil {
				return renderErr
			}
			_, writeErr := fmt.Fprint(command.OutOrStdout(), rendered)
			return writeErr
		},
	}
	registerToggleFlag(treeCommand.Flags(), &summaryEnabled, summaryFlagName, true, summaryFlagDescription)
	registerToggleFlag(treeCommand.Flags(), &waitForTokens, tokensFlagName, true, tokensFlagDescription)
	return treeCommand
}

type exportOptions struct {
	outputPath      string
	toStdout        bool
	copyToClipboard bool
	showPreview     bool
}

type exportOutcome struct {
	result     generator.Result
	copied     bool
	tokenLimit int
}

func createExportCommand(app *application) *cobra.Command {
	var options exportOptions

	exportCommand := &cobra.Command{
		Use:     exportUse,
		Aliases: []string{exportAlias},
		Short:   exportShortDescription,
		Long:    exportLongDescription,
		Example: exportUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			ctx := command.Context()
			var outcome exportOutcome
			producer := func(streamCtx context.Context, events chan<- stream.Event) error {
				produced, exportErr := app.runExport(streamCtx, firstArgument(arguments), options, stream.NewChannelEmitter(streamCtx, events))
				outcome = produced
				return exportErr
			}
			progress := newProgressPrinter(command.ErrOrStderr())
			if dispatchErr := dispatchStream(ctx, producer, progress.Handle); dispatchErr != nil {
				return dispatchErr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if outcome.tokenLimit > 0 && outcome.result.Stats.Tokens > outcome.tokenLimit {
				fmt.Fprintf(command.ErrOrStderr(), tokenLimitWarningFormat, outcome.result.Stats.Tokens, outcome.tokenLimit)
			}
			standardOutput := command.OutOrStdout()
			if options.toStdout {
				_, writeErr := fmt.Fprint(standardOutput, outcome.result.Content)
				return writeErr
			}
			if options.showPreview {
				fmt.Fprintln(standardOutput, outcome.result.PreviewContent)
			}
			rendered, renderErr := output.RenderExportReport(app.format, output.ExportReport{
				OutputPath:  outcome.result.OutputPath,
				IsTruncated: outcome.result.IsTruncated,
				Copied:      outcome.copied,
				Stats:       outcome.result.Stats,
			})
			if renderErr != nil {
				return renderErr
			}
			_, writeErr := fmt.Fprint(standardOutput, rendered)
			return writeErr
		},
	}
	exportCommand.Flags().StringVarP(&options.outputPath, outputFlagName, outputFlagShorthand, "", outputFlagDescription)
	registerToggleFlag(exportCommand.Flags(), &options.toStdout, stdoutFlagName, false, stdoutFlagDescription)
	registerToggleFlag(exportCommand.Flags(), &options.copyToClipboard, copyFlagName, false, copyFlagDescription)
	registerToggleFlag(exportCommand.Flags(), &options.showPreview, previewFlagName, false, previewFlagDescription)
	return exportCommand
}

// runExport indexes path, waits for token counts and exports the selection.
func (app *application) runExport(ctx context.Context, path string, options exportOptions, emitter stream.Emitter) (exportOutcome, error) {
	service, openErr := app.openWorkspace(ctx, path, emitter)
	if openErr != nil {
		return exportOutcome{}, openErr
	}
	defer service.Close()
	if waitErr := service.WaitForAnalysis(ctx); waitErr != nil {
		return exportOutcome{}, waitErr
	}

	destination := options.outputPath
	if options.toStdout {
		destination = ""
	} else if destination == "" {
		destination = service.Config().OutputFilename
	}
	result, generateErr := service.Generate(ctx, destination)
	if generateErr != nil {
		return exportOutcome{}, generateErr
	}
	outcome := exportOutcome{result: result, tokenLimit: service.Config().TokenLimit}
	if options.copyToClipboard {
		if copyErr := service.CopyFromCache(); copyErr != nil {
			return exportOutcome{}, fmt.Errorf("copy export: %w", copyErr)
		}
		outcome.copied = true
	}
	return outcome, nil
}

func createStatsCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   statsUse,
		Short: statsShortDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			ctx := command.Context()
			service, openErr := app.openWorkspace(ctx, firstArgument(arguments), nil)
			if openErr != nil {
				return openErr
			}
			defer service.Close()
			stats, statsErr := service.Stats(ctx)
			if statsErr != nil {
				return statsErr
			}
			rendered, renderErr := output.RenderStats(app.format, stats)
			if renderErr != nil {
				return renderErr
			}
			_, writeErr := fmt.Fprint(command.OutOrStdout(), rendered)
			return writeErr
		},
	}
}

// createSelectionCommand builds select or deselect. The change is saved to the
// selection record so later exports of the directory honor it.
func createSelectionCommand(app *application, selected bool) *cobra.Command {
	var applyToAll bool
	use, short, verb := selectUse, selectShortDescription, selectionVerbSelected
	if !selected {
		use, short, verb = deselectUse, deselectShortDescription, selectionVerbDeselected
	}

	selectionCommand := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			identifiers := arguments[1:]
			if !applyToAll && len(identifiers) == 0 {
				return fmt.Errorf(missingIdentifiersError)
			}
			service, openErr := app.openWorkspace(command.Context(), arguments[0], nil)
			if openErr != nil {
				return openErr
			}
			defer service.Close()

			updated := 0
			switch {
			case applyToAll && selected:
				service.SelectAll()
				updated = len(service.Tree())
			case applyToAll:
				service.DeselectAll()
				updated = len(service.Tree())
			default:
				for _, identifier := range identifiers {
					if !service.UpdateSelection(identifier, selected) {
						return fmt.Errorf(unknownNodeFormat, identifier, types.ErrNotFound)
					}
					updated++
				}
			}
			if saveErr := service.SaveSelection(); saveErr != nil {
				return saveErr
			}
			_, writeErr := fmt.Fprintf(command.OutOrStdout(), updatedNodesFormat, verb, updated)
			return writeErr
		},
	}
	registerToggleFlag(selectionCommand.Flags(), &applyToAll, allFlagName, false, allFlagDescription)
	return selectionCommand
}

func createExpansionCommand(app *application, expanded bool) *cobra.Command {
	use, short, verb := expandUse, expandShortDescription, expansionVerbExpanded
	if !expanded {
		use, short, verb = collapseUse, collapseShortDescription, expansionVerbCollapsed
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(command *cobra.Command, arguments []string) error {
			service, openErr := app.openWorkspace(command.Context(), arguments[0], nil)
			if openErr != nil {
				return openErr
			}
			defer service.Close()
			for _, identifier := range arguments[1:] {
				if !service.ToggleExpanded(identifier, expanded) {
					return fmt.Errorf(unknownNodeFormat, identifier, types.ErrNotFound)
				}
			}
			if saveErr := service.SaveSelection(); saveErr != nil {
				return saveErr
			}
			_, writeErr := fmt.Fprintf(command.OutOrStdout(), updatedNodesFormat, verb, len(arguments)-1)
			return writeErr
		},
	}
}

func createSearchCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:     searchUse,
		Aliases: []string{searchAlias},
		Short:   searchShortDescription,
		Args:    cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, arguments []string) error {
			service, openErr := app.openWorkspace(command.Context(), arguments[0], nil)
			if openErr != nil {
				return openErr
			}
			defer service.Close()
			query := arguments[1]
			rendered, renderErr := output.RenderSearch(app.format, output.SearchResult{Query: query, Matches: service.Search(query)})
			if renderErr != nil {
				return renderErr
			}
			_, writeErr := fmt.Fprint(command.OutOrStdout(), rendered)
			return writeErr
		},
	}
}

func createReadCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   readUse,
		Short: readShortDescription,
		Args:  cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, arguments []string) error {
			service, openErr := app.openWorkspace(command.Context(), arguments[0], nil)
			if openErr != nil {
				return openErr
			}
			defer service.Close()
			content, readErr := service.ReadFile(arguments[1])
			if readErr != nil {
				return readErr
			}
			_, writeErr := fmt.Fprintln(command.OutOrStdout(), content)
			return writeErr
		},
	}
}

func createConfigCommand(app *application) *cobra.Command {
	var globalTarget bool
	var forceOverwrite bool

	initCommand := &cobra.Command{
		Use:   configInitUse,
		Short: configInitShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			workingDirectory, workingDirectoryErr := os.Getwd()
			if workingDirectoryErr != nil {
				return fmt.Errorf("determine working directory: %w", workingDirectoryErr)
			}
			target := config.InitTargetLocal
			if globalTarget {
				target = config.InitTargetGlobal
			}
			writtenPath, initErr := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            forceOverwrite,
				WorkingDirectory: workingDirectory,
			})
			if initErr != nil {
				return initErr
			}
			app.logger.Debug("configuration initialized", zap.String("path", writtenPath))
			_, writeErr := fmt.Fprintf(command.OutOrStdout(), configWrittenFormat, writtenPath)
			return writeErr
		},
	}
	registerToggleFlag(initCommand.Flags(), &globalTarget, globalFlagName, false, globalFlagDescription)
	registerToggleFlag(initCommand.Flags(), &forceOverwrite, forceFlagName, false, forceFlagDescription)

	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
	}
	configCommand.AddCommand(initCommand)
	return configCommand
}
