package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/temirov/repo2txt/internal/services/stream"
	"github.com/temirov/repo2txt/internal/types"
)

const (
	analysisCompletedFormat  = "Analyzed %d files\n"
	preparingExportMessage   = "Preparing export"
	processingProgressFormat = "Processing files %d/%d"
	writingOutputMessage     = "Writing output"
	exportCompletedFormat    = "Exported %d files"
	clearLineSequence        = "\r\033[K"
)

// progressPrinter renders workspace events as human readable progress lines.
// On a terminal processing updates overwrite one line and stages are colored.
type progressPrinter struct {
	writer      io.Writer
	interactive bool
	analyzed    int
	stage       *color.Color
	done        *color.Color
}

func newProgressPrinter(writer io.Writer) *progressPrinter {
	interactive := isTerminal(writer)
	stage := color.New(color.FgCyan)
	done := color.New(color.FgGreen, color.Bold)
	if interactive {
		stage.EnableColor()
		done.EnableColor()
	} else {
		stage.DisableColor()
		done.DisableColor()
	}
	return &progressPrinter{writer: writer, interactive: interactive, stage: stage, done: done}
}

func isTerminal(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func (printer *progressPrinter) Handle(event stream.Event) error {
	switch event.Kind {
	case stream.EventKindFilesUpdated:
		printer.analyzed += len(event.Updates)
	case stream.EventKindAnalysisCompleted:
		_, err := fmt.Fprintf(printer.writer, analysisCompletedFormat, printer.analyzed)
		return err
	case stream.EventKindGenerationProgress:
		if event.Progress != nil {
			return printer.handleProgress(*event.Progress)
		}
	}
	return nil
}

func (printer *progressPrinter) handleProgress(progress types.ProgressEvent) error {
	var err error
	switch progress.Stage {
	case types.StagePreparing:
		_, err = fmt.Fprintln(printer.writer, printer.stage.Sprint(preparingExportMessage))
	case types.StageProcessing:
		line := fmt.Sprintf(processingProgressFormat, progress.Current, progress.Total)
		if printer.interactive {
			_, err = fmt.Fprint(printer.writer, clearLineSequence+line)
			if err == nil && progress.Current >= progress.Total {
				_, err = fmt.Fprintln(printer.writer)
			}
		} else {
			_, err = fmt.Fprintln(printer.writer, line)
		}
	case types.StageWriting:
		_, err = fmt.Fprintln(printer.writer, printer.stage.Sprint(writingOutputMessage))
	case types.StageCompleted:
		_, err = fmt.Fprintln(printer.writer, printer.done.Sprintf(exportCompletedFormat, progress.Total))
	}
	return err
}
