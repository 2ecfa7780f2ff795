// Package generator renders the selected files of a snapshot into one document.
package generator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repo2txt/internal/config"
	"github.com/temirov/repo2txt/internal/index"
	"github.com/temirov/repo2txt/internal/types"
	"github.com/temirov/repo2txt/internal/utils"
)

const (
	// DefaultConcurrency bounds the number of files read at once.
	DefaultConcurrency = 50
	// DefaultPreviewLimit is the number of bytes returned as preview.
	DefaultPreviewLimit = 50 * 1024
	// progressInterval is the number of completed files between progress events.
	progressInterval = 5

	headerFormat            = "# Collected Files\n\n## File Structure\n\n```\n%s\n```\n\n---\n\n"
	statFailedChunkFormat   = "## %s\n\n*Error: Could not read file*\n\n---\n\n"
	fileTooLargeChunkFormat = "## %s\n\n*File too large (%d bytes, limit: %d bytes) - skipped*\n\n---\n\n"
	readFailedPlaceholder   = "*Error reading file*"

	pathPlaceholder     = "{{path}}"
	languagePlaceholder = "{{language}}"
	contentPlaceholder  = "{{content}}"
)

// ProgressFunc receives export progress. It may be called from several goroutines.
type ProgressFunc func(types.ProgressEvent)

// Options configures one export.
type Options struct {
	Snapshot index.Snapshot
	Config   config.AppConfig
	// OutputPath is optional; a relative path is resolved against the snapshot root.
	OutputPath   string
	Progress     ProgressFunc
	Concurrency  int
	PreviewLimit int
	Logger       *zap.Logger
}

// Result is the outcome of an export.
type Result struct {
	types.GenerateResult
	// Content is the complete document.
	Content string
	// OutputPath is the resolved destination, empty when none was requested.
	OutputPath string
}

type chunk struct {
	relativePath string
	content      string
	size         int64
}

// Generate reads every eligible file under bounded concurrency, orders the formatted
// chunks by relative path and writes the tree header followed by the chunks to the
// optional output file and to memory. Per-file failures become placeholder chunks.
func Generate(ctx context.Context, options Options) (Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	progress := options.Progress
	if progress == nil {
		progress = func(types.ProgressEvent) {}
	}
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	previewLimit := options.PreviewLimit
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	template := options.Config.OutputTemplate
	if template == "" {
		template = config.DefaultOutputTemplate
	}

	eligible := options.Snapshot.Eligible()
	header := fmt.Sprintf(headerFormat, RenderTree(options.Snapshot))
	total := len(eligible)
	progress(types.ProgressEvent{Current: 0, Total: total, Stage: types.StagePreparing})

	outputPath := ResolveOutputPath(options.Snapshot.Root, options.OutputPath)
	var outputFile *os.File
	if outputPath != "" {
		createdFile, createErr := os.Create(outputPath)
		if createErr != nil {
			return Result{}, fmt.Errorf("create output file %s: %w", outputPath, createErr)
		}
		outputFile = createdFile
		defer outputFile.Close()
	}

	chunks := make([]chunk, total)
	var completed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for nodeIndex, node := range eligible {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if contextErr := groupCtx.Err(); contextErr != nil {
				return contextErr
			}
			chunks[nodeIndex] = processFile(node, options.Config.MaxFileSize, template, logger)
			current := int(completed.Add(1))
			if current%progressInterval == 0 || current == total {
				progress(types.ProgressEvent{Current: current, Total: total, Stage: types.StageProcessing})
			}
			return nil
		})
	}
	if waitErr := group.Wait(); waitErr != nil {
		return Result{}, waitErr
	}
	if contextErr := ctx.Err(); contextErr != nil {
		return Result{}, contextErr
	}

	sort.SliceStable(chunks, func(left, right int) bool {
		return chunks[left].relativePath < chunks[right].relativePath
	})

	progress(types.ProgressEvent{Current: total, Total: total, Stage: types.StageWriting})

	var fullContent bytes.Buffer
	preview := &boundedBuffer{limit: previewLimit}
	writers := []io.Writer{&fullContent, preview}
	var fileWriter *bufio.Writer
	if outputFile != nil {
		fileWriter = bufio.NewWriter(outputFile)
		writers = append(writers, fileWriter)
	}
	sink := io.MultiWriter(writers...)

	if _, writeErr := io.WriteString(sink, header); writeErr != nil {
		return Result{}, fmt.Errorf("write header: %w", writeErr)
	}
	stats := types.Stats{Files: total}
	for _, formatted := range chunks {
		if _, writeErr := io.WriteString(sink, formatted.content); writeErr != nil {
			return Result{}, fmt.Errorf("write chunk %s: %w", formatted.relativePath, writeErr)
		}
		stats.Size += formatted.size
		stats.Tokens += options.Snapshot.Nodes[formatted.relativePath].TokensOrZero()
	}
	if fileWriter != nil {
		if flushErr := fileWriter.Flush(); flushErr != nil {
			return Result{}, fmt.Errorf("flush output file %s: %w", outputPath, flushErr)
		}
		if closeErr := outputFile.Close(); closeErr != nil {
			return Result{}, fmt.Errorf("close output file %s: %w", outputPath, closeErr)
		}
	}

	logger.Debug("export generated",
		zap.Int("files", stats.Files),
		zap.Int64("size", stats.Size),
		zap.Int("bytes", fullContent.Len()),
		zap.String("output", outputPath))

	return Result{
		GenerateResult: types.GenerateResult{
			PreviewContent: utils.DecodeText(preview.Bytes()),
			IsTruncated:    preview.truncated,
			Stats:          stats,
		},
		Content:    utils.DecodeText(fullContent.Bytes()),
		OutputPath: outputPath,
	}, nil
}

// ResolveOutputPath joins a relative output path onto root. An empty path stays empty.
func ResolveOutputPath(root string, outputPath string) string {
	if outputPath == "" {
		return ""
	}
	if filepath.IsAbs(outputPath) || root == "" {
		return filepath.Clean(outputPath)
	}
	return filepath.Join(root, outputPath)
}

// FormatChunk substitutes path and language into template before content, so
// placeholders inside file content are left alone.
func FormatChunk(template string, relativePath string, language string, content string) string {
	formatted := strings.ReplaceAll(template, pathPlaceholder, relativePath)
	formatted = strings.ReplaceAll(formatted, languagePlaceholder, language)
	return strings.ReplaceAll(formatted, contentPlaceholder, content)
}

// #nosec G304
func processFile(node types.Node, maxFileSize int64, template string, logger *zap.Logger) chunk {
	info, statErr := os.Stat(node.Path)
	if statErr != nil {
		logger.Warn("stat failed", zap.String("path", node.Path), zap.Error(statErr))
		return chunk{relativePath: node.RelativePath, content: fmt.Sprintf(statFailedChunkFormat, node.RelativePath)}
	}
	size := info.Size()
	if size > maxFileSize {
		logger.Warn("file exceeds max file size, skipping",
			zap.String("path", node.Path),
			zap.Int64("size", size),
			zap.Int64("limit", maxFileSize))
		return chunk{
			relativePath: node.RelativePath,
			content:      fmt.Sprintf(fileTooLargeChunkFormat, node.RelativePath, size, maxFileSize),
			size:         size,
		}
	}

	content := readFailedPlaceholder
	if data, readErr := os.ReadFile(node.Path); readErr != nil {
		logger.Warn("read failed", zap.String("path", node.Path), zap.Error(readErr))
	} else if utils.IsBinary(data) {
		logger.Debug("binary content", zap.String("path", node.Path))
		content = utils.BinaryPlaceholder
	} else {
		content = utils.DecodeText(data)
	}
	return chunk{
		relativePath: node.RelativePath,
		content:      FormatChunk(template, node.RelativePath, LanguageFor(node.RelativePath), content),
		size:         size,
	}
}

// boundedBuffer keeps the first limit bytes written to it and records whether more arrived.
type boundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	truncated bool
}

// Write never fails so that it can sit inside an io.MultiWriter.
func (bounded *boundedBuffer) Write(data []byte) (int, error) {
	remaining := bounded.limit - bounded.buffer.Len()
	if len(data) > remaining {
		if remaining > 0 {
			bounded.buffer.Write(data[:remaining])
		}
		bounded.truncated = true
		return len(data), nil
	}
	bounded.buffer.Write(data)
	return len(data), nil
}

// Bytes returns the kept prefix without a rune cut in half by the limit.
func (bounded *boundedBuffer) Bytes() []byte {
	data := bounded.buffer.Bytes()
	if !bounded.truncated {
		return data
	}
	for trimmed := 0; trimmed < utf8.UTFMax && len(data) > 0; trimmed++ {
		lastRune, runeSize := utf8.DecodeLastRune(data)
		if lastRune != utf8.RuneError || runeSize > 1 {
			break
		}
		data = data[:len(data)-1]
	}
	return data
}
