// Package workspace coordinates scans, background analysis, selection edits and
// exports over one shared node index.
package workspace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repo2txt/internal/analyzer"
	"github.com/temirov/repo2txt/internal/config"
	"github.com/temirov/repo2txt/internal/generator"
	"github.com/temirov/repo2txt/internal/index"
	"github.com/temirov/repo2txt/internal/metrics"
	"github.com/temirov/repo2txt/internal/scanner"
	"github.com/temirov/repo2txt/internal/selection"
	"github.com/temirov/repo2txt/internal/services/clipboard"
	"github.com/temirov/repo2txt/internal/services/stream"
	"github.com/temirov/repo2txt/internal/tokenizer"
	"github.com/temirov/repo2txt/internal/types"
	"github.com/temirov/repo2txt/internal/utils"
)

const (
	// MaxPreviewFileBytes is the largest file returned whole by ReadFile.
	MaxPreviewFileBytes = 100 * 1024

	scanKindRoot      = "root"
	scanKindDirectory = "directory"

	truncatedFooterFormat = "\n\n--- TRUNCATED (File too large: %d bytes) ---"
	unknownNodeFormat     = "node %s: %w"
)

// Options configures a Service.
type Options struct {
	Config  config.AppConfig
	Emitter stream.Emitter
	Copier  clipboard.Copier
	Logger  *zap.Logger

	// Counter fixes the token counter for every root. When nil, CounterFactory
	// builds one for the configured model and rebuilds it when Open changes the model.
	Counter        tokenizer.Counter
	CounterFactory func(model string) tokenizer.Counter

	// Concurrency and BatchSize default to the analyzer defaults.
	Concurrency int
	BatchSize   int
}

// Service owns the node index of the opened root together with its scan epoch and export cache.
type Service struct {
	nodes *index.Index
	epoch index.Epoch
	cache index.ExportCache

	configMutex sync.RWMutex
	config      config.AppConfig

	counter        tokenizer.Counter
	counterModel   string
	counterFactory func(model string) tokenizer.Counter

	emitter     stream.Emitter
	copier      clipboard.Copier
	logger      *zap.Logger
	concurrency int
	batchSize   int

	background     context.Context
	stopBackground context.CancelFunc
	analysisMutex  sync.Mutex
	analysisDone   chan struct{}
	analyses       sync.WaitGroup
}

// New constructs a Service without an opened root.
func New(options Options) *Service {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	counter := options.Counter
	var counterFactory func(model string) tokenizer.Counter
	if counter == nil {
		counterFactory = options.CounterFactory
		if counterFactory == nil {
			counterFactory = tiktokenFactory(logger)
		}
		counter = counterFactory(options.Config.TokenizerModel)
	}
	emitter := options.Emitter
	if emitter == nil {
		emitter = stream.EmitterFunc(func(stream.Event) {})
	}
	copier := options.Copier
	if copier == nil {
		copier = clipboard.NewService()
	}
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = analyzer.DefaultConcurrency
	}
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = analyzer.DefaultBatchSize
	}
	background, stopBackground := context.WithCancel(context.Background())
	completed := make(chan struct{})
	close(completed)
	return &Service{
		nodes:          index.New(),
		config:         options.Config,
		counter:        counter,
		counterModel:   options.Config.TokenizerModel,
		counterFactory: counterFactory,
		emitter:        emitter,
		copier:         copier,
		logger:         logger,
		concurrency:    concurrency,
		batchSize:      batchSize,
		background:     background,
		stopBackground: stopBackground,
		analysisDone:   completed,
	}
}

func tiktokenFactory(logger *zap.Logger) func(model string) tokenizer.Counter {
	return func(model string) tokenizer.Counter {
		counter, resolved, counterErr := tokenizer.NewCounter(tokenizer.Config{Model: model})
		if counterErr != nil {
			logger.Warn("falling back to approximate token counts", zap.String("model", resolved), zap.Error(counterErr))
		}
		return counter
	}
}

func (service *Service) tokenCounter() tokenizer.Counter {
	service.configMutex.RLock()
	defer service.configMutex.RUnlock()
	return service.counter
}

// Config returns the active configuration.
func (service *Service) Config() config.AppConfig {
	service.configMutex.RLock()
	defer service.configMutex.RUnlock()
	return service.config
}

// Root returns the opened root or an empty string.
func (service *Service) Root() string {
	return service.nodes.Root()
}

// Epoch returns the current scan generation.
func (service *Service) Epoch() uint64 {
	return service.epoch.Current()
}

// Open scans path, replaces the index with the result and starts background
// analysis of every file. An empty path opens the working directory. A non-nil
// appConfig replaces the active configuration before the scan.
func (service *Service) Open(ctx context.Context, path string, appConfig *config.AppConfig) ([]types.Node, error) {
	if path == "" {
		workingDirectory, workingDirectoryErr := os.Getwd()
		if workingDirectoryErr != nil {
			return nil, fmt.Errorf("resolve working directory: %w", workingDirectoryErr)
		}
		path = workingDirectory
	}
	if appConfig != nil {
		service.configMutex.Lock()
		service.config = *appConfig
		if service.counterFactory != nil && appConfig.TokenizerModel != service.counterModel {
			service.counter = service.counterFactory(appConfig.TokenizerModel)
			service.counterModel = appConfig.TokenizerModel
		}
		service.configMutex.Unlock()
	}
	activeConfig := service.Config()
	root, absErr := filepath.Abs(path)
	if absErr != nil {
		return nil, fmt.Errorf("resolve root %s: %w", path, absErr)
	}

	generation := service.epoch.Next()
	logger := service.logger.With(zap.String("root", root), zap.Uint64("epoch", generation))
	startedAt := time.Now()
	nodes, scanErr := scanner.Scan(ctx, scanner.Options{
		Root:   root,
		Config: activeConfig,
		Prior:  selection.LoadState(root, logger),
		Logger: logger,
	})
	metrics.RecordScan(scanKindRoot, len(nodes), time.Since(startedAt), scanErr == nil)
	if scanErr != nil {
		return nil, scanErr
	}

	installed := service.epoch.Guard(generation, func() {
		service.nodes.Install(root, nodes)
	})
	if !installed {
		logger.Debug("scan superseded before install")
		return nodes, nil
	}
	logger.Info("scan complete, starting background analysis", zap.Int("nodes", service.nodes.Len()))
	service.startAnalysis(generation, nodes, logger)
	return nodes, nil
}

func (service *Service) startAnalysis(generation uint64, nodes []types.Node, logger *zap.Logger) {
	items := make([]analyzer.Item, 0, len(nodes))
	for _, node := range nodes {
		if !node.IsDirectory {
			items = append(items, analyzer.Item{ID: node.ID, Path: node.Path})
		}
	}
	done := make(chan struct{})
	service.analysisMutex.Lock()
	service.analysisDone = done
	service.analysisMutex.Unlock()

	service.analyses.Add(1)
	go func() {
		defer service.analyses.Done()
		defer close(done)
		options := analyzer.Options{
			Epoch:       &service.epoch,
			Generation:  generation,
			Counter:     service.tokenCounter(),
			Concurrency: service.concurrency,
			BatchSize:   service.batchSize,
			Logger:      logger,
		}
		if analyzeErr := analyzer.Analyze(service.background, options, items, analysisSink{service: service}); analyzeErr != nil {
			logger.Debug("background analysis stopped", zap.Error(analyzeErr))
		}
	}()
}

type analysisSink struct {
	service *Service
}

func (sink analysisSink) FilesUpdated(epoch uint64, updates []types.FileUpdate) {
	sink.service.nodes.ApplyUpdates(updates)
	sink.service.emitter.Emit(stream.FilesUpdated(epoch, updates))
}

func (sink analysisSink) AnalysisCompleted(epoch uint64) {
	sink.service.logger.Info("background analysis complete", zap.Uint64("epoch", epoch))
	sink.service.emitter.Emit(stream.AnalysisCompleted(epoch))
}

// WaitForAnalysis blocks until the most recently started analysis returns.
func (service *Service) WaitForAnalysis(ctx context.Context) error {
	service.analysisMutex.Lock()
	done := service.analysisDone
	service.analysisMutex.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops background analysis and waits for it to return.
func (service *Service) Close() {
	service.stopBackground()
	service.analyses.Wait()
}

// ScanDirectory lists the direct children of a directory node and adds the ones
// not yet indexed. It returns the added nodes.
func (service *Service) ScanDirectory(ctx context.Context, id string) ([]types.Node, error) {
	root := service.nodes.Root()
	if root == "" {
		return nil, types.ErrNoRoot
	}
	node, exists := service.nodes.Get(id)
	if !exists {
		return nil, fmt.Errorf(unknownNodeFormat, id, types.ErrNotFound)
	}
	if !node.IsDirectory {
		return nil, fmt.Errorf("node %s is not a directory: %w", id, types.ErrPrecondition)
	}
	startedAt := time.Now()
	children, scanErr := scanner.ScanDirectory(ctx, scanner.Options{Root: root, Config: service.Config(), Logger: service.logger}, id)
	metrics.RecordScan(scanKindDirectory, len(children), time.Since(startedAt), scanErr == nil)
	if scanErr != nil {
		return nil, scanErr
	}
	added := service.nodes.Merge(children)
	service.logger.Debug("directory scanned", zap.String("id", id), zap.Int("added", len(added)))
	return added, nil
}

// UpdateSelection sets the selection of a node and, for a directory, of its subtree.
// It reports whether the id was known.
func (service *Service) UpdateSelection(id string, selected bool) bool {
	return service.nodes.UpdateSelection(id, selected)
}

// ToggleExpanded sets the expansion flag of one node. It reports whether the id was known.
func (service *Service) ToggleExpanded(id string, expanded bool) bool {
	return service.nodes.ToggleExpanded(id, expanded)
}

// SelectAll selects every file.
func (service *Service) SelectAll() {
	service.nodes.SelectAll()
}

// DeselectAll clears every selection.
func (service *Service) DeselectAll() {
	service.nodes.DeselectAll()
}

// Tree returns every node in display order.
func (service *Service) Tree() []types.Node {
	return service.nodes.Nodes()
}

// State returns a copy of the id to node map.
func (service *Service) State() map[string]types.Node {
	return service.nodes.Snapshot().Nodes
}

// Search returns the ids of nodes whose name contains query.
func (service *Service) Search(query string) []string {
	return service.nodes.Search(query)
}

// Generate exports the eligible files of the current index. The full document
// replaces the export cache and the selection record is saved on a best-effort basis.
func (service *Service) Generate(ctx context.Context, outputPath string) (generator.Result, error) {
	snapshot := service.nodes.Snapshot()
	if snapshot.Root == "" {
		return generator.Result{}, types.ErrNoRoot
	}
	excludeDestination(snapshot, generator.ResolveOutputPath(snapshot.Root, outputPath))
	startedAt := time.Now()
	result, generateErr := generator.Generate(ctx, generator.Options{
		Snapshot:    snapshot,
		Config:      service.Config(),
		OutputPath:  outputPath,
		Concurrency: service.concurrency,
		Logger:      service.logger,
		Progress: func(progress types.ProgressEvent) {
			service.emitter.Emit(stream.GenerationProgress(progress))
		},
	})
	metrics.RecordExport(len(result.Content), time.Since(startedAt), generateErr == nil)
	if generateErr != nil {
		return generator.Result{}, generateErr
	}

	service.cache.Store(result.Content)
	if saveErr := selection.Save(snapshot.Root, selection.BuildRecord(snapshot)); saveErr != nil {
		service.logger.Warn("failed to save selection record", zap.String("root", snapshot.Root), zap.Error(saveErr))
	}
	service.emitter.Emit(stream.GenerationProgress(types.ProgressEvent{
		Current: result.Stats.Files,
		Total:   result.Stats.Files,
		Stage:   types.StageCompleted,
	}))
	service.logger.Info("export complete",
		zap.Int("files", result.Stats.Files),
		zap.Int64("size", result.Stats.Size),
		zap.Int("tokens", result.Stats.Tokens),
		zap.Bool("truncated_preview", result.IsTruncated))
	return result, nil
}

// excludeDestination deselects the export target in snapshot when it is a file
// inside the root, so a repeated export never reads its own previous output.
func excludeDestination(snapshot index.Snapshot, destination string) {
	if destination == "" {
		return
	}
	relativePath, relErr := filepath.Rel(snapshot.Root, destination)
	if relErr != nil || relativePath == "." || strings.HasPrefix(relativePath, "..") {
		return
	}
	id := filepath.ToSlash(relativePath)
	if node, exists := snapshot.Nodes[id]; exists && !node.IsDirectory {
		node.Selected = false
		snapshot.Nodes[id] = node
	}
}

// Stats totals the eligible files, counting tokens that are still unknown without
// touching the index.
func (service *Service) Stats(ctx context.Context) (types.Stats, error) {
	return generator.Stats(ctx, service.nodes.Snapshot(), service.tokenCounter(), service.concurrency, service.logger)
}

// CachedExport returns the most recent export.
func (service *Service) CachedExport() (string, error) {
	content, present := service.cache.Load()
	if !present {
		return "", types.ErrEmptyCache
	}
	return content, nil
}

// CopyFromCache hands the most recent export to the clipboard.
func (service *Service) CopyFromCache() error {
	content, cacheErr := service.CachedExport()
	if cacheErr != nil {
		return cacheErr
	}
	if sizeErr := clipboard.CheckSize(content); sizeErr != nil {
		return sizeErr
	}
	if copyErr := service.copier.Copy(content); copyErr != nil {
		return fmt.Errorf("copy export: %w", copyErr)
	}
	service.logger.Info("export copied to clipboard", zap.Int("bytes", len(content)))
	return nil
}

// ReadFile returns the text of one file node. Files above MaxPreviewFileBytes are
// cut with a footer and binary files yield utils.BinaryPlaceholder.
//
// #nosec G304
func (service *Service) ReadFile(id string) (string, error) {
	node, exists := service.nodes.Get(id)
	if !exists {
		return "", fmt.Errorf(unknownNodeFormat, id, types.ErrNotFound)
	}
	if node.IsDirectory {
		return "", fmt.Errorf("cannot read directory %s as file: %w", id, types.ErrPrecondition)
	}
	size := node.SizeOrZero()
	if node.Size == nil {
		if info, statErr := os.Stat(node.Path); statErr == nil {
			size = info.Size()
		}
	}

	if size > MaxPreviewFileBytes {
		if utils.IsFileBinary(node.Path) {
			return utils.BinaryPlaceholder, nil
		}
		fileHandle, openErr := os.Open(node.Path)
		if openErr != nil {
			return "", fmt.Errorf("open file %s: %w", node.Path, openErr)
		}
		defer fileHandle.Close()
		buffer := make([]byte, MaxPreviewFileBytes)
		bytesRead, readErr := io.ReadFull(fileHandle, buffer)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return "", fmt.Errorf("read file %s: %w", node.Path, readErr)
		}
		service.logger.Debug("preview truncated", zap.String("id", id), zap.Int64("size", size))
		return utils.DecodeText(buffer[:bytesRead]) + fmt.Sprintf(truncatedFooterFormat, size), nil
	}

	data, readErr := os.ReadFile(node.Path)
	if readErr != nil {
		return "", fmt.Errorf("read file %s: %w", node.Path, readErr)
	}
	if utils.IsBinary(data) {
		return utils.BinaryPlaceholder, nil
	}
	return utils.DecodeText(data), nil
}

// SaveSelection writes the selection record of the opened root.
func (service *Service) SaveSelection() error {
	snapshot := service.nodes.Snapshot()
	if snapshot.Root == "" {
		return types.ErrNoRoot
	}
	return selection.Save(snapshot.Root, selection.BuildRecord(snapshot))
}

// LoadSelection replaces the index with the nodes of the saved record and returns
// them in display order. A missing record yields an empty list and leaves the index alone.
func (service *Service) LoadSelection() ([]types.Node, error) {
	root := service.nodes.Root()
	if root == "" {
		return nil, types.ErrNoRoot
	}
	record, found, readErr := selection.Read(root)
	if readErr != nil {
		return nil, readErr
	}
	if !found {
		return []types.Node{}, nil
	}
	nodes := selection.Nodes(root, record)
	service.nodes.Install(root, nodes)
	types.SortNodes(nodes)
	return nodes, nil
}

// ParentDirectory returns the parent of path, or false when path is a filesystem root.
func ParentDirectory(path string) (string, bool) {
	cleaned := filepath.Clean(path)
	parent := filepath.Dir(cleaned)
	if parent == cleaned {
		return "", false
	}
	return parent, true
}
