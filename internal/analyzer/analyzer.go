// Package analyzer measures file sizes and token counts in the background.
package analyzer

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repo2txt/internal/index"
	"github.com/temirov/repo2txt/internal/metrics"
	"github.com/temirov/repo2txt/internal/tokenizer"
	"github.com/temirov/repo2txt/internal/types"
)

const (
	// DefaultConcurrency bounds the number of files read at once.
	DefaultConcurrency = 50
	// DefaultBatchSize is the number of measurements emitted together.
	DefaultBatchSize = 100
)

// Item is one file to measure.
type Item struct {
	ID   string
	Path string
}

// Sink receives the analyzer output. Both calls happen only while their epoch is current.
type Sink interface {
	FilesUpdated(epoch uint64, updates []types.FileUpdate)
	AnalysisCompleted(epoch uint64)
}

// Options configures one analysis run.
type Options struct {
	Epoch *index.Epoch
	// Generation is the epoch the run was spawned for.
	Generation  uint64
	Counter     tokenizer.Counter
	Concurrency int
	BatchSize   int
	Logger      *zap.Logger
}

// Analyze measures every item and streams the results to sink in batches.
// Work stops quietly once the epoch moves past options.Generation; per-file
// failures degrade that file to zero size or tokens. The returned error is
// non-nil only when ctx is cancelled.
func Analyze(ctx context.Context, options Options, items []Item, sink Sink) error {
	if options.Epoch == nil {
		return errors.New("analyzer requires an epoch")
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	counter := options.Counter
	if counter == nil {
		counter = tokenizer.ApproximateCounter{}
	}
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	generation := options.Generation

	group, groupCtx := errgroup.WithContext(ctx)
	results := make(chan types.FileUpdate, concurrency)

	group.Go(func() error {
		defer close(results)
		workers, workersCtx := errgroup.WithContext(groupCtx)
		workers.SetLimit(concurrency)
		for _, item := range items {
			if workersCtx.Err() != nil || !options.Epoch.IsCurrent(generation) {
				break
			}
			workers.Go(func() error {
				if !options.Epoch.IsCurrent(generation) {
					return nil
				}
				update := Measure(counter, item, logger)
				select {
				case results <- update:
					return nil
				case <-workersCtx.Done():
					return workersCtx.Err()
				}
			})
		}
		return workers.Wait()
	})

	group.Go(func() error {
		batch := make([]types.FileUpdate, 0, batchSize)
		stale := false
		for update := range results {
			if stale {
				continue
			}
			batch = append(batch, update)
			if len(batch) < batchSize {
				continue
			}
			emitted := batch
			if !options.Epoch.Guard(generation, func() { sink.FilesUpdated(generation, emitted) }) {
				stale = true
				metrics.RecordStaleBatch()
				logger.Debug("dropping stale analysis batch", zap.Uint64("epoch", generation))
			}
			batch = make([]types.FileUpdate, 0, batchSize)
		}
		if stale || groupCtx.Err() != nil {
			return nil
		}
		final := batch
		completed := options.Epoch.Guard(generation, func() {
			if len(final) > 0 {
				sink.FilesUpdated(generation, final)
			}
			sink.AnalysisCompleted(generation)
		})
		if !completed {
			metrics.RecordStaleBatch()
			logger.Debug("dropping stale analysis completion", zap.Uint64("epoch", generation))
		}
		return nil
	})

	return group.Wait()
}

// Measure stats and reads one file. Stat failure yields size zero, read failure
// yields zero tokens, and binary content always counts zero tokens.
//
// #nosec G304
func Measure(counter tokenizer.Counter, item Item, logger *zap.Logger) types.FileUpdate {
	update := types.FileUpdate{ID: item.ID}
	if info, statErr := os.Stat(item.Path); statErr == nil {
		update.Size = info.Size()
	} else {
		logger.Debug("stat failed", zap.String("path", item.Path), zap.Error(statErr))
	}
	result, countErr := tokenizer.CountFile(counter, item.Path)
	if countErr != nil {
		logger.Debug("read failed", zap.String("path", item.Path), zap.Error(countErr))
		return update
	}
	if result.Approximated {
		logger.Debug("token count approximated", zap.String("path", item.Path))
	}
	metrics.RecordAnalyzedFile(result.Binary)
	update.TokenCount = result.Tokens
	return update
}
