package generator

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repo2txt/internal/index"
	"github.com/temirov/repo2txt/internal/tokenizer"
	"github.com/temirov/repo2txt/internal/types"
)

// Stats totals the eligible files of snapshot. Files whose token count is still
// unknown are read and counted; files that cannot be read contribute nothing
// beyond their file count.
func Stats(ctx context.Context, snapshot index.Snapshot, counter tokenizer.Counter, concurrency int, logger *zap.Logger) (types.Stats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = tokenizer.ApproximateCounter{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	eligible := snapshot.Eligible()
	stats := types.Stats{Files: len(eligible)}
	var mutex sync.Mutex
	add := func(size int64, tokens int) {
		mutex.Lock()
		defer mutex.Unlock()
		stats.Size += size
		stats.Tokens += tokens
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, node := range eligible {
		if node.TokenCount != nil {
			add(node.SizeOrZero(), *node.TokenCount)
			continue
		}
		group.Go(func() error {
			if contextErr := groupCtx.Err(); contextErr != nil {
				return contextErr
			}
			// #nosec G304
			data, readErr := os.ReadFile(node.Path)
			if readErr != nil {
				logger.Debug("read failed", zap.String("path", node.Path), zap.Error(readErr))
				add(node.SizeOrZero(), 0)
				return nil
			}
			result, countErr := tokenizer.CountBytes(counter, data)
			if countErr != nil {
				logger.Debug("token count failed", zap.String("path", node.Path), zap.Error(countErr))
			}
			size := node.SizeOrZero()
			if node.Size == nil {
				size = int64(len(data))
			}
			add(size, result.Tokens)
			return nil
		})
	}
	if waitErr := group.Wait(); waitErr != nil {
		return types.Stats{}, waitErr
	}
	return stats, nil
}
