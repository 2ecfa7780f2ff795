package analyzer_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/temirov/repo2txt/internal/analyzer"
	"github.com/temirov/repo2txt/internal/index"
	"github.com/temirov/repo2txt/internal/types"
)

type runeCounter struct{}

func (runeCounter) Name() string { return "runes" }

func (runeCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

type recordingSink struct {
	mutex     sync.Mutex
	batches   [][]types.FileUpdate
	completed []uint64
	onUpdate  func()
}

func (sink *recordingSink) FilesUpdated(epoch uint64, updates []types.FileUpdate) {
	if sink.onUpdate != nil {
		sink.onUpdate()
	}
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.batches = append(sink.batches, append([]types.FileUpdate{}, updates...))
}

func (sink *recordingSink) AnalysisCompleted(epoch uint64) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.completed = append(sink.completed, epoch)
}

func (sink *recordingSink) updates() map[string]types.FileUpdate {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	result := make(map[string]types.FileUpdate)
	for _, batch := range sink.batches {
		for _, update := range batch {
			result[update.ID] = update
		}
	}
	return result
}

func writeItems(t *testing.T, count int) []analyzer.Item {
	t.Helper()
	root := t.TempDir()
	items := make([]analyzer.Item, 0, count)
	for itemIndex := 0; itemIndex < count; itemIndex++ {
		name := fmt.Sprintf("file%03d.txt", itemIndex)
		path := filepath.Join(root, name)
		if err := os.WriteFile(path, []byte("abcd"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		items = append(items, analyzer.Item{ID: name, Path: path})
	}
	return items
}

func TestAnalyzeMeasuresFiles(t *testing.T) {
	root := t.TempDir()
	textPath := filepath.Join(root, "text.txt")
	binaryPath := filepath.Join(root, "blob.dat")
	if err := os.WriteFile(textPath, []byte("héllo"), 0o644); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := os.WriteFile(binaryPath, []byte{'a', 0x00, 'b', 'c'}, 0o644); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	items := []analyzer.Item{
		{ID: "text.txt", Path: textPath},
		{ID: "blob.dat", Path: binaryPath},
		{ID: "missing.txt", Path: filepath.Join(root, "missing.txt")},
	}

	var epoch index.Epoch
	generation := epoch.Next()
	sink := &recordingSink{}
	err := analyzer.Analyze(context.Background(), analyzer.Options{Epoch: &epoch, Generation: generation, Counter: runeCounter{}}, items, sink)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	updates := sink.updates()
	expected := map[string]types.FileUpdate{
		"text.txt":    {ID: "text.txt", Size: int64(len("héllo")), TokenCount: 5},
		"blob.dat":    {ID: "blob.dat", Size: 4, TokenCount: 0},
		"missing.txt": {ID: "missing.txt", Size: 0, TokenCount: 0},
	}
	for id, want := range expected {
		if got := updates[id]; got != want {
			t.Fatalf("unexpected update for %s: got %+v want %+v", id, got, want)
		}
	}
	if len(sink.completed) != 1 || sink.completed[0] != generation {
		t.Fatalf("expected one completion for epoch %d, got %v", generation, sink.completed)
	}
}

func TestAnalyzeBatchesUpdates(t *testing.T) {
	items := writeItems(t, 250)
	var epoch index.Epoch
	generation := epoch.Next()
	sink := &recordingSink{}
	options := analyzer.Options{Epoch: &epoch, Generation: generation, Counter: runeCounter{}, Concurrency: 8, BatchSize: 100}
	if err := analyzer.Analyze(context.Background(), options, items, sink); err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if len(sink.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(sink.batches))
	}
	if len(sink.batches[0]) != 100 || len(sink.batches[1]) != 100 || len(sink.batches[2]) != 50 {
		t.Fatalf("unexpected batch sizes %d %d %d", len(sink.batches[0]), len(sink.batches[1]), len(sink.batches[2]))
	}
	if len(sink.updates()) != 250 {
		t.Fatalf("expected every item to be measured once")
	}
}

func TestAnalyzeEmptyInputStillCompletes(t *testing.T) {
	var epoch index.Epoch
	generation := epoch.Next()
	sink := &recordingSink{}
	if err := analyzer.Analyze(context.Background(), analyzer.Options{Epoch: &epoch, Generation: generation}, nil, sink); err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if len(sink.batches) != 0 || len(sink.completed) != 1 {
		t.Fatalf("expected only a completion, got %d batches and %v", len(sink.batches), sink.completed)
	}
}

type switchingCounter struct {
	epoch     *index.Epoch
	calls     atomic.Int64
	switchAt  int64
	switched  *atomic.Bool
	switching sync.Once
}

func (counter *switchingCounter) Name() string { return "switching" }

func (counter *switchingCounter) CountString(input string) (int, error) {
	if counter.calls.Add(1) == counter.switchAt {
		counter.switching.Do(func() {
			counter.epoch.Next()
			counter.switched.Store(true)
		})
	}
	return len(input), nil
}

func TestAnalyzeStopsAfterEpochSwitch(t *testing.T) {
	items := writeItems(t, 40)
	var epoch index.Epoch
	generation := epoch.Next()
	var switched atomic.Bool
	counter := &switchingCounter{epoch: &epoch, switchAt: 10, switched: &switched}

	sink := &recordingSink{}
	sink.onUpdate = func() {
		if switched.Load() {
			t.Errorf("batch emitted after the epoch switched")
		}
	}
	options := analyzer.Options{Epoch: &epoch, Generation: generation, Counter: counter, Concurrency: 2, BatchSize: 3}
	if err := analyzer.Analyze(context.Background(), options, items, sink); err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if len(sink.completed) != 0 {
		t.Fatalf("stale run must not report completion")
	}
	if measured := len(sink.updates()); measured >= len(items) {
		t.Fatalf("expected the stale run to stop early, measured %d", measured)
	}
}

func TestAnalyzeRequiresEpoch(t *testing.T) {
	if err := analyzer.Analyze(context.Background(), analyzer.Options{}, nil, &recordingSink{}); err == nil {
		t.Fatalf("expected error without epoch")
	}
}
