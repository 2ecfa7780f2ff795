package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/temirov/repo2txt/internal/output"
	"github.com/temirov/repo2txt/internal/services/stream"
	"github.com/temirov/repo2txt/internal/types"
	"github.com/temirov/repo2txt/internal/utils"
)

type wordCounter struct{}

func (wordCounter) Name() string { return "words" }

func (wordCounter) CountString(input string) (int, error) { return len(strings.Fields(input)), nil }

type copierStub struct {
	mutex  sync.Mutex
	copies []string
}

func (stub *copierStub) Copy(text string) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.copies = append(stub.copies, text)
	return nil
}

func (stub *copierStub) last() string {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if len(stub.copies) == 0 {
		return ""
	}
	return stub.copies[len(stub.copies)-1]
}

// executeCommand runs the root command with an isolated home directory.
func executeCommand(t *testing.T, copier *copierStub, arguments ...string) (string, string, error) {
	t.Helper()
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("USERPROFILE", homeDirectory)

	if copier == nil {
		copier = &copierStub{}
	}
	rootCommand := createRootCommand(dependencies{copier: copier, counter: wordCounter{}})
	var standardOutput, standardError bytes.Buffer
	rootCommand.SetOut(&standardOutput)
	rootCommand.SetErr(&standardError)
	rootCommand.SetArgs(joinToggleArguments(rootCommand, append([]string{"--log-level", "error"}, arguments...)))
	executeErr := rootCommand.ExecuteContext(context.Background())
	return standardOutput.String(), standardError.String(), executeErr
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.txt":          "alpha beta",
		"b.txt":          "gamma",
		"src/main.go":    "package main",
		"node_modules/x": "ignored",
	}
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		if err := os.MkdirAll(filepath.Dir(absolutePath), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(absolutePath, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", relativePath, err)
		}
	}
	return root
}

func TestTreeCommandRendersRawTreeWithSummary(t *testing.T) {
	root := writeProject(t)
	standardOutput, _, err := executeCommand(t, nil, "tree", root)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	for _, expected := range []string{root, "a.txt (2 tokens, 10b)", "main.go", "Summary: 3 files"} {
		if !strings.Contains(standardOutput, expected) {
			t.Fatalf("expected %q in output:\n%s", expected, standardOutput)
		}
	}
	if strings.Contains(standardOutput, "node_modules") {
		t.Fatalf("ignored directory listed:\n%s", standardOutput)
	}
}

func TestTreeCommandRendersJSONListing(t *testing.T) {
	root := writeProject(t)
	standardOutput, _, err := executeCommand(t, nil, "tree", "--format", "json", root)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	var listing output.Listing
	if decodeErr := json.Unmarshal([]byte(standardOutput), &listing); decodeErr != nil {
		t.Fatalf("decode listing: %v\n%s", decodeErr, standardOutput)
	}
	if listing.Root != root {
		t.Fatalf("expected root %s, got %s", root, listing.Root)
	}
	if listing.Summary.Files != 3 || listing.Summary.Tokens != 5 {
		t.Fatalf("unexpected summary %+v", listing.Summary)
	}
	if listing.Nodes[0].ID != "src" || listing.Nodes[0].Type != output.NodeTypeDirectory {
		t.Fatalf("expected directories first, got %+v", listing.Nodes[0])
	}
}

func TestExportCommandWritesConfiguredOutputAndReportsProgress(t *testing.T) {
	root := writeProject(t)
	standardOutput, standardError, err := executeCommand(t, nil, "export", root)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	outputPath := filepath.Join(root, "output.md")
	written, readErr := os.ReadFile(outputPath)
	if readErr != nil {
		t.Fatalf("read export: %v", readErr)
	}
	if !strings.Contains(string(written), "## a.txt") || !strings.Contains(string(written), "## src/main.go") {
		t.Fatalf("unexpected export:\n%s", written)
	}
	if !strings.Contains(standardOutput, "Wrote "+outputPath) || !strings.Contains(standardOutput, "Summary: 3 files") {
		t.Fatalf("unexpected report:\n%s", standardOutput)
	}
	for _, expected := range []string{"Analyzed 3 files", "Preparing export", "Processing files 3/3", "Writing output", "Exported 3 files"} {
		if !strings.Contains(standardError, expected) {
			t.Fatalf("expected %q in progress:\n%s", expected, standardError)
		}
	}
}

func TestExportCommandPrintsAndCopiesDocument(t *testing.T) {
	root := writeProject(t)
	copier := &copierStub{}
	standardOutput, _, err := executeCommand(t, copier, "export", "--stdout", "--copy", "yes", root)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(standardOutput, "## b.txt") {
		t.Fatalf("expected document on stdout:\n%s", standardOutput)
	}
	if copier.last() != standardOutput {
		t.Fatalf("clipboard content differs from printed document")
	}
	if _, statErr := os.Stat(filepath.Join(root, "output.md")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat error %v", statErr)
	}
}

func TestDeselectPersistsAcrossInvocations(t *testing.T) {
	root := writeProject(t)
	standardOutput, _, err := executeCommand(t, nil, "deselect", root, "b.txt")
	if err != nil {
		t.Fatalf("deselect: %v", err)
	}
	if standardOutput != "Deselected 1 nodes\n" {
		t.Fatalf("unexpected confirmation %q", standardOutput)
	}
	if _, statErr := os.Stat(filepath.Join(root, utils.RecordFileName)); statErr != nil {
		t.Fatalf("expected selection record: %v", statErr)
	}

	document, _, exportErr := executeCommand(t, nil, "export", "--stdout", root)
	if exportErr != nil {
		t.Fatalf("export: %v", exportErr)
	}
	if strings.Contains(document, "## b.txt") || !strings.Contains(document, "## a.txt") {
		t.Fatalf("deselection not honored:\n%s", document)
	}

	if _, _, selectErr := executeCommand(t, nil, "select", "--all", root); selectErr != nil {
		t.Fatalf("select all: %v", selectErr)
	}
	document, _, exportErr = executeCommand(t, nil, "export", "--stdout", root)
	if exportErr != nil {
		t.Fatalf("export: %v", exportErr)
	}
	if !strings.Contains(document, "## b.txt") {
		t.Fatalf("select --all not honored:\n%s", document)
	}
}

func TestSelectionCommandRejectsUnknownNode(t *testing.T) {
	root := writeProject(t)
	_, _, err := executeCommand(t, nil, "select", root, "missing.txt")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, _, err = executeCommand(t, nil, "deselect", root)
	if err == nil {
		t.Fatalf("expected error without ids")
	}
}

func TestExpandCommandPersistsExpansion(t *testing.T) {
	root := writeProject(t)
	standardOutput, _, err := executeCommand(t, nil, "expand", root, "src")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if standardOutput != "Expanded 1 nodes\n" {
		t.Fatalf("unexpected confirmation %q", standardOutput)
	}
	listingOutput, _, treeErr := executeCommand(t, nil, "tree", "--format", "json", "--tokens=false", root)
	if treeErr != nil {
		t.Fatalf("tree: %v", treeErr)
	}
	var listing output.Listing
	if decodeErr := json.Unmarshal([]byte(listingOutput), &listing); decodeErr != nil {
		t.Fatalf("decode listing: %v", decodeErr)
	}
	for _, node := range listing.Nodes {
		if node.ID == "src" && !node.Expanded {
			t.Fatalf("expected src to stay expanded")
		}
	}
}

func TestSearchCommandReturnsMatches(t *testing.T) {
	root := writeProject(t)
	standardOutput, _, err := executeCommand(t, nil, "search", "--format", "json", root, "main")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var result output.SearchResult
	if decodeErr := json.Unmarshal([]byte(standardOutput), &result); decodeErr != nil {
		t.Fatalf("decode search: %v", decodeErr)
	}
	if len(result.Matches) == 0 || result.Matches[0] != "src/main.go" {
		t.Fatalf("unexpected matches %v", result.Matches)
	}
}

func TestReadAndStatsCommands(t *testing.T) {
	root := writeProject(t)
	content, _, err := executeCommand(t, nil, "read", root, "a.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if content != "alpha beta\n" {
		t.Fatalf("unexpected content %q", content)
	}
	statsOutput, _, statsErr := executeCommand(t, nil, "stats", "--format", "json", root)
	if statsErr != nil {
		t.Fatalf("stats: %v", statsErr)
	}
	var stats types.Stats
	if decodeErr := json.Unmarshal([]byte(statsOutput), &stats); decodeErr != nil {
		t.Fatalf("decode stats: %v", decodeErr)
	}
	expected := types.Stats{Files: 3, Size: 27, Tokens: 5}
	if stats != expected {
		t.Fatalf("expected %+v, got %+v", expected, stats)
	}
}

func TestConfigInitWritesLocalFile(t *testing.T) {
	workingDirectory := t.TempDir()
	t.Chdir(workingDirectory)
	standardOutput, _, err := executeCommand(t, nil, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	expectedPath := filepath.Join(workingDirectory, utils.LocalConfigFileName)
	if !strings.Contains(standardOutput, expectedPath) {
		t.Fatalf("expected %s in %q", expectedPath, standardOutput)
	}
	if _, _, secondErr := executeCommand(t, nil, "config", "init"); secondErr == nil {
		t.Fatalf("expected refusal to overwrite without --force")
	}
	if _, _, forcedErr := executeCommand(t, nil, "config", "init", "--force"); forcedErr != nil {
		t.Fatalf("forced init: %v", forcedErr)
	}
}

func TestCommandsRejectInvalidInput(t *testing.T) {
	root := writeProject(t)
	testCases := []struct {
		name      string
		arguments []string
		target    error
	}{
		{name: "unsupported_format", arguments: []string{"tree", "--format", "xml", root}},
		{name: "missing_path", arguments: []string{"tree", filepath.Join(root, "absent")}, target: types.ErrNotFound},
		{name: "file_path", arguments: []string{"stats", filepath.Join(root, "a.txt")}, target: types.ErrPrecondition},
		{name: "read_directory", arguments: []string{"read", root, "src"}, target: types.ErrPrecondition},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, _, err := executeCommand(t, nil, testCase.arguments...)
			if err == nil {
				t.Fatalf("expected error for %v", testCase.arguments)
			}
			if testCase.target != nil && !errors.Is(err, testCase.target) {
				t.Fatalf("expected %v, got %v", testCase.target, err)
			}
		})
	}
}

func TestDispatchStreamPropagatesConsumerError(t *testing.T) {
	t.Parallel()

	consumerErr := errors.New("consumer failed")
	producer := func(ctx context.Context, events chan<- stream.Event) error {
		emitter := stream.NewChannelEmitter(ctx, events)
		for index := 0; index < 3; index++ {
			if sendErr := emitter.Send(stream.AnalysisCompleted(uint64(index))); sendErr != nil {
				return sendErr
			}
		}
		return nil
	}
	consumed := 0
	err := dispatchStream(context.Background(), producer, func(stream.Event) error {
		consumed++
		return consumerErr
	})
	if !errors.Is(err, consumerErr) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if consumed != 1 {
		t.Fatalf("expected consumption to stop after the failure, got %d", consumed)
	}
}
