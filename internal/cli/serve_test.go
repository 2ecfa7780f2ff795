package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repo2txt/internal/types"
)

const serverListeningPrefix = "Command server listening on "

type synchronizedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (writer *synchronizedBuffer) Write(data []byte) (int, error) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return writer.buffer.Write(data)
}

func (writer *synchronizedBuffer) String() string {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return writer.buffer.String()
}

func waitForServerAddress(t *testing.T, writer *synchronizedBuffer) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, line := range strings.Split(writer.String(), "\n") {
			if strings.HasPrefix(line, serverListeningPrefix) {
				return strings.TrimPrefix(line, serverListeningPrefix)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server address not reported: %s", writer.String())
	return ""
}

type commandClient struct {
	t       *testing.T
	ctx     context.Context
	address string
	client  http.Client
}

func (client commandClient) post(command string, payload string, target interface{}) int {
	client.t.Helper()
	request, requestErr := http.NewRequestWithContext(client.ctx, http.MethodPost, "http://"+client.address+"/commands/"+command, strings.NewReader(payload))
	if requestErr != nil {
		client.t.Fatalf("create request: %v", requestErr)
	}
	response, responseErr := client.client.Do(request)
	if responseErr != nil {
		client.t.Fatalf("execute %s: %v", command, responseErr)
	}
	defer response.Body.Close()
	if target != nil && response.StatusCode == http.StatusOK {
		envelope := struct {
			Result   json.RawMessage `json:"result"`
			Warnings []string        `json:"warnings"`
		}{}
		if decodeErr := json.NewDecoder(response.Body).Decode(&envelope); decodeErr != nil {
			client.t.Fatalf("decode %s response: %v", command, decodeErr)
		}
		if decodeErr := json.Unmarshal(envelope.Result, target); decodeErr != nil {
			client.t.Fatalf("decode %s result: %v", command, decodeErr)
		}
	}
	return response.StatusCode
}

func TestCommandServerDrivesWorkspace(t *testing.T) {
	root := writeProject(t)
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("USERPROFILE", homeDirectory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	copier := &copierStub{}
	app := &application{dependencies: dependencies{copier: copier, counter: wordCounter{}}, logger: zap.NewNop()}
	var writer synchronizedBuffer
	done := make(chan error, 1)
	go func() {
		done <- startCommandServer(ctx, app, "", "127.0.0.1:0", &writer)
	}()
	client := commandClient{t: t, ctx: ctx, address: waitForServerAddress(t, &writer), client: http.Client{Timeout: 5 * time.Second}}

	if status := client.post(commandTree, "", nil); status != http.StatusOK {
		t.Fatalf("tree before open: unexpected status %d", status)
	}
	if status := client.post(commandGenerate, "", nil); status != http.StatusConflict {
		t.Fatalf("generate before open: expected 409, got %d", status)
	}

	var opened openResponse
	openPayload, _ := json.Marshal(openRequest{Path: root})
	if status := client.post(commandOpen, string(openPayload), &opened); status != http.StatusOK {
		t.Fatalf("open: unexpected status %d", status)
	}
	if opened.Root != root || len(opened.Nodes) != 4 {
		t.Fatalf("unexpected open result %+v", opened)
	}

	var changed changedResponse
	if status := client.post(commandUpdateSelection, `{"id":"b.txt","selected":false}`, &changed); status != http.StatusOK || !changed.Changed {
		t.Fatalf("update_selection: status %d, changed %t", status, changed.Changed)
	}
	if status := client.post(commandUpdateSelection, `{"id":"missing","selected":false}`, &changed); status != http.StatusOK || changed.Changed {
		t.Fatalf("update_selection of unknown id: status %d, changed %t", status, changed.Changed)
	}

	var generated generateResponse
	if status := client.post(commandGenerate, "", &generated); status != http.StatusOK {
		t.Fatalf("generate: unexpected status %d", status)
	}
	if generated.Stats.Files != 2 || strings.Contains(generated.PreviewContent, "## b.txt") {
		t.Fatalf("unexpected export %+v", generated.GenerateResult)
	}
	if status := client.post(commandCopyFromCache, "", nil); status != http.StatusOK {
		t.Fatalf("copy_from_cache: unexpected status %d", status)
	}
	if !strings.Contains(copier.last(), "## a.txt") {
		t.Fatalf("unexpected clipboard content %q", copier.last())
	}

	var stats types.Stats
	if status := client.post(commandStats, "", &stats); status != http.StatusOK || stats.Files != 2 {
		t.Fatalf("stats: status %d, stats %+v", status, stats)
	}

	var read readFileResponse
	if status := client.post(commandReadFile, `{"id":"a.txt"}`, &read); status != http.StatusOK || read.Content != "alpha beta" {
		t.Fatalf("read_file: status %d, content %q", status, read.Content)
	}

	var parent parentDirectoryResponse
	if status := client.post(commandParentDirectory, string(openPayload), &parent); status != http.StatusOK || !parent.HasParent || parent.Parent != filepath.Dir(root) {
		t.Fatalf("parent_directory: status %d, result %+v", status, parent)
	}

	testCases := []struct {
		command  string
		payload  string
		expected int
	}{
		{command: commandReadFile, payload: `{"id":"missing"}`, expected: http.StatusNotFound},
		{command: commandReadFile, payload: `{"id":"src"}`, expected: http.StatusConflict},
		{command: commandReadFile, payload: `{}`, expected: http.StatusBadRequest},
		{command: commandSearch, payload: `{"query":`, expected: http.StatusBadRequest},
		{command: commandScanDirectory, payload: `{"id":"a.txt"}`, expected: http.StatusConflict},
		{command: commandParentDirectory, payload: `{}`, expected: http.StatusBadRequest},
		{command: "unknown", payload: `{}`, expected: http.StatusNotFound},
	}
	for _, testCase := range testCases {
		if status := client.post(testCase.command, testCase.payload, nil); status != testCase.expected {
			t.Fatalf("%s %s: expected %d, got %d", testCase.command, testCase.payload, testCase.expected, status)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server shutdown error: %v", err)
	}
}

func TestAPICapabilitiesCoverEveryExecutor(t *testing.T) {
	t.Parallel()

	executors := commandHandlers{}.executors()
	capabilities := apiCapabilities()
	if len(capabilities) != len(executors) {
		t.Fatalf("expected %d capabilities, got %d", len(executors), len(capabilities))
	}
	for _, capability := range capabilities {
		if _, found := executors[capability.Name]; !found {
			t.Fatalf("capability %s has no executor", capability.Name)
		}
	}
}
