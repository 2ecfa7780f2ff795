package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/temirov/repo2txt/internal/services/api"
	"github.com/temirov/repo2txt/internal/services/stream"
	"github.com/temirov/repo2txt/internal/types"
)

func startServer(t *testing.T, config api.Config) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	server := api.NewServer(config)
	addressCh := make(chan string, 1)
	errorCh := make(chan error, 1)
	go func() {
		errorCh <- server.Run(ctx, func(address string) {
			addressCh <- address
		})
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-errorCh; err != nil {
			t.Errorf("server error: %v", err)
		}
	})
	select {
	case address := <-addressCh:
		return "http://" + address
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not start")
	}
	return ""
}

func TestServerRunExposesCapabilities(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		config       api.Config
		expectedCaps []api.Capability
	}{
		{
			name: "single capability",
			config: api.Config{
				Capabilities: []api.Capability{{Name: "open", Description: "Scan a directory"}},
				Address:      "127.0.0.1:0",
			},
			expectedCaps: []api.Capability{{Name: "open", Description: "Scan a directory"}},
		},
		{
			name: "multiple capabilities",
			config: api.Config{
				Capabilities: []api.Capability{
					{Name: "generate", Description: "Export selected files"},
					{Name: "stats", Description: "Total selected files"},
				},
			},
			expectedCaps: []api.Capability{
				{Name: "generate", Description: "Export selected files"},
				{Name: "stats", Description: "Total selected files"},
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			baseURL := startServer(t, testCase.config)

			client := http.Client{Timeout: 2 * time.Second}
			response, err := client.Get(baseURL + "/capabilities")
			if err != nil {
				t.Fatalf("perform request: %v", err)
			}
			defer response.Body.Close()
			if response.StatusCode != http.StatusOK {
				t.Fatalf("unexpected status: %d", response.StatusCode)
			}
			var body struct {
				Capabilities []api.Capability `json:"capabilities"`
			}
			if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if len(body.Capabilities) != len(testCase.expectedCaps) {
				t.Fatalf("expected %d capabilities, got %d", len(testCase.expectedCaps), len(body.Capabilities))
			}
			for capabilityIndex, capability := range body.Capabilities {
				if capability != testCase.expectedCaps[capabilityIndex] {
					t.Fatalf("capability %d mismatch: got %+v, want %+v", capabilityIndex, capability, testCase.expectedCaps[capabilityIndex])
				}
			}
		})
	}
}

func TestServerExecutesCommands(t *testing.T) {
	t.Parallel()

	type echoRequest struct {
		ID string `json:"id"`
	}
	executors := map[string]api.CommandExecutor{
		"echo": api.CommandExecutorFunc(func(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
			var payload echoRequest
			if err := request.Decode(&payload); err != nil {
				return api.CommandResponse{}, err
			}
			return api.CommandResponse{Result: payload.ID}, nil
		}),
		"missing": api.CommandExecutorFunc(func(context.Context, api.CommandRequest) (api.CommandResponse, error) {
			return api.CommandResponse{}, fmt.Errorf("node x: %w", types.ErrNotFound)
		}),
	}
	baseURL := startServer(t, api.Config{Executors: executors})

	testCases := []struct {
		name           string
		command        string
		body           string
		expectedStatus int
		expectedResult string
	}{
		{name: "success", command: "echo", body: `{"id":"src/main.go"}`, expectedStatus: http.StatusOK, expectedResult: "src/main.go"},
		{name: "empty payload", command: "echo", expectedStatus: http.StatusOK},
		{name: "malformed payload", command: "echo", body: `{`, expectedStatus: http.StatusBadRequest},
		{name: "sentinel error", command: "missing", expectedStatus: http.StatusNotFound},
		{name: "unknown command", command: "nope", expectedStatus: http.StatusNotFound},
	}
	client := http.Client{Timeout: 2 * time.Second}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			response, err := client.Post(baseURL+"/commands/"+testCase.command, "application/json", bytes.NewBufferString(testCase.body))
			if err != nil {
				t.Fatalf("perform request: %v", err)
			}
			defer response.Body.Close()
			if response.StatusCode != testCase.expectedStatus {
				t.Fatalf("expected status %d, got %d", testCase.expectedStatus, response.StatusCode)
			}
			if testCase.command != "nope" && response.Header.Get("X-Request-ID") == "" {
				t.Fatalf("expected a generated request id")
			}
			if testCase.expectedStatus != http.StatusOK {
				return
			}
			var body struct {
				Result string `json:"result"`
			}
			if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Result != testCase.expectedResult {
				t.Fatalf("expected result %q, got %q", testCase.expectedResult, body.Result)
			}
		})
	}
}

func TestServerStreamsEvents(t *testing.T) {
	t.Parallel()

	hub := stream.NewHub()
	baseURL := startServer(t, api.Config{Events: hub})

	requestCtx, cancelRequest := context.WithCancel(context.Background())
	defer cancelRequest()
	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, baseURL+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("perform request: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", response.StatusCode)
	}

	hub.Emit(stream.AnalysisCompleted(7))

	reader := bufio.NewReader(response.Body)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var event stream.Event
	if err := json.Unmarshal(line, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Kind != stream.EventKindAnalysisCompleted || event.Epoch != 7 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestServerEventsUnavailableWithoutHub(t *testing.T) {
	t.Parallel()

	baseURL := startServer(t, api.Config{})
	response, err := http.Get(baseURL + "/events")
	if err != nil {
		t.Fatalf("perform request: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", response.StatusCode)
	}
}

func TestStatusCodeFromError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "explicit", err: api.NewCommandExecutionError(http.StatusTeapot, errors.New("tea")), expected: http.StatusTeapot},
		{name: "not found", err: fmt.Errorf("wrap: %w", types.ErrNotFound), expected: http.StatusNotFound},
		{name: "precondition", err: types.ErrPrecondition, expected: http.StatusConflict},
		{name: "no root", err: types.ErrNoRoot, expected: http.StatusConflict},
		{name: "empty cache", err: types.ErrEmptyCache, expected: http.StatusConflict},
		{name: "resource limit", err: types.ErrResourceLimit, expected: http.StatusRequestEntityTooLarge},
		{name: "format", err: types.ErrFormat, expected: http.StatusUnprocessableEntity},
		{name: "other", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if actual := api.StatusCodeFromError(testCase.err); actual != testCase.expected {
				t.Fatalf("expected %d, got %d", testCase.expected, actual)
			}
		})
	}
}

func TestServerEchoesClientRequestID(t *testing.T) {
	t.Parallel()

	executors := map[string]api.CommandExecutor{
		"noop": api.CommandExecutorFunc(func(context.Context, api.CommandRequest) (api.CommandResponse, error) {
			return api.CommandResponse{}, nil
		}),
	}
	baseURL := startServer(t, api.Config{Executors: executors})
	request, err := http.NewRequest(http.MethodPost, baseURL+"/commands/noop", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	request.Header.Set("X-Request-ID", "trace-42")
	client := http.Client{Timeout: 2 * time.Second}
	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("perform request: %v", err)
	}
	defer response.Body.Close()
	if identifier := response.Header.Get("X-Request-ID"); identifier != "trace-42" {
		t.Fatalf("expected echoed request id, got %q", identifier)
	}
}
