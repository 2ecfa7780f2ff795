package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testCounter struct{}

func (testCounter) Name() string { return "stub" }

func (testCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

type failingCounter struct{}

func (failingCounter) Name() string { return "failing" }

func (failingCounter) CountString(string) (int, error) { return 0, errors.New("boom") }

func TestCountBytes(t *testing.T) {
	testCases := []struct {
		name               string
		counter            Counter
		data               []byte
		expectedTokens     int
		expectBinary       bool
		expectApproximated bool
	}{
		{name: "text", counter: testCounter{}, data: []byte("hello"), expectedTokens: 5},
		{name: "empty", counter: testCounter{}, data: nil, expectedTokens: 0},
		{name: "binary", counter: testCounter{}, data: []byte{'a', 0x00, 'b'}, expectBinary: true},
		{name: "invalid utf8 replaced", counter: testCounter{}, data: []byte{'h', 0xff, 'i'}, expectedTokens: 3},
		{name: "counter failure falls back", counter: failingCounter{}, data: []byte("abcdefgh"), expectedTokens: 2, expectApproximated: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := CountBytes(testCase.counter, testCase.data)
			if err != nil {
				t.Fatalf("CountBytes error: %v", err)
			}
			if result.Tokens != testCase.expectedTokens {
				t.Fatalf("expected %d tokens, got %d", testCase.expectedTokens, result.Tokens)
			}
			if result.Binary != testCase.expectBinary {
				t.Fatalf("expected binary=%v, got %v", testCase.expectBinary, result.Binary)
			}
			if result.Approximated != testCase.expectApproximated {
				t.Fatalf("expected approximated=%v, got %v", testCase.expectApproximated, result.Approximated)
			}
		})
	}
}

func TestCountBytesNilCounter(t *testing.T) {
	if _, err := CountBytes(nil, []byte("x")); err == nil {
		t.Fatalf("expected error for nil counter")
	}
}

func TestCountFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txt")
	if err := os.WriteFile(path, []byte("four"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	result, err := CountFile(testCounter{}, path)
	if err != nil {
		t.Fatalf("CountFile error: %v", err)
	}
	if result.Tokens != 4 {
		t.Fatalf("expected 4 tokens, got %d", result.Tokens)
	}
	if _, err := CountFile(testCounter{}, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApproximateCounter(t *testing.T) {
	tokens, err := ApproximateCounter{}.CountString("0123456789")
	if err != nil {
		t.Fatalf("CountString error: %v", err)
	}
	if tokens != 2 {
		t.Fatalf("expected 2 tokens, got %d", tokens)
	}
}

func TestNewCounterDefault(t *testing.T) {
	counter, name, err := NewCounter(Config{})
	if counter == nil {
		t.Fatalf("expected non-nil counter")
	}
	if err != nil {
		if name != approximateCounterName {
			t.Fatalf("expected approximate fallback on error, got %q", name)
		}
		return
	}
	if name != DefaultEncodingName {
		t.Fatalf("expected %s, got %q", DefaultEncodingName, name)
	}
	tokens, countErr := counter.CountString("hello world")
	if countErr != nil {
		t.Fatalf("CountString error: %v", countErr)
	}
	if tokens <= 0 {
		t.Fatalf("expected positive token count, got %d", tokens)
	}
}
