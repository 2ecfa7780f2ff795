package clipboard_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/temirov/repo2txt/internal/services/clipboard"
	"github.com/temirov/repo2txt/internal/types"
)

func TestCheckSize(t *testing.T) {
	testCases := []struct {
		name          string
		length        int
		expectedError bool
	}{
		{name: "empty", length: 0},
		{name: "at limit", length: clipboard.MaxContentBytes},
		{name: "above limit", length: 12 * 1024 * 1024, expectedError: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := clipboard.CheckSize(strings.Repeat("a", testCase.length))
			if !testCase.expectedError {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, types.ErrResourceLimit) {
				t.Fatalf("expected resource limit error, got %v", err)
			}
			if !strings.Contains(err.Error(), "Content too large for clipboard (12 MB). Maximum size is 10 MB. Please save to file instead.") {
				t.Fatalf("unexpected message %q", err.Error())
			}
		})
	}
}
