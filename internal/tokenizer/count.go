package tokenizer

import (
	"errors"
	"os"

	"github.com/temirov/repo2txt/internal/utils"
)

// CountResult captures the outcome of counting a file or byte slice.
type CountResult struct {
	Tokens int
	Binary bool
	// Approximated is set when the counter failed and the byte-length estimate was used.
	Approximated bool
}

// CountBytes estimates tokens for the provided data using counter.
// Binary data always counts zero tokens. Invalid UTF-8 is replaced before counting.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if utils.IsBinary(data) {
		return CountResult{Binary: true}, nil
	}
	text := utils.DecodeText(data)
	tokens, err := counter.CountString(text)
	if err != nil {
		return CountResult{Tokens: Approximate(len(text)), Approximated: true}, nil
	}
	return CountResult{Tokens: tokens}, nil
}

// CountFile reads the file at path and estimates its token count.
func CountFile(counter Counter, path string) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return CountResult{}, readErr
	}
	return CountBytes(counter, data)
}
