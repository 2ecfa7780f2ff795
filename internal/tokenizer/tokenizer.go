// Package tokenizer counts tokens in file content.
package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters.
type Config struct {
	// Model is an OpenAI model name or a tiktoken encoding name. Empty selects cl100k_base.
	Model string
}

// DefaultEncodingName is the encoding used when no model is configured.
const DefaultEncodingName = "cl100k_base"

var openAIModelPrefixes = []string{
	"gpt-",
	"o1",
	"o3",
	"text-embedding",
	"davinci",
	"curie",
	"babbage",
	"ada",
	"code-",
}

// NewCounter returns a Counter for the requested model along with the name it resolved to.
// When no tiktoken encoding can be initialized the approximate counter is returned
// together with the initialization error so callers can log the degradation.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.ToLower(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = DefaultEncodingName
	}

	if isOpenAIModel(model) {
		encoding, err := tiktoken.EncodingForModel(model)
		if err == nil && encoding != nil {
			return openAICounter{encoding: encoding, name: model}, model, nil
		}
	} else if encoding, err := tiktoken.GetEncoding(model); err == nil && encoding != nil {
		return openAICounter{encoding: encoding, name: model}, model, nil
	}

	encoding, err := tiktoken.GetEncoding(DefaultEncodingName)
	if err != nil {
		return ApproximateCounter{}, approximateCounterName, err
	}
	return openAICounter{encoding: encoding, name: DefaultEncodingName}, DefaultEncodingName, nil
}

func isOpenAIModel(model string) bool {
	for _, prefix := range openAIModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
