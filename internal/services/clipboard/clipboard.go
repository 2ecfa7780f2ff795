// Package clipboard copies exported documents to the system clipboard.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/temirov/repo2txt/internal/types"
)

// MaxContentBytes is the largest document handed to the clipboard.
const MaxContentBytes = 10 * 1024 * 1024

const contentTooLargeMessageFormat = "Content too large for clipboard (%d MB). Maximum size is %d MB. Please save to file instead."

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct{}

// NewService constructs a clipboard service.
func NewService() *Service {
	return &Service{}
}

// Copy writes text to the system clipboard after checking its size.
func (service *Service) Copy(text string) error {
	if err := CheckSize(text); err != nil {
		return err
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// CheckSize rejects content above MaxContentBytes with types.ErrResourceLimit.
func CheckSize(text string) error {
	if len(text) <= MaxContentBytes {
		return nil
	}
	const megabyte = 1024 * 1024
	return fmt.Errorf("%w: "+contentTooLargeMessageFormat, types.ErrResourceLimit, len(text)/megabyte, MaxContentBytes/megabyte)
}

// CopierFunc adapts a function to Copier.
type CopierFunc func(text string) error

// Copy calls the function.
func (function CopierFunc) Copy(text string) error {
	return function(text)
}

var (
	_ Copier = (*Service)(nil)
	_ Copier = CopierFunc(nil)
)
