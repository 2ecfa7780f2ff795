package types

import "errors"

var (
	// ErrNotFound marks an unknown node id or a missing root directory.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition marks an operation applied to the wrong kind of node.
	ErrPrecondition = errors.New("precondition failed")
	// ErrFormat marks an unreadable persisted selection record.
	ErrFormat = errors.New("invalid format")
	// ErrResourceLimit marks content too large for a bounded sink.
	ErrResourceLimit = errors.New("resource limit exceeded")
	// ErrNoRoot marks an operation that needs an opened directory.
	ErrNoRoot = errors.New("no root path set")
	// ErrEmptyCache marks a copy request issued before any export.
	ErrEmptyCache = errors.New("no content generated yet")
)
