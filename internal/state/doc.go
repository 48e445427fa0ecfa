// Package state provides filesystem-backed storage implementations.
package state

import (
	"errors"

	"github.com/user/nbbridge/internal/types"
)

// ErrNotFound is returned when a notebook or checkpoint does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidPath is returned for notebook paths outside the store.
var ErrInvalidPath = errors.New("invalid notebook path")

// Compile-time interface compliance checks.
var _ types.NotebookStore = (*NotebookStore)(nil)
var _ types.CheckpointStore = (*CheckpointStore)(nil)
var _ types.EventStore = (*EventStore)(nil)
