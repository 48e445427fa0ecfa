// internal/types/interfaces.go
package types

import (
	"context"
)

// Kernel is a handle to the computational backend of a document.
type Kernel interface {
	ID() KernelID
	// RequestStatus issues a lightweight status request against the kernel.
	RequestStatus(ctx context.Context) error
}

type NotebookStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	List(ctx context.Context) ([]*NotebookInfo, error)
}

type CheckpointStore interface {
	Create(ctx context.Context, path string, data []byte) (*Checkpoint, error)
	List(ctx context.Context, path string) ([]*Checkpoint, error)
	Get(ctx context.Context, path string, id CheckpointID) ([]byte, error)
}

type EventStore interface {
	Append(ctx context.Context, event *Event) error
	Tail(ctx context.Context, documentID DocumentID, limit int) ([]*Event, error)
	Count(ctx context.Context, documentID DocumentID) (int64, error)
}
