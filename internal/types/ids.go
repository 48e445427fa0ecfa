// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type DocumentID string
type KernelID string
type CheckpointID string
type EventID string

func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

func NewCheckpointID() CheckpointID {
	return CheckpointID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

// NewCellID returns an nbformat 4.5 cell id. Cell ids are limited to 64
// characters, so the hyphens of the uuid are dropped.
func NewCellID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
