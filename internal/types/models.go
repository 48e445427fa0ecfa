// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// KernelStatus is the execution status reported by a document's kernel.
type KernelStatus string

const (
	KernelUnknown        KernelStatus = "unknown"
	KernelStarting       KernelStatus = "starting"
	KernelIdle           KernelStatus = "idle"
	KernelBusy           KernelStatus = "busy"
	KernelRestarting     KernelStatus = "restarting"
	KernelAutorestarting KernelStatus = "autorestarting"
	KernelDead           KernelStatus = "dead"
)

// Valid reports whether s is one of the known kernel statuses.
func (s KernelStatus) Valid() bool {
	switch s {
	case KernelUnknown, KernelStarting, KernelIdle, KernelBusy,
		KernelRestarting, KernelAutorestarting, KernelDead:
		return true
	}
	return false
}

// ConnectionStatus is the state of a document's connection to its kernel.
type ConnectionStatus string

const (
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionConnecting, ConnectionConnected, ConnectionDisconnected:
		return true
	}
	return false
}

// SaveState is reported by a document while it persists itself.
type SaveState string

const (
	SaveStarted   SaveState = "started"
	SaveCompleted SaveState = "completed"
	SaveFailed    SaveState = "failed"
)

type Checkpoint struct {
	ID           CheckpointID `json:"id"`
	LastModified time.Time    `json:"last_modified"`
	Digest       string       `json:"digest,omitempty"`
}

// Event is one journaled outbound message.
type Event struct {
	ID         EventID         `json:"id"`
	DocumentID DocumentID      `json:"document_id,omitempty"`
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type NotebookInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
