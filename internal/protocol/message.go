// Package protocol defines the envelopes exchanged between the host and the
// bridge. Every message, in either direction, is a JSON object of the form
// {"messageType": "...", "message": ...}.
package protocol

import (
	"encoding/json"

	"github.com/user/nbbridge/internal/types"
)

// Inbound message types (host to bridge).
const (
	TypeServerOSResponse = "NotebookServerOSResponseMessage"
	TypeGetCellText      = "NotebookGetCellText"
	TypeInsertBelow      = "NotebookMessage"
	TypeInsertAbove      = "NotebookInsertAboveMessage"
	TypeSave             = "NotebookSaveMessage"
	TypeSaveAs           = "NotebookSaveAsMessage"
	TypeAddParameters    = "NotebookAddParameters"
)

// Outbound message types (bridge to host).
const (
	TypeServerOSRequest  = "NotebookServerOSRequestMessage"
	TypeActiveCellText   = "ActiveCellText"
	TypeLifecycle        = "NoteBookMessage"
	TypeDirtyStatus      = "DirtyStatusMessage"
	TypeSaved            = "SavedStatusMessage"
	TypeSaveFailed       = "SaveFailedMessage"
	TypeCheckpointStatus = "CheckpointStatusMessage"
	TypeInitialStatus    = "InitialNotebookStatus"
	TypeKernelStatus     = "KernelStatusMessage"
	TypeNotebookJSON     = "NotebookJsonMessage"
)

// Lifecycle event names carried by TypeLifecycle.
const (
	EventLoaded  = "notebook_loaded"
	EventRemoved = "notebook_removed"
)

var inbound = map[string]bool{
	TypeServerOSResponse: true,
	TypeGetCellText:      true,
	TypeInsertBelow:      true,
	TypeInsertAbove:      true,
	TypeSave:             true,
	TypeSaveAs:           true,
	TypeAddParameters:    true,
}

// IsInbound reports whether t names a message the bridge acts on.
func IsInbound(t string) bool {
	return inbound[t]
}

// Envelope is the tagged union shared by both directions.
type Envelope struct {
	MessageType string          `json:"messageType"`
	Message     json.RawMessage `json:"message,omitempty"`
}

// ServerOSInfo is the payload of TypeServerOSResponse. Fields the bridge does
// not interpret are preserved in Extra.
type ServerOSInfo struct {
	ServerOS string                     `json:"serverOS"`
	IsPortal bool                       `json:"isPortal"`
	Extra    map[string]json.RawMessage `json:"-"`
}

type LifecyclePayload struct {
	EventType string `json:"eventType"`
}

type DirtyPayload struct {
	Dirty bool `json:"dirty"`
}

type SaveOutcomePayload struct {
	Succeeded bool `json:"succeeded"`
}

type CheckpointPayload struct {
	Checkpoints []*types.Checkpoint `json:"checkpoints"`
}

type InitialStatusPayload struct {
	Dirty       bool                `json:"dirty"`
	Checkpoints []*types.Checkpoint `json:"checkpoints"`
}

type KernelStatusPayload struct {
	Status types.KernelStatus `json:"status"`
	Busy   bool               `json:"busy"`
}
