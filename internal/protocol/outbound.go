package protocol

import (
	"encoding/json"

	"github.com/user/nbbridge/internal/types"
)

// newEnvelope marshals payload into an envelope. Payloads are plain structs
// and strings, so marshalling cannot fail.
func newEnvelope(messageType string, payload any) Envelope {
	env := Envelope{MessageType: messageType}
	if payload == nil {
		return env
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic("protocol: marshal " + messageType + ": " + err.Error())
	}
	env.Message = data
	return env
}

func ServerOSRequest() Envelope {
	return newEnvelope(TypeServerOSRequest, nil)
}

func ActiveCellText(text string) Envelope {
	return newEnvelope(TypeActiveCellText, text)
}

func Loaded() Envelope {
	return newEnvelope(TypeLifecycle, LifecyclePayload{EventType: EventLoaded})
}

func Removed() Envelope {
	return newEnvelope(TypeLifecycle, LifecyclePayload{EventType: EventRemoved})
}

func DirtyStatus(dirty bool) Envelope {
	return newEnvelope(TypeDirtyStatus, DirtyPayload{Dirty: dirty})
}

func Saved() Envelope {
	return newEnvelope(TypeSaved, SaveOutcomePayload{Succeeded: true})
}

func SaveFailed() Envelope {
	return newEnvelope(TypeSaveFailed, SaveOutcomePayload{Succeeded: false})
}

func CheckpointStatus(checkpoints []*types.Checkpoint) Envelope {
	return newEnvelope(TypeCheckpointStatus, CheckpointPayload{Checkpoints: nonNil(checkpoints)})
}

func InitialStatus(dirty bool, checkpoints []*types.Checkpoint) Envelope {
	return newEnvelope(TypeInitialStatus, InitialStatusPayload{Dirty: dirty, Checkpoints: nonNil(checkpoints)})
}

func KernelStatus(status types.KernelStatus) Envelope {
	return newEnvelope(TypeKernelStatus, KernelStatusPayload{Status: status, Busy: status == types.KernelBusy})
}

// NotebookJSON wraps an already encoded nbformat document.
func NotebookJSON(document json.RawMessage) Envelope {
	return Envelope{MessageType: TypeNotebookJSON, Message: document}
}

func nonNil(checkpoints []*types.Checkpoint) []*types.Checkpoint {
	if checkpoints == nil {
		return []*types.Checkpoint{}
	}
	return checkpoints
}
