package delivery

import (
	"context"
	"time"

	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/types"
)

// Journal returns a sink that appends every envelope to store.
func Journal(store types.EventStore) Handler {
	return func(ctx context.Context, doc types.DocumentID, env protocol.Envelope) error {
		return store.Append(ctx, &types.Event{
			ID:         types.NewEventID(),
			DocumentID: doc,
			Type:       env.MessageType,
			At:         time.Now().UTC(),
			Payload:    env.Message,
		})
	}
}
