package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/nbbridge/internal/protocol"
)

// route dispatches one decoded inbound envelope. Runs on the loop.
func (b *Bridge) route(ctx context.Context, env protocol.Envelope) error {
	var err error
	switch env.MessageType {
	case protocol.TypeServerOSResponse:
		err = b.serverOSResponse(env)
	case protocol.TypeGetCellText:
		err = b.actions.GetActiveCellText(ctx)
	case protocol.TypeInsertBelow, protocol.TypeAddParameters:
		var source string
		if source, err = env.SourceText(); err == nil {
			err = b.actions.InsertBelow(ctx, source, env.MessageType == protocol.TypeAddParameters)
		}
	case protocol.TypeInsertAbove:
		var source string
		if source, err = env.SourceText(); err == nil {
			err = b.actions.InsertAbove(ctx, source)
		}
	case protocol.TypeSave:
		err = b.actions.Save(ctx)
	case protocol.TypeSaveAs:
		err = b.actions.SaveAs(ctx)
	default:
		return nil
	}
	if errors.Is(err, ErrNoDocument) {
		b.logger.Debug("message ignored", "message_type", env.MessageType, "reason", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", env.MessageType, err)
	}
	return nil
}

// serverOSResponse hands the host's server details to the configured
// handler off the loop. Failures never reach the host.
func (b *Bridge) serverOSResponse(env protocol.Envelope) error {
	info, err := env.ServerOS()
	if err != nil {
		return err
	}
	if b.serverInfo == nil {
		return nil
	}
	handler := b.serverInfo
	Await(b.loop, b.loop.Context(), "server info",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, handler(ctx, info)
		},
		func(ctx context.Context, _ struct{}, err error) {
			if err != nil {
				b.logger.Debug("server info handler failed", "error", err)
			}
		})
	return nil
}
