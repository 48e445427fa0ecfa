package bridge

import (
	"context"

	"github.com/user/nbbridge/internal/notebook"
	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/types"
)

// emitter observes one focused document and turns its signals into
// outbound messages. It lives exactly as long as its scope.
type emitter struct {
	b     *Bridge
	doc   *notebook.Notebook
	scope *scope
	fsm   *lifecycle
}

// attach subscribes to doc's signals under a fresh scope. Runs on the loop.
func (b *Bridge) attach(doc *notebook.Notebook) *emitter {
	e := &emitter{
		b:     b,
		doc:   doc,
		scope: newScope(b.loop.Context()),
		fsm:   newLifecycle(),
	}
	e.fsm.attach(doc.Ready(), doc.Dirty())
	e.scope.add(
		doc.StateChanged.Connect(e.onStateChanged),
		doc.SaveStateChanged.Connect(e.onSaveState),
		doc.KernelStatusChanged.Connect(e.onKernelStatus),
		doc.ConnectionStatusChanged.Connect(e.onConnectionStatus),
	)
	b.logger.Debug("emitter attached", "document_id", string(doc.ID()), "phase", string(e.fsm.Phase()))
	return e
}

func (e *emitter) detach() {
	e.scope.Close()
	e.fsm.detach()
	e.b.logger.Debug("emitter detached", "document_id", string(e.doc.ID()))
}

func (e *emitter) post(env protocol.Envelope) {
	e.b.post(e.scope.Context(), e.doc.ID(), env)
}

func (e *emitter) onStateChanged(notebook.StateChange) {
	e.apply(e.fsm.contentChanged(e.doc.Dirty(), e.b.loaded))
}

func (e *emitter) onSaveState(state types.SaveState) {
	e.apply(e.fsm.saveChanged(state))
}

func (e *emitter) apply(effects []Effect) {
	for _, eff := range effects {
		switch eff {
		case EffectAnnounceLoaded:
			if e.b.loaded {
				continue
			}
			e.b.loaded = true
			e.post(protocol.Loaded())
		case EffectReportDirty:
			e.post(protocol.DirtyStatus(true))
		case EffectReportSaved:
			e.post(protocol.Saved())
		case EffectReportSaveFailed:
			e.post(protocol.SaveFailed())
		case EffectFetchCheckpoints:
			e.fetchCheckpoints("checkpoints after save", func(cps []*types.Checkpoint) {
				e.post(protocol.CheckpointStatus(cps))
			})
		}
	}
}

// onKernelStatus is the only writer of the kernel registry.
func (e *emitter) onKernelStatus(status types.KernelStatus) {
	e.b.registry.Update(e.doc.Kernel(), status)
	e.post(protocol.KernelStatus(status))
}

func (e *emitter) onConnectionStatus(status types.ConnectionStatus) {
	if status != types.ConnectionConnected {
		return
	}
	e.fetchCheckpoints("initial status", func(cps []*types.Checkpoint) {
		e.post(protocol.InitialStatus(e.doc.Dirty(), cps))
	})
}

// fetchCheckpoints lists the document's checkpoints off the loop and hands
// them to report back on the loop, unless the scope closed in between.
// A failed listing sends nothing.
func (e *emitter) fetchCheckpoints(name string, report func([]*types.Checkpoint)) {
	doc := e.doc
	Await(e.b.loop, e.scope.Context(), name,
		func(ctx context.Context) ([]*types.Checkpoint, error) {
			return doc.ListCheckpoints(ctx)
		},
		func(ctx context.Context, cps []*types.Checkpoint, err error) {
			if err != nil {
				e.b.logger.Warn("list checkpoints failed", "document_id", string(doc.ID()), "error", err)
				return
			}
			report(cps)
		})
}
