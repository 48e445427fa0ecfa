// Package bridge relays messages between a host and the focused notebook
// document. Host commands become document mutations; document signals
// become outbound notifications. All bridge state is confined to one
// cooperative loop per Bridge.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/nbbridge/internal/kernel"
	"github.com/user/nbbridge/internal/notebook"
	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/types"
)

// ErrUntrustedOrigin is returned for host messages from an origin outside
// the allow-list.
var ErrUntrustedOrigin = errors.New("untrusted origin")

// Outbox delivers outbound envelopes to the host.
type Outbox interface {
	Post(ctx context.Context, doc types.DocumentID, env protocol.Envelope) error
}

// ServerInfoHandler receives the host's server details. It runs off the loop.
type ServerInfoHandler func(ctx context.Context, info protocol.ServerOSInfo) error

type Options struct {
	Tracker  *notebook.Tracker
	Outbox   Outbox
	Registry *kernel.Registry
	// Poller is optional; without it no keep-alive probes are sent.
	Poller     *kernel.Poller
	Policy     *protocol.OriginPolicy
	Decoder    *protocol.Decoder
	ServerInfo ServerInfoHandler
	Logger     *slog.Logger
	// MaxConcurrent bounds async lookups in flight. Defaults to 4.
	MaxConcurrent int64
}

// Bridge owns the host-message listener, the emitter of the focused
// document and the kernel registry updates.
type Bridge struct {
	tracker    *notebook.Tracker
	outbox     Outbox
	registry   *kernel.Registry
	poller     *kernel.Poller
	policy     *protocol.OriginPolicy
	decoder    *protocol.Decoder
	serverInfo ServerInfoHandler
	logger     *slog.Logger
	loop       *Loop
	actions    *Actions

	mu      sync.Mutex
	started bool

	// Loop-confined.
	loaded  bool
	current *emitter
	focus   *notebook.Connection
}

func New(opts Options) (*Bridge, error) {
	if opts.Tracker == nil {
		return nil, errors.New("bridge: tracker is required")
	}
	if opts.Outbox == nil {
		return nil, errors.New("bridge: outbox is required")
	}
	if opts.Decoder == nil {
		d, err := protocol.NewDecoder()
		if err != nil {
			return nil, err
		}
		opts.Decoder = d
	}
	if opts.Registry == nil {
		opts.Registry = kernel.NewRegistry()
	}
	if opts.Policy == nil {
		opts.Policy = protocol.NewOriginPolicy(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	b := &Bridge{
		tracker:    opts.Tracker,
		outbox:     opts.Outbox,
		registry:   opts.Registry,
		poller:     opts.Poller,
		policy:     opts.Policy,
		decoder:    opts.Decoder,
		serverInfo: opts.ServerInfo,
		logger:     opts.Logger,
		loop:       NewLoop(opts.MaxConcurrent, opts.Logger),
	}
	b.actions = &Actions{tracker: b.tracker, post: b.post, logger: b.logger}
	return b, nil
}

// Start runs the loop, follows focus changes, asks the host for its server
// details and starts the keep-alive poller. Calling Start again is a no-op.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	b.loop.Start(ctx)
	err := b.loop.Do(ctx, "start", func(ctx context.Context) error {
		b.focus = b.tracker.CurrentChanged.Connect(b.onCurrentChanged)
		if doc := b.tracker.Current(); doc != nil {
			b.current = b.attach(doc)
		}
		b.post(ctx, "", protocol.ServerOSRequest())
		return nil
	})
	if err != nil {
		b.loop.Stop()
		return fmt.Errorf("start bridge: %w", err)
	}
	if b.poller != nil {
		b.poller.Start()
	}
	b.started = true
	b.logger.Info("bridge started", "allowed_origins", b.policy.Origins())
	return nil
}

// Stop detaches from the focused document, stops the poller and the loop.
// If the context given to Start is already cancelled, the loop has exited
// and the detach happens after it is stopped.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	detached := false
	if b.loop.Context().Err() == nil {
		err := b.loop.Do(context.Background(), "stop", func(context.Context) error {
			b.detachAll()
			return nil
		})
		switch {
		case err == nil:
			detached = true
		case !errors.Is(err, ErrLoopStopped):
			b.logger.Warn("bridge detach failed", "error", err)
		}
	}
	if b.poller != nil {
		b.poller.Stop()
	}
	b.loop.Stop()
	if !detached {
		b.detachAll()
	}
	b.started = false
	b.logger.Info("bridge stopped")
}

// detachAll drops the focus subscription and the current emitter. It runs
// on the loop, or after the loop goroutine has exited.
func (b *Bridge) detachAll() {
	if b.focus != nil {
		b.focus.Disconnect()
		b.focus = nil
	}
	if b.current != nil {
		b.current.detach()
		b.current = nil
	}
}

// HandleHostMessage accepts one raw inbound envelope. Messages that are
// not envelopes or carry an unknown type are ignored and return nil.
func (b *Bridge) HandleHostMessage(ctx context.Context, origin string, data []byte) error {
	if !b.policy.Allowed(origin) {
		return fmt.Errorf("%w: %q", ErrUntrustedOrigin, origin)
	}
	env, err := b.decoder.Decode(data)
	if err != nil {
		b.logger.Debug("host message ignored", "origin", origin, "reason", err)
		return nil
	}
	return b.loop.Submit(env.MessageType, func(ctx context.Context) {
		if err := b.route(ctx, env); err != nil {
			b.logger.Warn("host message failed", "message_type", env.MessageType, "error", err)
		}
	})
}

// Do runs fn on the bridge loop with exclusive access to the tracker and
// its documents, and waits for it. Document mutations made by fn are
// observed like any other.
func (b *Bridge) Do(ctx context.Context, fn func(ctx context.Context, tracker *notebook.Tracker) error) error {
	return b.loop.Do(ctx, "do", func(ctx context.Context) error {
		return fn(ctx, b.tracker)
	})
}

// Phase returns the lifecycle phase of the focused document.
func (b *Bridge) Phase(ctx context.Context) (Phase, error) {
	phase := PhaseUnattached
	err := b.loop.Do(ctx, "phase", func(context.Context) error {
		if b.current != nil {
			phase = b.current.fsm.Phase()
		}
		return nil
	})
	return phase, err
}

// Registry returns the kernel registry this bridge writes.
func (b *Bridge) Registry() *kernel.Registry { return b.registry }

// WaitIdle waits until no bridge work is queued or in flight.
func (b *Bridge) WaitIdle(timeout time.Duration) bool { return b.loop.WaitIdle(timeout) }

func (b *Bridge) onCurrentChanged(doc *notebook.Notebook) {
	prev := b.current
	if prev != nil {
		prev.detach()
		b.current = nil
	}
	if doc != nil {
		b.current = b.attach(doc)
		return
	}
	// A document whose load failed was never announced to the host.
	if prev != nil && prev.doc.Ready() {
		b.post(b.loop.Context(), prev.doc.ID(), protocol.Removed())
	}
}

func (b *Bridge) post(ctx context.Context, doc types.DocumentID, env protocol.Envelope) {
	if err := b.outbox.Post(ctx, doc, env); err != nil {
		b.logger.Warn("outbound delivery failed", "document_id", string(doc), "message_type", env.MessageType, "error", err)
	}
}
