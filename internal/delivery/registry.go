// Package delivery fans outbound envelopes out to the host-facing sinks.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/types"
)

// ErrNoSinks is returned by Post when nothing is registered.
var ErrNoSinks = errors.New("no delivery sinks registered")

// Handler delivers one envelope posted on behalf of doc. doc is empty for
// messages that concern no document.
type Handler func(ctx context.Context, doc types.DocumentID, env protocol.Envelope) error

type sink struct {
	name    string
	handler Handler
}

// Registry delivers every posted envelope to each registered sink, in
// registration order.
type Registry struct {
	mu    sync.RWMutex
	sinks []sink
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a sink, replacing any sink of the same name in place.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sinks {
		if r.sinks[i].name == name {
			r.sinks[i].handler = handler
			return
		}
	}
	r.sinks = append(r.sinks, sink{name: name, handler: handler})
}

// Names returns the registered sink names in delivery order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.sinks))
	for i, s := range r.sinks {
		names[i] = s.name
	}
	return names
}

// Post calls every sink. A failing sink does not stop the others; all
// failures are returned joined.
func (r *Registry) Post(ctx context.Context, doc types.DocumentID, env protocol.Envelope) error {
	r.mu.RLock()
	sinks := make([]sink, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.RUnlock()
	if len(sinks) == 0 {
		return ErrNoSinks
	}
	var errs []error
	for _, s := range sinks {
		if err := s.handler(ctx, doc, env); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
