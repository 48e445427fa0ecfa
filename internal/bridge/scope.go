package bridge

import (
	"context"
	"sync"

	"github.com/user/nbbridge/internal/notebook"
)

// scope groups the signal connections made for one focused document.
// Closing it disconnects them all and cancels its context, so async work
// started under the scope never reports back.
type scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns []*notebook.Connection
}

func newScope(parent context.Context) *scope {
	ctx, cancel := context.WithCancel(parent)
	return &scope{ctx: ctx, cancel: cancel}
}

func (s *scope) add(conns ...*notebook.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = append(s.conns, conns...)
}

func (s *scope) Context() context.Context { return s.ctx }

// Close is idempotent.
func (s *scope) Close() {
	s.cancel()
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.Disconnect()
	}
}
