package notebook

import (
	"sync"
	"sync/atomic"
)

type slot[T any] struct {
	fn           func(T)
	disconnected atomic.Bool
}

// Signal is a synchronous notification point. Slots run in connection order
// on the goroutine that calls Emit.
type Signal[T any] struct {
	mu    sync.Mutex
	slots []*slot[T]
}

// Connect registers fn and returns the connection that removes it.
func (s *Signal[T]) Connect(fn func(T)) *Connection {
	sl := &slot[T]{fn: fn}
	s.mu.Lock()
	s.slots = append(s.slots, sl)
	s.mu.Unlock()
	return &Connection{disconnect: func() { s.remove(sl) }}
}

func (s *Signal[T]) remove(sl *slot[T]) {
	sl.disconnected.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.slots {
		if existing == sl {
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			return
		}
	}
}

// Emit calls every connected slot with v. A slot disconnected by an earlier
// slot during the same emission is skipped.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	slots := make([]*slot[T], len(s.slots))
	copy(slots, s.slots)
	s.mu.Unlock()
	for _, sl := range slots {
		if sl.disconnected.Load() {
			continue
		}
		sl.fn(v)
	}
}

// Len returns the number of connected slots.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Connection ties a slot to a signal. Disconnect is idempotent and safe on nil.
type Connection struct {
	once       sync.Once
	disconnect func()
}

func (c *Connection) Disconnect() {
	if c == nil {
		return
	}
	c.once.Do(c.disconnect)
}
