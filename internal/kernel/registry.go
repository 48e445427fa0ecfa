// Package kernel tracks the kernel of the focused document and keeps it
// alive while it is busy.
package kernel

import (
	"sync"

	"github.com/user/nbbridge/internal/types"
)

// Registry holds the last kernel reported by the focused document and its
// status. It is not cleared when focus moves to a document without a kernel.
type Registry struct {
	mu     sync.RWMutex
	ref    types.Kernel
	status types.KernelStatus
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Update records ref and status in one step.
func (r *Registry) Update(ref types.Kernel, status types.KernelStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ref = ref
	r.status = status
}

// Snapshot returns the recorded kernel and status.
func (r *Registry) Snapshot() (types.Kernel, types.KernelStatus) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ref, r.status
}

// Busy returns the recorded kernel when one is recorded and its status is busy.
func (r *Registry) Busy() (types.Kernel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.ref == nil || r.status != types.KernelBusy {
		return nil, false
	}
	return r.ref, true
}
