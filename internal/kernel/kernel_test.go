package kernel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/nbbridge/internal/types"
)

type fakeKernel struct {
	id     types.KernelID
	probes chan struct{}
	calls  atomic.Int32
	err    error
}

func newFakeKernel(id types.KernelID) *fakeKernel {
	return &fakeKernel{id: id, probes: make(chan struct{}, 10)}
}

func (k *fakeKernel) ID() types.KernelID { return k.id }

func (k *fakeKernel) RequestStatus(ctx context.Context) error {
	k.calls.Add(1)
	k.probes <- struct{}{}
	return k.err
}

func waitProbe(t *testing.T, k *fakeKernel) {
	t.Helper()
	select {
	case <-k.probes:
	case <-time.After(2 * time.Second):
		t.Fatal("probe was not issued")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Busy(); ok {
		t.Fatal("expected empty registry not to be busy")
	}

	k := newFakeKernel("k1")
	reg.Update(k, types.KernelBusy)
	ref, ok := reg.Busy()
	if !ok || ref != k {
		t.Fatal("expected busy kernel")
	}

	reg.Update(k, types.KernelIdle)
	if _, ok := reg.Busy(); ok {
		t.Error("expected idle kernel not to be busy")
	}
	ref2, status := reg.Snapshot()
	if ref2 != k || status != types.KernelIdle {
		t.Errorf("unexpected snapshot %v %s", ref2, status)
	}

	reg.Update(nil, types.KernelBusy)
	if _, ok := reg.Busy(); ok {
		t.Error("expected busy status without kernel not to probe")
	}
}

func TestPollerProbesOnlyBusyKernel(t *testing.T) {
	reg := NewRegistry()
	p := NewPoller(reg, time.Hour, time.Second, nil)
	p.Start()
	defer p.Stop()

	if p.poll() {
		t.Fatal("expected no probe without a kernel")
	}

	k := newFakeKernel("k1")
	reg.Update(k, types.KernelBusy)
	if !p.poll() {
		t.Fatal("expected a probe for a busy kernel")
	}
	waitProbe(t, k)

	reg.Update(k, types.KernelIdle)
	if p.poll() {
		t.Error("expected idle status before the tick to suppress the probe")
	}
	if k.calls.Load() != 1 {
		t.Errorf("expected 1 probe, got %d", k.calls.Load())
	}
}

func TestPollerIgnoresProbeFailure(t *testing.T) {
	reg := NewRegistry()
	p := NewPoller(reg, time.Hour, time.Second, nil)
	p.Start()
	defer p.Stop()

	k := newFakeKernel("k1")
	k.err = errors.New("connection refused")
	reg.Update(k, types.KernelBusy)

	p.poll()
	waitProbe(t, k)
	p.poll()
	waitProbe(t, k)
	if k.calls.Load() != 2 {
		t.Errorf("expected a probe per tick, got %d", k.calls.Load())
	}
}

func TestPollerStartIsIdempotent(t *testing.T) {
	p := NewPoller(NewRegistry(), time.Hour, 0, nil)
	p.Start()
	first := p.cron
	p.Start()
	if p.cron != first {
		t.Error("expected second Start to keep the existing schedule")
	}
	if n := len(p.cron.Entries()); n != 1 {
		t.Errorf("expected 1 scheduled entry, got %d", n)
	}
	p.Stop()
	if p.Running() {
		t.Error("expected poller to be stopped")
	}
	p.Stop()
}

func TestPollerStoppedDoesNotProbe(t *testing.T) {
	reg := NewRegistry()
	k := newFakeKernel("k1")
	reg.Update(k, types.KernelBusy)
	p := NewPoller(reg, time.Hour, 0, nil)
	if p.poll() {
		t.Error("expected no probe before Start")
	}
}

func TestPollerTicks(t *testing.T) {
	reg := NewRegistry()
	k := newFakeKernel("k1")
	reg.Update(k, types.KernelBusy)

	p := NewPoller(reg, time.Second, time.Second, nil)
	p.Start()
	defer p.Stop()

	select {
	case <-k.probes:
	case <-time.After(3 * time.Second):
		t.Fatal("expected the schedule to probe within 3s")
	}
}

func TestPollerScheduledJobProbesBusyKernel(t *testing.T) {
	reg := NewRegistry()
	k := newFakeKernel("k1")
	reg.Update(k, types.KernelBusy)

	p := NewPoller(reg, time.Hour, time.Second, nil)
	p.Start()
	defer p.Stop()

	entries := p.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one scheduled job, got %d", len(entries))
	}
	entries[0].Job.Run()
	waitProbe(t, k)
}
