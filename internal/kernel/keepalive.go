package kernel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultInterval is how often a busy kernel is probed.
	DefaultInterval = 9 * time.Minute
	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 30 * time.Second
)

// Poller probes the registry's kernel on a fixed interval while it is busy,
// so that the server does not cull it as idle during long executions.
// Probe failures are not retried.
type Poller struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	probes  sync.WaitGroup
	started bool
}

// NewPoller creates a Poller reading from registry. Non-positive durations
// fall back to the defaults.
func NewPoller(registry *Registry, interval, timeout time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		registry: registry,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start schedules the poll. Calling Start on a running Poller does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.cron = cron.New()
	p.cron.Schedule(cron.Every(p.interval), cron.FuncJob(p.tick))
	p.cron.Start()
	p.started = true
	p.logger.Info("keep-alive poller started", "interval", p.interval)
}

// Stop unschedules the poll and cancels probes in flight. A stopped Poller
// can be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	c := p.cron
	cancel := p.cancel
	p.mu.Unlock()

	<-c.Stop().Done()
	cancel()
	p.probes.Wait()
	p.logger.Info("keep-alive poller stopped")
}

// Running reports whether the poll is scheduled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *Poller) tick() { p.poll() }

// poll issues one probe when the registry reports a busy kernel. It
// reports whether a probe was issued.
func (p *Poller) poll() bool {
	ref, ok := p.registry.Busy()
	if !ok {
		return false
	}

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return false
	}
	ctx := p.ctx
	p.probes.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.probes.Done()
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := ref.RequestStatus(ctx); err != nil {
			p.logger.Debug("keep-alive probe failed", "kernel_id", string(ref.ID()), "error", err)
			return
		}
		p.logger.Debug("keep-alive probe sent", "kernel_id", string(ref.ID()))
	}()
	return true
}
