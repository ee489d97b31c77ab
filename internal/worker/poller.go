package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driving"
)

// NotifyFunc is called for every document that newly appeared for a
// subscribed holder and has not been claimed yet.
type NotifyFunc func(holder string, doc *domain.Document)

// Poller periodically re-runs discovery for subscribed holders and
// reports newly appeared, unclaimed documents.
//
// Each cycle is guarded by a distributed lock so that only one instance
// polls a given holder at a time.
type Poller struct {
	discovery driving.DiscoveryService
	lock      driven.DistributedLock
	logger    *slog.Logger
	notify    NotifyFunc

	interval time.Duration

	// Internal state
	mu      sync.RWMutex
	holders map[string]struct{}
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// PollerConfig holds configuration for the poller.
type PollerConfig struct {
	Discovery driving.DiscoveryService
	Lock      driven.DistributedLock
	Logger    *slog.Logger
	Notify    NotifyFunc
	Interval  time.Duration // Time between poll cycles
}

// NewPoller creates a new discovery poller.
func NewPoller(cfg PollerConfig) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &Poller{
		discovery: cfg.Discovery,
		lock:      cfg.Lock,
		logger:    logger,
		notify:    cfg.Notify,
		interval:  interval,
		holders:   make(map[string]struct{}),
	}
}

// Subscribe adds a holder address to the poll set.
func (p *Poller) Subscribe(holder string) {
	if holder == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holders[holder] = struct{}{}
}

// Unsubscribe removes a holder address from the poll set.
func (p *Poller) Unsubscribe(holder string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.holders, holder)
}

// Subscriptions returns the currently subscribed holder addresses.
func (p *Poller) Subscriptions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	holders := make([]string, 0, len(p.holders))
	for h := range p.holders {
		holders = append(holders, h)
	}
	sort.Strings(holders)
	return holders
}

// Start begins the poll loop.
// It runs until Stop is called or context is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	p.logger.Info("poller starting", "interval", p.interval)

	go p.loop(ctx)
	return nil
}

// Stop gracefully stops the poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.mu.Unlock()

	<-p.doneCh

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.logger.Info("poller stopped")
}

// Wait blocks until the poller stops.
func (p *Poller) Wait() {
	<-p.doneCh
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller context cancelled")
			return
		case <-p.stopCh:
			p.logger.Info("poller stop signal received")
			return
		case <-ticker.C:
			p.pollCycle(ctx)
		}
	}
}

// pollCycle runs one poll pass over all subscribed holders.
func (p *Poller) pollCycle(ctx context.Context) {
	for _, holder := range p.Subscriptions() {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		p.pollHolder(ctx, holder)
	}
}

// pollHolder polls a single holder under a distributed lock. A lock held
// by another instance means that instance is already polling the holder,
// so this one skips the cycle.
func (p *Poller) pollHolder(ctx context.Context, holder string) {
	logger := p.logger.With("holder", holder)

	lockName := "poll:" + holder
	acquired, err := p.lock.Acquire(ctx, lockName, p.interval)
	if err != nil {
		logger.Error("failed to acquire poll lock", "error", err)
		return
	}
	if !acquired {
		logger.Debug("poll lock held elsewhere, skipping")
		return
	}
	defer func() {
		if err := p.lock.Release(ctx, lockName); err != nil {
			logger.Error("failed to release poll lock", "error", err)
		}
	}()

	result, err := p.discovery.PollOnce(ctx, holder)
	if err != nil {
		logger.Error("poll failed", "error", err)
		return
	}

	if result.Status == domain.DiscoveryStatusDegraded {
		logger.Warn("poll degraded to cached set")
	}

	if len(result.NewDocuments) == 0 {
		return
	}

	logger.Info("new documents discovered", "count", len(result.NewDocuments))
	if p.notify != nil {
		for _, doc := range result.NewDocuments {
			p.notify(holder, doc)
		}
	}
}

// Health returns health status of the poller.
type Health struct {
	Running     bool   `json:"running"`
	Subscribers int    `json:"subscribers"`
	LockHealth  bool   `json:"lock_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the poller.
func (p *Poller) Health(ctx context.Context) Health {
	p.mu.RLock()
	running := p.running
	subscribers := len(p.holders)
	p.mu.RUnlock()

	health := Health{
		Running:     running,
		Subscribers: subscribers,
	}

	if err := p.lock.Ping(ctx); err != nil {
		health.LockHealth = false
		health.Error = err.Error()
	} else {
		health.LockHealth = true
	}

	return health
}
