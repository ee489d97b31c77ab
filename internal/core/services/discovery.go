package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driving"
)

// Ensure DiscoveryOrchestrator implements DiscoveryService
var _ driving.DiscoveryService = (*DiscoveryOrchestrator)(nil)

// DiscoveryOrchestrator is the public entry point of the discovery engine.
// It sequences cache load, full scan, and reconciliation, and tracks a
// per-holder session status (idle -> scanning -> reconciled/degraded).
type DiscoveryOrchestrator struct {
	cache      driven.CacheStore
	scanner    *LedgerScanner
	reconciler *Reconciler
	logger     *slog.Logger

	mu       sync.Mutex
	status   map[string]domain.DiscoveryStatus
	lastSeen map[string]map[string]bool // holder -> document ids of the previous run
}

// DiscoveryOrchestratorConfig holds dependencies for DiscoveryOrchestrator.
type DiscoveryOrchestratorConfig struct {
	Cache      driven.CacheStore
	Scanner    *LedgerScanner
	Reconciler *Reconciler
	Logger     *slog.Logger
}

// NewDiscoveryOrchestrator creates a new discovery orchestrator.
func NewDiscoveryOrchestrator(cfg DiscoveryOrchestratorConfig) *DiscoveryOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoveryOrchestrator{
		cache:      cfg.Cache,
		scanner:    cfg.Scanner,
		reconciler: cfg.Reconciler,
		logger:     logger,
		status:     make(map[string]domain.DiscoveryStatus),
		lastSeen:   make(map[string]map[string]bool),
	}
}

// GetCached returns the current cache contents for a holder with claim
// annotations, sorted by issue date descending. Never touches the ledger.
func (o *DiscoveryOrchestrator) GetCached(ctx context.Context, holder string) ([]*domain.Document, error) {
	docs, err := o.cache.ListDocumentsByHolder(ctx, holder)
	if err != nil {
		return nil, err
	}
	if err := o.reconciler.AnnotateClaims(ctx, docs); err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].IssueDate.After(docs[j].IssueDate)
	})
	return docs, nil
}

// Discover runs all three scan strategies concurrently (the shared throttle
// bounds their interleaving), reconciles with the cache, persists the union,
// and returns the merged set. A scan degraded by throttling still yields a
// valid cache-only result; only cache failures are hard errors.
func (o *DiscoveryOrchestrator) Discover(ctx context.Context, holder string) (*domain.DiscoveryResult, error) {
	startTime := time.Now()
	o.setStatus(holder, domain.DiscoveryStatusScanning)

	o.logger.Info("starting discovery", "holder", holder)

	local, err := o.cache.ListDocumentsByHolder(ctx, holder)
	if err != nil {
		o.setStatus(holder, domain.DiscoveryStatusIdle)
		return nil, err
	}

	type strategyOutcome struct {
		docs []*domain.Document
		err  error
	}
	strategies := []struct {
		name string
		run  func(context.Context, string) ([]*domain.Document, error)
	}{
		{"cache_verify", o.scanner.VerifyCached},
		{"issuer_scan", o.scanner.ScanIssuers},
		{"channel_scan", o.scanner.ScanChannel},
	}

	outcomes := make([]strategyOutcome, len(strategies))
	var wg sync.WaitGroup
	for i, strategy := range strategies {
		wg.Add(1)
		go func(idx int, run func(context.Context, string) ([]*domain.Document, error)) {
			defer wg.Done()
			docs, err := run(ctx, holder)
			outcomes[idx] = strategyOutcome{docs: docs, err: err}
		}(i, strategy.run)
	}
	wg.Wait()

	throttledOut := true
	for i, outcome := range outcomes {
		if outcome.err != nil {
			o.logger.Warn("scan strategy degraded",
				"holder", holder,
				"strategy", strategies[i].name,
				"error", outcome.err,
			)
		}
		if outcome.err == nil || !errors.Is(outcome.err, domain.ErrExhaustedRetries) {
			throttledOut = false
		}
	}

	merged, err := o.reconciler.Reconcile(ctx, holder, local,
		outcomes[0].docs, outcomes[1].docs, outcomes[2].docs)
	if err != nil {
		o.setStatus(holder, domain.DiscoveryStatusIdle)
		return nil, err
	}

	status := domain.DiscoveryStatusReconciled
	if throttledOut && !hasNewIDs(local, merged) {
		status = domain.DiscoveryStatusDegraded
	}
	o.setStatus(holder, status)
	o.rememberIDs(holder, merged)

	duration := time.Since(startTime).Seconds()
	o.logger.Info("discovery completed",
		"holder", holder,
		"status", status,
		"documents", len(merged),
		"duration_seconds", duration,
	)

	return &domain.DiscoveryResult{
		Holder:    holder,
		Documents: merged,
		Status:    status,
		Stats: domain.ScanStats{
			CacheVerified:     len(outcomes[0].docs),
			IssuerCandidates:  len(outcomes[1].docs),
			ChannelCandidates: len(outcomes[2].docs),
			Merged:            len(merged),
		},
		Duration: duration,
	}, nil
}

// PollOnce is Discover plus a set-difference against the previous run for
// this holder, reporting newly appeared, not-yet-claimed documents. Intended
// for periodic background invocation.
func (o *DiscoveryOrchestrator) PollOnce(ctx context.Context, holder string) (*domain.DiscoveryResult, error) {
	o.mu.Lock()
	previous := make(map[string]bool, len(o.lastSeen[holder]))
	for id := range o.lastSeen[holder] {
		previous[id] = true
	}
	o.mu.Unlock()

	result, err := o.Discover(ctx, holder)
	if err != nil {
		return nil, err
	}

	var fresh []*domain.Document
	for _, doc := range result.Documents {
		if !previous[doc.ID] && !doc.Claimed {
			fresh = append(fresh, doc)
		}
	}
	result.NewDocuments = fresh
	return result, nil
}

// Status returns the holder's current discovery session status.
func (o *DiscoveryOrchestrator) Status(holder string) domain.DiscoveryStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status, ok := o.status[holder]; ok {
		return status
	}
	return domain.DiscoveryStatusIdle
}

func (o *DiscoveryOrchestrator) setStatus(holder string, status domain.DiscoveryStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status[holder] = status
}

func (o *DiscoveryOrchestrator) rememberIDs(holder string, docs []*domain.Document) {
	ids := make(map[string]bool, len(docs))
	for _, doc := range docs {
		ids[doc.ID] = true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastSeen[holder] = ids
}

// hasNewIDs reports whether merged contains any id absent from local.
func hasNewIDs(local, merged []*domain.Document) bool {
	known := make(map[string]bool, len(local))
	for _, doc := range local {
		known[doc.ID] = true
	}
	for _, doc := range merged {
		if !known[doc.ID] {
			return true
		}
	}
	return false
}
