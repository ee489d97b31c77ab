package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

const (
	// Scan bounds
	maxIssuersPerScan     = 10
	issuerSignatureLimit  = 50
	channelSignatureLimit = 30
	channelTxLimit        = 20

	// Retry budgets per call type
	verifyAttempts  = 2
	verifyBaseDelay = 500 * time.Millisecond
	listAttempts    = 3
	listBaseDelay   = 1000 * time.Millisecond
	txAttempts      = 2
	txBaseDelay     = 500 * time.Millisecond

	// Pacing between units of work, on top of the shared throttle
	pacingDelay    = 200 * time.Millisecond
	issuerGapDelay = 500 * time.Millisecond
)

// LedgerScanner implements the three discovery strategies. Each strategy
// returns a deduplicated, holder-filtered candidate list; claim annotations
// are always excluded. Per-unit failures are skipped; a non-nil error next
// to partial results only signals degradation to the orchestrator, never a
// hard failure.
type LedgerScanner struct {
	ledger         driven.LedgerClient
	cache          driven.CacheStore
	executor       *RetryExecutor
	channelAddress string
	logger         *slog.Logger
	pause          func(ctx context.Context, d time.Duration) error
}

// LedgerScannerConfig holds dependencies for LedgerScanner.
type LedgerScannerConfig struct {
	Ledger         driven.LedgerClient
	Cache          driven.CacheStore
	Executor       *RetryExecutor
	ChannelAddress string
	Logger         *slog.Logger
}

// NewLedgerScanner creates a new ledger scanner.
func NewLedgerScanner(cfg LedgerScannerConfig) *LedgerScanner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerScanner{
		ledger:         cfg.Ledger,
		cache:          cfg.Cache,
		executor:       cfg.Executor,
		channelAddress: cfg.ChannelAddress,
		logger:         logger,
		pause:          sleepCtx,
	}
}

// VerifyCached re-checks that cached documents for the holder still exist
// on the ledger. A document with no transaction signature is included
// unconditionally. A failed lookup also keeps the document: liveness-check
// failure is not proof of non-existence, the cache is trusted over a flaky
// lookup. Only a confirmed execution error excludes it.
func (s *LedgerScanner) VerifyCached(ctx context.Context, holder string) ([]*domain.Document, error) {
	cached, err := s.cache.ListDocumentsByHolder(ctx, holder)
	if err != nil {
		return nil, err
	}

	var docs []*domain.Document
	var degraded error

	for i, doc := range cached {
		if i > 0 && i%5 == 0 {
			if err := s.pause(ctx, pacingDelay); err != nil {
				return docs, err
			}
		}

		if doc.TransactionSignature == "" {
			docs = append(docs, doc)
			continue
		}

		var tx *domain.LedgerTransaction
		err := s.executor.Execute(ctx, verifyAttempts, verifyBaseDelay, func(ctx context.Context) error {
			var fetchErr error
			tx, fetchErr = s.ledger.GetTransaction(ctx, doc.TransactionSignature)
			return fetchErr
		})
		if err != nil {
			if errors.Is(err, domain.ErrExhaustedRetries) {
				degraded = err
			}
			s.logger.Debug("cache verification lookup failed, keeping document",
				"document_id", doc.ID,
				"error", err,
			)
			docs = append(docs, doc)
			continue
		}

		if tx != nil && tx.Failed() {
			s.logger.Debug("cached document transaction failed on ledger, excluding",
				"document_id", doc.ID,
				"signature", doc.TransactionSignature,
			)
			continue
		}
		docs = append(docs, doc)
	}

	return docs, degraded
}

// ScanIssuers walks the transaction history of known issuer addresses and
// collects annotation entries addressed to the holder.
func (s *LedgerScanner) ScanIssuers(ctx context.Context, holder string) ([]*domain.Document, error) {
	issuers, err := s.cache.ListIssuers(ctx)
	if err != nil {
		return nil, err
	}
	if len(issuers) > maxIssuersPerScan {
		issuers = issuers[:maxIssuersPerScan]
	}

	var docs []*domain.Document
	seen := make(map[string]bool)
	var degraded error

	for i, issuer := range issuers {
		if i > 0 {
			if err := s.pause(ctx, issuerGapDelay); err != nil {
				return docs, err
			}
		}

		var sigs []*domain.SignatureInfo
		err := s.executor.Execute(ctx, listAttempts, listBaseDelay, func(ctx context.Context) error {
			var listErr error
			sigs, listErr = s.ledger.GetSignaturesForAddress(ctx, issuer, issuerSignatureLimit)
			return listErr
		})
		if err != nil {
			s.logger.Warn("issuer history listing failed",
				"issuer", issuer,
				"error", err,
			)
			if errors.Is(err, domain.ErrExhaustedRetries) {
				degraded = err
			}
			continue
		}

		for j, sig := range sigs {
			if j > 0 && j%5 == 0 {
				if err := s.pause(ctx, pacingDelay); err != nil {
					return docs, err
				}
			}
			doc, unitErr := s.fetchAndDecode(ctx, sig.Signature, holder)
			if unitErr != nil && errors.Is(unitErr, domain.ErrExhaustedRetries) {
				degraded = unitErr
			}
			if doc != nil && !seen[doc.ID] {
				seen[doc.ID] = true
				docs = append(docs, doc)
			}
		}
	}

	return docs, degraded
}

// ScanChannel reads the most recent activity on the annotation channel
// itself. Low yield but not indexed by issuer, so it catches documents from
// issuers the registry has never seen. The channel is globally busy, so
// pacing is more conservative.
func (s *LedgerScanner) ScanChannel(ctx context.Context, holder string) ([]*domain.Document, error) {
	var sigs []*domain.SignatureInfo
	err := s.executor.Execute(ctx, listAttempts, listBaseDelay, func(ctx context.Context) error {
		var listErr error
		sigs, listErr = s.ledger.GetSignaturesForAddress(ctx, s.channelAddress, channelSignatureLimit)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	if len(sigs) > channelTxLimit {
		sigs = sigs[:channelTxLimit]
	}

	var docs []*domain.Document
	seen := make(map[string]bool)
	var degraded error

	for i, sig := range sigs {
		if i > 0 && i%3 == 0 {
			if err := s.pause(ctx, 2*pacingDelay); err != nil {
				return docs, err
			}
		}
		doc, unitErr := s.fetchAndDecode(ctx, sig.Signature, holder)
		if unitErr != nil && errors.Is(unitErr, domain.ErrExhaustedRetries) {
			degraded = unitErr
		}
		if doc != nil && !seen[doc.ID] {
			seen[doc.ID] = true
			docs = append(docs, doc)
		}
	}

	return docs, degraded
}

// fetchAndDecode fetches one transaction and applies the shared
// decode-and-accept predicate. Errors at this granularity are absorbed:
// the unit of work is skipped, never the scan.
func (s *LedgerScanner) fetchAndDecode(ctx context.Context, signature, holder string) (*domain.Document, error) {
	var tx *domain.LedgerTransaction
	err := s.executor.Execute(ctx, txAttempts, txBaseDelay, func(ctx context.Context) error {
		var fetchErr error
		tx, fetchErr = s.ledger.GetTransaction(ctx, signature)
		return fetchErr
	})
	if err != nil {
		s.logger.Debug("transaction fetch skipped", "signature", signature, "error", err)
		return nil, err
	}
	if tx == nil || tx.Failed() {
		return nil, nil
	}
	return s.decodeAndAccept(tx, holder), nil
}

// decodeAndAccept scans a transaction's instructions for an annotation on
// the well-known channel and accepts it when it carries this system's app
// tag, is an issuance (not a claim), and is addressed to the target holder.
// Malformed payloads are unrelated channel traffic and are skipped silently.
func (s *LedgerScanner) decodeAndAccept(tx *domain.LedgerTransaction, holder string) *domain.Document {
	for _, ins := range tx.Instructions {
		if ins.ProgramID != s.channelAddress {
			continue
		}
		payload, err := domain.DecodeAnnotation(ins.Data)
		if err != nil {
			continue
		}
		if payload.App != domain.AppTag || payload.IsClaim() || payload.Holder != holder {
			continue
		}
		doc, err := payload.Document(tx.Signature)
		if err != nil {
			continue
		}
		return doc
	}
	return nil
}
