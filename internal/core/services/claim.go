package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driving"
)

// Ensure claimService implements ClaimService
var _ driving.ClaimService = (*claimService)(nil)

// claimService flips a document's claim flag exactly once. The mint
// identifier it records is a mock, matching the documented placeholder
// behavior; nothing is actually minted.
type claimService struct {
	wallet driven.WalletSigner
	cache  driven.CacheStore
	logger *slog.Logger
	now    func() time.Time
}

// NewClaimService creates a new ClaimService
func NewClaimService(wallet driven.WalletSigner, cache driven.CacheStore, logger *slog.Logger) driving.ClaimService {
	if logger == nil {
		logger = slog.Default()
	}
	return &claimService{
		wallet: wallet,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Claim marks a document claimed by its holder. The claimed transition is
// false->true exactly once; a second claim fails with ErrAlreadyClaimed.
func (s *claimService) Claim(ctx context.Context, documentID, holder string) (*domain.ClaimRecord, error) {
	if documentID == "" || holder == "" {
		return nil, domain.ErrInvalidInput
	}

	doc, err := s.cache.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Holder != holder {
		return nil, domain.ErrHolderMismatch
	}

	if _, err := s.cache.GetClaim(ctx, documentID); err == nil {
		return nil, domain.ErrAlreadyClaimed
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	annotation := doc.Annotation()
	annotation.Action = domain.ActionClaim
	payload, err := json.Marshal(annotation)
	if err != nil {
		return nil, fmt.Errorf("encode claim annotation: %w", err)
	}

	claimTx, err := s.wallet.SendTransaction(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("publish claim: %w", err)
	}

	rec := &domain.ClaimRecord{
		DocumentID: documentID,
		NFTMint:    "mint-" + generateID(),
		ClaimTx:    claimTx,
		ClaimedAt:  s.now(),
	}

	// Concurrent claims resolve here: the store accepts exactly one record.
	if err := s.cache.MarkClaimed(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("document claimed",
		"document_id", documentID,
		"holder", holder,
		"claim_tx", claimTx,
	)

	return rec, nil
}
