package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driving"
)

// Ensure issuanceService implements IssuanceService
var _ driving.IssuanceService = (*issuanceService)(nil)

// issuanceService publishes documents to the annotation channel and records
// them in the cache store.
type issuanceService struct {
	wallet driven.WalletSigner
	cache  driven.CacheStore
	logger *slog.Logger
	now    func() time.Time
}

// NewIssuanceService creates a new IssuanceService
func NewIssuanceService(wallet driven.WalletSigner, cache driven.CacheStore, logger *slog.Logger) driving.IssuanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &issuanceService{
		wallet: wallet,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Issue builds the annotation payload, publishes it through the wallet
// signer, and persists the document and its issuer.
func (s *issuanceService) Issue(ctx context.Context, req driving.IssueRequest) (*domain.Document, error) {
	if req.Holder == "" || req.Type == "" || req.Title == "" {
		return nil, domain.ErrInvalidInput
	}

	issuer := req.Issuer
	if issuer == "" {
		issuer = s.wallet.Address()
	}

	issuedAt := s.now()
	doc := &domain.Document{
		ID:        generateID(),
		Issuer:    issuer,
		Holder:    req.Holder,
		Type:      req.Type,
		Title:     req.Title,
		IssueDate: issuedAt,
		Metadata:  req.Metadata,
	}
	doc.CredentialHash = domain.CredentialHash(doc.ID, issuer, req.Holder, req.Type, req.Title, issuedAt)

	payload, err := json.Marshal(doc.Annotation())
	if err != nil {
		return nil, fmt.Errorf("encode annotation: %w", err)
	}

	signature, err := s.wallet.SendTransaction(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("publish annotation: %w", err)
	}
	doc.TransactionSignature = signature

	if err := s.cache.UpsertDocuments(ctx, []*domain.Document{doc}); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}
	if err := s.cache.AddIssuers(ctx, []string{issuer}); err != nil {
		return nil, fmt.Errorf("register issuer: %w", err)
	}

	s.logger.Info("document issued",
		"document_id", doc.ID,
		"issuer", issuer,
		"holder", req.Holder,
		"signature", signature,
	)

	return doc, nil
}

// RegisterIssuer adds an address to the issuer registry.
func (s *issuanceService) RegisterIssuer(ctx context.Context, address string) error {
	if address == "" {
		return domain.ErrInvalidInput
	}
	return s.cache.AddIssuers(ctx, []string{address})
}

// ListIssuers returns the issuer registry.
func (s *issuanceService) ListIssuers(ctx context.Context) ([]string, error) {
	return s.cache.ListIssuers(ctx)
}
