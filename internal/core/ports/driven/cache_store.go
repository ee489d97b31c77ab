package driven

import (
	"context"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
)

// CacheStore is the durable persistence boundary for discovery: three
// explicitly-typed tables (documents, issuer registry, claimed set) with
// atomic upsert semantics. Document rows never carry claim state; the
// claimed set is the single source of truth for it.
type CacheStore interface {
	// UpsertDocuments inserts or updates documents by id. Existing rows
	// for other documents and other holders are never touched.
	UpsertDocuments(ctx context.Context, docs []*domain.Document) error

	// GetDocument retrieves a document by id
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocumentsByHolder retrieves all documents for a holder
	ListDocumentsByHolder(ctx context.Context, holder string) ([]*domain.Document, error)

	// ListDocuments retrieves all documents, all holders
	ListDocuments(ctx context.Context) ([]*domain.Document, error)

	// AddIssuers adds addresses to the issuer registry. The registry grows
	// monotonically; re-adding is a no-op.
	AddIssuers(ctx context.Context, addresses []string) error

	// ListIssuers returns every issuer address ever observed
	ListIssuers(ctx context.Context) ([]string, error)

	// MarkClaimed records a claim. Returns domain.ErrAlreadyClaimed if a
	// claim record already exists; the false->true transition happens once.
	MarkClaimed(ctx context.Context, rec *domain.ClaimRecord) error

	// GetClaim retrieves the claim record for a document, or domain.ErrNotFound
	GetClaim(ctx context.Context, documentID string) (*domain.ClaimRecord, error)

	// ListClaims returns all claim records
	ListClaims(ctx context.Context) ([]*domain.ClaimRecord, error)

	// Ping checks if the backing store is reachable
	Ping(ctx context.Context) error
}
