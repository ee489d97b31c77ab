package driving

import (
	"context"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
)

// IssueRequest describes a document to publish.
type IssueRequest struct {
	Issuer   string         `json:"issuer"`
	Holder   string         `json:"holder"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IssuanceService publishes documents to the ledger and records them locally.
type IssuanceService interface {
	// Issue builds the annotation payload, publishes it through the wallet
	// signer, and persists the resulting document and its issuer.
	Issue(ctx context.Context, req IssueRequest) (*domain.Document, error)

	// RegisterIssuer adds an address to the issuer registry
	RegisterIssuer(ctx context.Context, address string) error

	// ListIssuers returns the issuer registry
	ListIssuers(ctx context.Context) ([]string, error)
}

// ClaimService flips a document's claim flag exactly once.
type ClaimService interface {
	// Claim marks a document claimed by its holder, publishes the claim
	// annotation, and records the mock mint identifier.
	Claim(ctx context.Context, documentID, holder string) (*domain.ClaimRecord, error)
}
