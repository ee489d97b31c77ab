package driven

import (
	"context"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
)

// LedgerClient is the read-only query interface over the ledger.
// All calls may fail with *domain.ThrottledError when the upstream rate
// limits; callers are expected to go through the retry executor.
type LedgerClient interface {
	// GetLatestBlockHeight returns the current ledger height
	GetLatestBlockHeight(ctx context.Context) (uint64, error)

	// GetSignaturesForAddress lists up to limit recent transaction
	// signatures touching an address, most recent first
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]*domain.SignatureInfo, error)

	// GetTransaction fetches a transaction with instructions normalised
	// into domain.LedgerInstruction (legacy and compiled forms alike)
	GetTransaction(ctx context.Context, signature string) (*domain.LedgerTransaction, error)

	// ConfirmTransaction reports whether the transaction is confirmed
	ConfirmTransaction(ctx context.Context, signature string) (bool, error)
}

// WalletSigner publishes signed annotation writes to the ledger.
// The discovery core never calls this; only the issuance and claim flows do.
type WalletSigner interface {
	// SendTransaction publishes an annotation payload and returns the
	// transaction signature
	SendTransaction(ctx context.Context, payload []byte) (string, error)

	// Address returns the signing address
	Address() string
}
