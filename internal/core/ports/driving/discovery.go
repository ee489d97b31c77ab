package driving

import (
	"context"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
)

// DiscoveryService reconstructs a holder's document set from the ledger
// and the local cache. These three operations are the only entry points
// the surrounding application may call.
type DiscoveryService interface {
	// GetCached returns the current cache contents for a holder with claim
	// annotations applied. Never touches the ledger; safe for instant display.
	GetCached(ctx context.Context, holder string) ([]*domain.Document, error)

	// Discover runs all scan strategies, reconciles with the cache,
	// persists the union, and returns the merged holder-scoped set.
	// Throttling degrades the result rather than failing it.
	Discover(ctx context.Context, holder string) (*domain.DiscoveryResult, error)

	// PollOnce is Discover plus a set-difference against the previous run,
	// reporting newly appeared, not-yet-claimed documents.
	PollOnce(ctx context.Context, holder string) (*domain.DiscoveryResult, error)

	// Status returns the holder's current discovery session status
	Status(holder string) domain.DiscoveryStatus
}
