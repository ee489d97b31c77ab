package domain

// DiscoveryStatus tracks a holder's discovery session.
type DiscoveryStatus string

const (
	DiscoveryStatusIdle       DiscoveryStatus = "idle"
	DiscoveryStatusScanning   DiscoveryStatus = "scanning"
	DiscoveryStatusReconciled DiscoveryStatus = "reconciled"

	// DiscoveryStatusDegraded means throttling exhausted retries in every
	// strategy and the scan yielded nothing beyond the cache. Not an error
	// state; the result is cache-only and the next run restarts from scanning.
	DiscoveryStatusDegraded DiscoveryStatus = "degraded"
)

// ScanStats counts candidates per strategy in one discovery run.
type ScanStats struct {
	CacheVerified     int `json:"cache_verified"`
	IssuerCandidates  int `json:"issuer_candidates"`
	ChannelCandidates int `json:"channel_candidates"`
	Merged            int `json:"merged"`
}

// DiscoveryResult is the outcome of one Discover or PollOnce run.
// Documents is always a valid (possibly empty) holder-scoped set; Status
// distinguishes "nothing found" from "scan degraded by throttling".
type DiscoveryResult struct {
	Holder    string          `json:"holder"`
	Documents []*Document     `json:"documents"`
	Status    DiscoveryStatus `json:"status"`
	Stats     ScanStats       `json:"stats"`
	Duration  float64         `json:"duration_seconds"`

	// NewDocuments is set by PollOnce: documents that appeared since the
	// previous run for this holder and are not yet claimed.
	NewDocuments []*Document `json:"new_documents,omitempty"`
}
