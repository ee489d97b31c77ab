package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LedgerClient = (*MockLedgerClient)(nil)

// MockLedgerClient is a scriptable ledger client for testing. Each method
// records the call time (so tests can assert throttle bounds) and delegates
// to the corresponding Fn when set.
type MockLedgerClient struct {
	mu        sync.Mutex
	calls     int
	callTimes []time.Time

	GetLatestBlockHeightFn    func(ctx context.Context) (uint64, error)
	GetSignaturesForAddressFn func(ctx context.Context, address string, limit int) ([]*domain.SignatureInfo, error)
	GetTransactionFn          func(ctx context.Context, signature string) (*domain.LedgerTransaction, error)
	ConfirmTransactionFn      func(ctx context.Context, signature string) (bool, error)
}

// NewMockLedgerClient creates a new MockLedgerClient
func NewMockLedgerClient() *MockLedgerClient {
	return &MockLedgerClient{}
}

func (m *MockLedgerClient) record() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.callTimes = append(m.callTimes, time.Now())
}

func (m *MockLedgerClient) GetLatestBlockHeight(ctx context.Context) (uint64, error) {
	m.record()
	if m.GetLatestBlockHeightFn != nil {
		return m.GetLatestBlockHeightFn(ctx)
	}
	return 0, nil
}

func (m *MockLedgerClient) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]*domain.SignatureInfo, error) {
	m.record()
	if m.GetSignaturesForAddressFn != nil {
		return m.GetSignaturesForAddressFn(ctx, address, limit)
	}
	return nil, nil
}

func (m *MockLedgerClient) GetTransaction(ctx context.Context, signature string) (*domain.LedgerTransaction, error) {
	m.record()
	if m.GetTransactionFn != nil {
		return m.GetTransactionFn(ctx, signature)
	}
	return nil, domain.ErrNotFound
}

func (m *MockLedgerClient) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	m.record()
	if m.ConfirmTransactionFn != nil {
		return m.ConfirmTransactionFn(ctx, signature)
	}
	return true, nil
}

// Helper methods for testing

// Calls returns the total number of ledger calls made
func (m *MockLedgerClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CallTimes returns the time of every ledger call
func (m *MockLedgerClient) CallTimes() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, len(m.callTimes))
	copy(out, m.callTimes)
	return out
}
