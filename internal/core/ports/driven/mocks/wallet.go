package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.WalletSigner = (*MockWalletSigner)(nil)

// MockWalletSigner records published payloads and hands out sequential
// signatures.
type MockWalletSigner struct {
	mu       sync.Mutex
	address  string
	payloads [][]byte

	SendTransactionFn func(ctx context.Context, payload []byte) (string, error)
}

// NewMockWalletSigner creates a new MockWalletSigner
func NewMockWalletSigner(address string) *MockWalletSigner {
	return &MockWalletSigner{address: address}
}

func (m *MockWalletSigner) SendTransaction(ctx context.Context, payload []byte) (string, error) {
	if m.SendTransactionFn != nil {
		return m.SendTransactionFn(ctx, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return fmt.Sprintf("mock-sig-%d", len(m.payloads)), nil
}

func (m *MockWalletSigner) Address() string {
	return m.address
}

// Payloads returns every payload published through this signer
func (m *MockWalletSigner) Payloads() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.payloads))
	copy(out, m.payloads)
	return out
}
