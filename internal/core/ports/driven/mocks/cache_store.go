package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CacheStore = (*MockCacheStore)(nil)

// MockCacheStore is an in-memory CacheStore for testing
type MockCacheStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	order     []string // insertion order of document ids
	issuers   []string
	issuerSet map[string]bool
	claims    map[string]*domain.ClaimRecord
}

// NewMockCacheStore creates a new MockCacheStore
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		documents: make(map[string]*domain.Document),
		issuerSet: make(map[string]bool),
		claims:    make(map[string]*domain.ClaimRecord),
	}
}

func (m *MockCacheStore) UpsertDocuments(ctx context.Context, docs []*domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		copied := *doc
		// claim state never persists on the document row
		copied.Claimed = false
		copied.NFTMint = ""
		if _, ok := m.documents[doc.ID]; !ok {
			m.order = append(m.order, doc.ID)
		}
		m.documents[doc.ID] = &copied
	}
	return nil
}

func (m *MockCacheStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *MockCacheStore) ListDocumentsByHolder(ctx context.Context, holder string) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []*domain.Document
	for _, id := range m.order {
		if doc := m.documents[id]; doc.Holder == holder {
			copied := *doc
			docs = append(docs, &copied)
		}
	}
	return docs, nil
}

func (m *MockCacheStore) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []*domain.Document
	for _, id := range m.order {
		copied := *m.documents[id]
		docs = append(docs, &copied)
	}
	return docs, nil
}

func (m *MockCacheStore) AddIssuers(ctx context.Context, addresses []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, addr := range addresses {
		if addr == "" || m.issuerSet[addr] {
			continue
		}
		m.issuerSet[addr] = true
		m.issuers = append(m.issuers, addr)
	}
	return nil
}

func (m *MockCacheStore) ListIssuers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.issuers))
	copy(out, m.issuers)
	return out, nil
}

func (m *MockCacheStore) MarkClaimed(ctx context.Context, rec *domain.ClaimRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[rec.DocumentID]; ok {
		return domain.ErrAlreadyClaimed
	}
	copied := *rec
	m.claims[rec.DocumentID] = &copied
	return nil
}

func (m *MockCacheStore) GetClaim(ctx context.Context, documentID string) (*domain.ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.claims[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MockCacheStore) ListClaims(ctx context.Context) ([]*domain.ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var recs []*domain.ClaimRecord
	for _, rec := range m.claims {
		copied := *rec
		recs = append(recs, &copied)
	}
	return recs, nil
}

func (m *MockCacheStore) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

func (m *MockCacheStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = make(map[string]*domain.Document)
	m.order = nil
	m.issuers = nil
	m.issuerSet = make(map[string]bool)
	m.claims = make(map[string]*domain.ClaimRecord)
}
