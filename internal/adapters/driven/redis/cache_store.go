package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CacheStore = (*CacheStore)(nil)

const (
	// Key layout: one hash per table, field = document id
	documentsKey = "veridoc:documents"
	issuersKey   = "veridoc:issuers"
	claimsKey    = "veridoc:claims"
)

// CacheStore implements driven.CacheStore using Redis.
// Documents and claims live in hashes keyed by document id, issuers in a
// set. Claim state is never written into the document rows; the claims
// hash is the only source of truth for it.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new Redis-backed CacheStore
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// UpsertDocuments writes documents by id, field-wise. Other holders' rows
// are untouched.
func (s *CacheStore) UpsertDocuments(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, doc := range docs {
		row := *doc
		row.Claimed = false
		row.NFTMint = ""
		data, err := json.Marshal(&row)
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", doc.ID, err)
		}
		pipe.HSet(ctx, documentsKey, doc.ID, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id
func (s *CacheStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	data, err := s.client.HGet(ctx, documentsKey, id).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}

// ListDocumentsByHolder returns all documents for a holder address
func (s *CacheStore) ListDocumentsByHolder(ctx context.Context, holder string) ([]*domain.Document, error) {
	all, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var docs []*domain.Document
	for _, doc := range all {
		if doc.Holder == holder {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// ListDocuments returns every cached document
func (s *CacheStore) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	rows, err := s.client.HGetAll(ctx, documentsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]*domain.Document, 0, len(rows))
	for id, data := range rows {
		var doc domain.Document
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// AddIssuers extends the issuer registry. Adding is monotonic; there is no
// removal operation.
func (s *CacheStore) AddIssuers(ctx context.Context, addresses []string) error {
	members := make([]interface{}, 0, len(addresses))
	for _, addr := range addresses {
		if addr != "" {
			members = append(members, addr)
		}
	}
	if len(members) == 0 {
		return nil
	}
	if err := s.client.SAdd(ctx, issuersKey, members...).Err(); err != nil {
		return fmt.Errorf("add issuers: %w", err)
	}
	return nil
}

// ListIssuers returns the issuer registry
func (s *CacheStore) ListIssuers(ctx context.Context) ([]string, error) {
	issuers, err := s.client.SMembers(ctx, issuersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	return issuers, nil
}

// MarkClaimed inserts a claim record exactly once. HSETNX makes the
// first-writer-wins semantics atomic under concurrent claims.
func (s *CacheStore) MarkClaimed(ctx context.Context, rec *domain.ClaimRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}

	inserted, err := s.client.HSetNX(ctx, claimsKey, rec.DocumentID, data).Result()
	if err != nil {
		return fmt.Errorf("mark claimed: %w", err)
	}
	if !inserted {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// GetClaim retrieves the claim record for a document
func (s *CacheStore) GetClaim(ctx context.Context, documentID string) (*domain.ClaimRecord, error) {
	data, err := s.client.HGet(ctx, claimsKey, documentID).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}

	var rec domain.ClaimRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal claim: %w", err)
	}
	return &rec, nil
}

// ListClaims returns every claim record
func (s *CacheStore) ListClaims(ctx context.Context) ([]*domain.ClaimRecord, error) {
	rows, err := s.client.HGetAll(ctx, claimsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	recs := make([]*domain.ClaimRecord, 0, len(rows))
	for id, data := range rows {
		var rec domain.ClaimRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal claim %s: %w", id, err)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

// Ping checks if the Redis backend is healthy
func (s *CacheStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
