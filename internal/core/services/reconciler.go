package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Reconciler merges candidate lists from all scan strategies and the local
// cache into one deduplicated, holder-scoped set and persists the union.
type Reconciler struct {
	cache  driven.CacheStore
	logger *slog.Logger
}

// NewReconciler creates a new reconciler over the cache store.
func NewReconciler(cache driven.CacheStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{cache: cache, logger: logger}
}

// Reconcile merges local documents with strategy candidates in the fixed
// order the scans slice carries (cache verification, issuer scan, channel
// scan). Same-id candidates overwrite/extend the accumulated entry - ledger
// data wins over a possibly-stale local copy - but claim state is never
// flipped from scan data; it is joined from the claimed set after merge.
// The merged set is upserted back by id, never truncating other holders,
// and the issuer registry is extended to cover every issuer in it. The
// return value is sorted by issue date descending, ties stable.
func (r *Reconciler) Reconcile(ctx context.Context, holder string, local []*domain.Document, scans ...[]*domain.Document) ([]*domain.Document, error) {
	merged := make([]*domain.Document, 0, len(local))
	index := make(map[string]*domain.Document)

	appendDoc := func(doc *domain.Document) {
		copied := *doc
		merged = append(merged, &copied)
		index[doc.ID] = &copied
	}

	for _, doc := range local {
		if doc.Holder != holder || index[doc.ID] != nil {
			continue
		}
		appendDoc(doc)
	}

	for _, scan := range scans {
		for _, candidate := range scan {
			if candidate.Holder != holder {
				continue
			}
			if existing := index[candidate.ID]; existing != nil {
				mergeFields(existing, candidate)
			} else {
				appendDoc(candidate)
			}
		}
	}

	if err := r.AnnotateClaims(ctx, merged); err != nil {
		return nil, err
	}

	if err := r.cache.UpsertDocuments(ctx, merged); err != nil {
		return nil, fmt.Errorf("write back merged documents: %w", err)
	}

	issuers := make([]string, 0, len(merged))
	seen := make(map[string]bool)
	for _, doc := range merged {
		if doc.Issuer != "" && !seen[doc.Issuer] {
			seen[doc.Issuer] = true
			issuers = append(issuers, doc.Issuer)
		}
	}
	if len(issuers) > 0 {
		if err := r.cache.AddIssuers(ctx, issuers); err != nil {
			return nil, fmt.Errorf("update issuer registry: %w", err)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].IssueDate.After(merged[j].IssueDate)
	})

	return merged, nil
}

// AnnotateClaims sets claim state on documents from the claimed-set table,
// the only source of truth for it.
func (r *Reconciler) AnnotateClaims(ctx context.Context, docs []*domain.Document) error {
	claims, err := r.cache.ListClaims(ctx)
	if err != nil {
		return fmt.Errorf("list claims: %w", err)
	}
	byID := make(map[string]*domain.ClaimRecord, len(claims))
	for _, rec := range claims {
		byID[rec.DocumentID] = rec
	}
	for _, doc := range docs {
		if rec, ok := byID[doc.ID]; ok {
			doc.Claimed = true
			doc.NFTMint = rec.NFTMint
		} else {
			doc.Claimed = false
			doc.NFTMint = ""
		}
	}
	return nil
}

// mergeFields overwrites dst's issuance fields with the candidate's and
// extends metadata per key. Claim state is untouched.
func mergeFields(dst, src *domain.Document) {
	dst.Issuer = src.Issuer
	dst.Type = src.Type
	dst.Title = src.Title
	dst.CredentialHash = src.CredentialHash
	if !src.IssueDate.IsZero() {
		dst.IssueDate = src.IssueDate
	}
	if src.TransactionSignature != "" {
		dst.TransactionSignature = src.TransactionSignature
	}
	if len(src.Metadata) > 0 {
		if dst.Metadata == nil {
			dst.Metadata = make(map[string]any, len(src.Metadata))
		}
		for k, v := range src.Metadata {
			dst.Metadata[k] = v
		}
	}
}
