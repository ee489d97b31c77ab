package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven/mocks"
)

func issuedAt(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func TestReconciler_LedgerDataWins(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	local := []*domain.Document{
		{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1", Title: "Old Title", IssueDate: issuedAt(t, "2026-01-01T00:00:00Z")},
	}
	scanned := []*domain.Document{
		{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1", Title: "Updated Title", IssueDate: issuedAt(t, "2026-01-01T00:00:00Z"), TransactionSignature: "sig-1"},
	}

	merged, err := reconciler.Reconcile(context.Background(), "holder-A", local, nil, scanned, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged document, got %d", len(merged))
	}
	if merged[0].Title != "Updated Title" {
		t.Errorf("ledger title must win over the stale local copy, got %q", merged[0].Title)
	}
	if merged[0].TransactionSignature != "sig-1" {
		t.Errorf("expected discovery signature retained, got %q", merged[0].TransactionSignature)
	}
}

func TestReconciler_DeduplicatesAcrossStrategies(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	doc := func(sig string) []*domain.Document {
		return []*domain.Document{
			{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1", Title: "Diploma", TransactionSignature: sig},
		}
	}

	merged, err := reconciler.Reconcile(context.Background(), "holder-A", nil,
		doc("sig-1"), doc("sig-1"), doc("sig-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged) != 1 {
		t.Errorf("expected one entry for same id from all strategies, got %d", len(merged))
	}
}

func TestReconciler_FiltersForeignHolders(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	scanned := []*domain.Document{
		{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1"},
		{ID: "doc-2", Holder: "holder-B", Issuer: "issuer-1"},
	}

	merged, err := reconciler.Reconcile(context.Background(), "holder-A", nil, scanned)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged) != 1 || merged[0].ID != "doc-1" {
		t.Errorf("expected holder-scoped result, got %v", merged)
	}
}

func TestReconciler_ClaimStateFromClaimedSetOnly(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	_ = cache.MarkClaimed(context.Background(), &domain.ClaimRecord{
		DocumentID: "doc-claimed",
		NFTMint:    "mint-1",
	})

	// The scan lies about claim state both ways; only the claimed set counts.
	scanned := []*domain.Document{
		{ID: "doc-claimed", Holder: "holder-A", Issuer: "issuer-1", Claimed: false},
		{ID: "doc-open", Holder: "holder-A", Issuer: "issuer-1", Claimed: true, NFTMint: "bogus"},
	}

	merged, err := reconciler.Reconcile(context.Background(), "holder-A", nil, scanned)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byID := make(map[string]*domain.Document)
	for _, doc := range merged {
		byID[doc.ID] = doc
	}
	if !byID["doc-claimed"].Claimed || byID["doc-claimed"].NFTMint != "mint-1" {
		t.Errorf("claimed document lost its claim state: %+v", byID["doc-claimed"])
	}
	if byID["doc-open"].Claimed || byID["doc-open"].NFTMint != "" {
		t.Errorf("unclaimed document gained claim state from scan data: %+v", byID["doc-open"])
	}
}

func TestReconciler_ClaimMonotonicAcrossRuns(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	_ = cache.MarkClaimed(context.Background(), &domain.ClaimRecord{DocumentID: "doc-1", NFTMint: "mint-1"})

	scanned := []*domain.Document{{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1"}}

	for run := 0; run < 3; run++ {
		merged, err := reconciler.Reconcile(context.Background(), "holder-A", nil, scanned)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", run, err)
		}
		if !merged[0].Claimed {
			t.Fatalf("run %d: claim state regressed to false", run)
		}
	}
}

func TestReconciler_PreservesOtherHolders(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	_ = cache.UpsertDocuments(context.Background(), []*domain.Document{
		{ID: "doc-other", Holder: "holder-B", Issuer: "issuer-2", Title: "Unrelated"},
	})

	scanned := []*domain.Document{{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1"}}
	if _, err := reconciler.Reconcile(context.Background(), "holder-A", nil, scanned); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other, err := cache.ListDocumentsByHolder(context.Background(), "holder-B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 1 || other[0].ID != "doc-other" {
		t.Errorf("write-back must not disturb other holders' rows, got %v", other)
	}
}

func TestReconciler_ExtendsIssuerRegistry(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	scanned := []*domain.Document{
		{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1"},
		{ID: "doc-2", Holder: "holder-A", Issuer: "issuer-2"},
	}
	if _, err := reconciler.Reconcile(context.Background(), "holder-A", nil, scanned); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issuers, err := cache.ListIssuers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issuers) != 2 {
		t.Errorf("expected both issuers registered, got %v", issuers)
	}
}

func TestReconciler_SortsByIssueDateDescending(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	scanned := []*domain.Document{
		{ID: "doc-old", Holder: "holder-A", Issuer: "issuer-1", IssueDate: issuedAt(t, "2025-06-01T00:00:00Z")},
		{ID: "doc-new", Holder: "holder-A", Issuer: "issuer-1", IssueDate: issuedAt(t, "2026-02-01T00:00:00Z")},
		{ID: "doc-mid", Holder: "holder-A", Issuer: "issuer-1", IssueDate: issuedAt(t, "2025-11-01T00:00:00Z")},
	}

	merged, err := reconciler.Reconcile(context.Background(), "holder-A", nil, scanned)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"doc-new", "doc-mid", "doc-old"}
	for i, id := range want {
		if merged[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, merged[i].ID)
		}
	}
}

func TestReconciler_MetadataExtendsPerKey(t *testing.T) {
	cache := mocks.NewMockCacheStore()
	reconciler := NewReconciler(cache, nil)

	local := []*domain.Document{
		{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1", Metadata: map[string]any{"grade": "A", "campus": "north"}},
	}
	scanned := []*domain.Document{
		{ID: "doc-1", Holder: "holder-A", Issuer: "issuer-1", Metadata: map[string]any{"grade": "A+"}},
	}

	merged, err := reconciler.Reconcile(context.Background(), "holder-A", local, scanned)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	meta := merged[0].Metadata
	if meta["grade"] != "A+" {
		t.Errorf("expected scan value to overwrite key, got %v", meta["grade"])
	}
	if meta["campus"] != "north" {
		t.Errorf("expected local-only key preserved, got %v", meta["campus"])
	}
}
