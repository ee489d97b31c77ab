package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CacheStore = (*CacheStore)(nil)

// CacheStore implements driven.CacheStore using PostgreSQL.
// Claim state lives in the claims table only; document rows never carry it.
type CacheStore struct {
	db *DB
}

// NewCacheStore creates a new CacheStore
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

// UpsertDocuments writes documents by id. Rows belonging to other holders
// are never touched.
func (s *CacheStore) UpsertDocuments(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	query := `
		INSERT INTO documents (id, issuer, holder, type, title, issue_date, credential_hash, metadata, transaction_signature, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			issuer = EXCLUDED.issuer,
			holder = EXCLUDED.holder,
			type = EXCLUDED.type,
			title = EXCLUDED.title,
			issue_date = EXCLUDED.issue_date,
			credential_hash = EXCLUDED.credential_hash,
			metadata = EXCLUDED.metadata,
			transaction_signature = EXCLUDED.transaction_signature,
			updated_at = EXCLUDED.updated_at
	`

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		for _, doc := range docs {
			var metadata []byte
			if len(doc.Metadata) > 0 {
				var err error
				metadata, err = json.Marshal(doc.Metadata)
				if err != nil {
					return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
				}
			}
			_, err := tx.ExecContext(ctx, query,
				doc.ID,
				doc.Issuer,
				doc.Holder,
				doc.Type,
				doc.Title,
				doc.IssueDate,
				doc.CredentialHash,
				metadata,
				doc.TransactionSignature,
				now,
			)
			if err != nil {
				return fmt.Errorf("upsert document %s: %w", doc.ID, err)
			}
		}
		return nil
	})
}

const documentColumns = `id, issuer, holder, type, title, issue_date, credential_hash, metadata, transaction_signature`

func scanDocument(scanner interface{ Scan(...any) error }) (*domain.Document, error) {
	var doc domain.Document
	var metadata []byte

	err := scanner.Scan(
		&doc.ID,
		&doc.Issuer,
		&doc.Holder,
		&doc.Type,
		&doc.Title,
		&doc.IssueDate,
		&doc.CredentialHash,
		&metadata,
		&doc.TransactionSignature,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

// GetDocument retrieves a document by ID
func (s *CacheStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocumentsByHolder returns all documents for a holder address
func (s *CacheStore) ListDocumentsByHolder(ctx context.Context, holder string) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE holder = $1 ORDER BY issue_date DESC`
	return s.queryDocuments(ctx, query, holder)
}

// ListDocuments returns every cached document
func (s *CacheStore) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY issue_date DESC`
	return s.queryDocuments(ctx, query)
}

func (s *CacheStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// AddIssuers extends the issuer registry. Existing rows are left alone.
func (s *CacheStore) AddIssuers(ctx context.Context, addresses []string) error {
	query := `INSERT INTO issuers (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, addr := range addresses {
			if addr == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, query, addr); err != nil {
				return fmt.Errorf("add issuer %s: %w", addr, err)
			}
		}
		return nil
	})
}

// ListIssuers returns the issuer registry
func (s *CacheStore) ListIssuers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address FROM issuers ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issuers []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		issuers = append(issuers, addr)
	}
	return issuers, rows.Err()
}

// MarkClaimed inserts a claim record exactly once. ON CONFLICT DO NOTHING
// plus the affected-rows check makes the first writer win under races.
func (s *CacheStore) MarkClaimed(ctx context.Context, rec *domain.ClaimRecord) error {
	query := `
		INSERT INTO claims (document_id, nft_mint, claim_tx, claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, rec.DocumentID, rec.NFTMint, rec.ClaimTx, rec.ClaimedAt)
	if err != nil {
		return fmt.Errorf("mark claimed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// GetClaim retrieves the claim record for a document
func (s *CacheStore) GetClaim(ctx context.Context, documentID string) (*domain.ClaimRecord, error) {
	query := `SELECT document_id, nft_mint, claim_tx, claimed_at FROM claims WHERE document_id = $1`

	var rec domain.ClaimRecord
	err := s.db.QueryRowContext(ctx, query, documentID).Scan(
		&rec.DocumentID,
		&rec.NFTMint,
		&rec.ClaimTx,
		&rec.ClaimedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListClaims returns every claim record
func (s *CacheStore) ListClaims(ctx context.Context) ([]*domain.ClaimRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document_id, nft_mint, claim_tx, claimed_at FROM claims`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.ClaimRecord
	for rows.Next() {
		var rec domain.ClaimRecord
		if err := rows.Scan(&rec.DocumentID, &rec.NFTMint, &rec.ClaimTx, &rec.ClaimedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// Ping checks if the database is reachable
func (s *CacheStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
