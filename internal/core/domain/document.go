package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AppTag is the application marker written into every annotation payload.
// Discovery only accepts entries carrying this tag; the annotation channel
// is shared with unrelated traffic from other systems.
const AppTag = "veridoc"

// ActionClaim marks an annotation as a claim record rather than an issuance.
// Claim records are never surfaced as discovered documents.
const ActionClaim = "claim"

// Document is the unit of record: a verifiable document published by an
// issuer for a single holder. All fields except the claim state are
// immutable after issuance.
type Document struct {
	ID                   string         `json:"id"`
	Issuer               string         `json:"issuer"`
	Holder               string         `json:"holder"`
	Type                 string         `json:"type"`
	Title                string         `json:"title"`
	IssueDate            time.Time      `json:"issue_date"`
	CredentialHash       string         `json:"credential_hash"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	TransactionSignature string         `json:"transaction_signature,omitempty"`

	// Claim state. Sourced from the claimed-set table only, never from
	// ledger scans; flips false->true exactly once.
	Claimed bool   `json:"claimed"`
	NFTMint string `json:"nft_mint,omitempty"`
}

// ClaimRecord is the claimed-set entry for a document.
type ClaimRecord struct {
	DocumentID string    `json:"document_id"`
	NFTMint    string    `json:"nft_mint"`
	ClaimTx    string    `json:"claim_tx"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

// AnnotationPayload is the UTF-8 JSON wire format written to the
// annotation channel at issuance and claim time.
type AnnotationPayload struct {
	App            string         `json:"app"`
	Action         string         `json:"action,omitempty"`
	DocumentID     string         `json:"documentId"`
	Issuer         string         `json:"issuer"`
	Holder         string         `json:"holder"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	IssuedAt       string         `json:"issuedAt"`
	CredentialHash string         `json:"credentialHash"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// DecodeAnnotation parses and validates an annotation payload.
// Any JSON or field-validation failure returns an error wrapping
// ErrDecodeFailed so callers can skip the instruction silently.
func DecodeAnnotation(data []byte) (*AnnotationPayload, error) {
	var p AnnotationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if p.App == "" || p.DocumentID == "" || p.Issuer == "" || p.Holder == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrDecodeFailed)
	}
	if p.Type == "" || p.Title == "" || p.IssuedAt == "" || p.CredentialHash == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrDecodeFailed)
	}
	return &p, nil
}

// IsClaim reports whether the annotation marks a claim rather than an issuance.
func (p *AnnotationPayload) IsClaim() bool {
	return p.Action == ActionClaim
}

// Document converts an issuance annotation into a Document.
// A malformed issuedAt fails the conversion; the instruction is skipped.
func (p *AnnotationPayload) Document(signature string) (*Document, error) {
	issuedAt, err := time.Parse(time.RFC3339, p.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: issuedAt: %v", ErrDecodeFailed, err)
	}
	return &Document{
		ID:                   p.DocumentID,
		Issuer:               p.Issuer,
		Holder:               p.Holder,
		Type:                 p.Type,
		Title:                p.Title,
		IssueDate:            issuedAt,
		CredentialHash:       p.CredentialHash,
		Metadata:             p.Metadata,
		TransactionSignature: signature,
	}, nil
}

// Annotation builds the issuance annotation for a document.
func (d *Document) Annotation() *AnnotationPayload {
	return &AnnotationPayload{
		App:            AppTag,
		DocumentID:     d.ID,
		Issuer:         d.Issuer,
		Holder:         d.Holder,
		Type:           d.Type,
		Title:          d.Title,
		IssuedAt:       d.IssueDate.UTC().Format(time.RFC3339),
		CredentialHash: d.CredentialHash,
		Metadata:       d.Metadata,
	}
}

// CredentialHash computes the placeholder verification token for a document:
// a rolling (FNV-1a) hash over the identifying fields plus the issue
// timestamp. Opaque equality check only; not cryptographically meaningful.
func CredentialHash(documentID, issuer, holder, docType, title string, issuedAt time.Time) string {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	input := documentID + "|" + issuer + "|" + holder + "|" + docType + "|" + title +
		"|" + issuedAt.UTC().Format(time.RFC3339Nano)
	var h uint64 = offset64
	for i := 0; i < len(input); i++ {
		h ^= uint64(input[i])
		h *= prime64
	}
	return fmt.Sprintf("%016x", h)
}
