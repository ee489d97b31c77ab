package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	registerFn      func(ctx context.Context, req domain.RegisterRequest) (*domain.UserSummary, error)
	authenticateFn  func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
	refreshTokenFn  func(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error)
	logoutFn        func(ctx context.Context, token string) error
}

func (m *mockAuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.UserSummary, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error) {
	if m.refreshTokenFn != nil {
		return m.refreshTokenFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

type mockDiscoveryService struct {
	getCachedFn func(ctx context.Context, holder string) ([]*domain.Document, error)
	discoverFn  func(ctx context.Context, holder string) (*domain.DiscoveryResult, error)
	pollOnceFn  func(ctx context.Context, holder string) (*domain.DiscoveryResult, error)
	statusFn    func(holder string) domain.DiscoveryStatus
}

func (m *mockDiscoveryService) GetCached(ctx context.Context, holder string) ([]*domain.Document, error) {
	if m.getCachedFn != nil {
		return m.getCachedFn(ctx, holder)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDiscoveryService) Discover(ctx context.Context, holder string) (*domain.DiscoveryResult, error) {
	if m.discoverFn != nil {
		return m.discoverFn(ctx, holder)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDiscoveryService) PollOnce(ctx context.Context, holder string) (*domain.DiscoveryResult, error) {
	if m.pollOnceFn != nil {
		return m.pollOnceFn(ctx, holder)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDiscoveryService) Status(holder string) domain.DiscoveryStatus {
	if m.statusFn != nil {
		return m.statusFn(holder)
	}
	return domain.DiscoveryStatusIdle
}

type mockIssuanceService struct {
	issueFn          func(ctx context.Context, req driving.IssueRequest) (*domain.Document, error)
	registerIssuerFn func(ctx context.Context, address string) error
	listIssuersFn    func(ctx context.Context) ([]string, error)
}

func (m *mockIssuanceService) Issue(ctx context.Context, req driving.IssueRequest) (*domain.Document, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIssuanceService) RegisterIssuer(ctx context.Context, address string) error {
	if m.registerIssuerFn != nil {
		return m.registerIssuerFn(ctx, address)
	}
	return nil
}

func (m *mockIssuanceService) ListIssuers(ctx context.Context) ([]string, error) {
	if m.listIssuersFn != nil {
		return m.listIssuersFn(ctx)
	}
	return nil, nil
}

type mockClaimService struct {
	claimFn func(ctx context.Context, documentID, holder string) (*domain.ClaimRecord, error)
}

func (m *mockClaimService) Claim(ctx context.Context, documentID, holder string) (*domain.ClaimRecord, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, documentID, holder)
	}
	return nil, errors.New("not implemented")
}

// Test fixtures

const (
	holderToken  = "holder-token"
	issuerToken  = "issuer-token"
	adminToken   = "admin-token"
	holderAddr   = "holder-addr"
	issuerAddr   = "issuer-addr"
	adminAddr    = "admin-addr"
	otherAddress = "other-addr"
)

// authByToken maps the fixture tokens to auth contexts.
func authByToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	switch token {
	case holderToken:
		return &domain.AuthContext{UserID: "u-holder", Address: holderAddr, Role: domain.RoleHolder, SessionID: "s1"}, nil
	case issuerToken:
		return &domain.AuthContext{UserID: "u-issuer", Address: issuerAddr, Role: domain.RoleIssuer, SessionID: "s2"}, nil
	case adminToken:
		return &domain.AuthContext{UserID: "u-admin", Address: adminAddr, Role: domain.RoleAdmin, SessionID: "s3"}, nil
	}
	return nil, domain.ErrTokenInvalid
}

type serverMocks struct {
	auth      *mockAuthService
	discovery *mockDiscoveryService
	issuance  *mockIssuanceService
	claim     *mockClaimService
	cache     *mocks.MockCacheStore
}

func newTestServer(t *testing.T) (*Server, *serverMocks) {
	t.Helper()
	m := &serverMocks{
		auth:      &mockAuthService{validateTokenFn: authByToken},
		discovery: &mockDiscoveryService{},
		issuance:  &mockIssuanceService{},
		claim:     &mockClaimService{},
		cache:     mocks.NewMockCacheStore(),
	}
	server := NewServer(DefaultConfig(), m.auth, m.discovery, m.issuance, m.claim, m.cache)
	return server, m
}

func doRequest(t *testing.T, server *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	return rec
}

// Tests

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandleRegister(t *testing.T) {
	server, m := newTestServer(t)
	m.auth.registerFn = func(ctx context.Context, req domain.RegisterRequest) (*domain.UserSummary, error) {
		return &domain.UserSummary{ID: "u1", Email: req.Email, Address: req.Address, Role: domain.RoleHolder}, nil
	}

	rec := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{
		Email: "holder@example.com", Password: "secret123", Address: holderAddr,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRegister_Duplicate(t *testing.T) {
	server, m := newTestServer(t)
	m.auth.registerFn = func(ctx context.Context, req domain.RegisterRequest) (*domain.UserSummary, error) {
		return nil, domain.ErrAlreadyExists
	}

	rec := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{
		Email: "holder@example.com", Password: "x", Address: holderAddr,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandleGetCachedDocuments(t *testing.T) {
	server, m := newTestServer(t)
	m.discovery.getCachedFn = func(ctx context.Context, holder string) ([]*domain.Document, error) {
		return []*domain.Document{{ID: "doc-1", Holder: holder}}, nil
	}

	rec := doRequest(t, server, http.MethodGet, "/api/v1/holders/"+holderAddr+"/documents", holderToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Holder    string             `json:"holder"`
		Documents []*domain.Document `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Holder != holderAddr || len(resp.Documents) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleGetCachedDocuments_ForeignAddressForbidden(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/holders/"+otherAddress+"/documents", holderToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a foreign address, got %d", rec.Code)
	}
}

func TestHandleGetCachedDocuments_AdminSeesAny(t *testing.T) {
	server, m := newTestServer(t)
	m.discovery.getCachedFn = func(ctx context.Context, holder string) ([]*domain.Document, error) {
		return nil, nil
	}

	rec := doRequest(t, server, http.MethodGet, "/api/v1/holders/"+otherAddress+"/documents", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestHandleGetCachedDocuments_Unauthenticated(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/holders/"+holderAddr+"/documents", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHandleDiscover(t *testing.T) {
	server, m := newTestServer(t)
	m.discovery.discoverFn = func(ctx context.Context, holder string) (*domain.DiscoveryResult, error) {
		return &domain.DiscoveryResult{
			Holder: holder,
			Status: domain.DiscoveryStatusReconciled,
		}, nil
	}

	rec := doRequest(t, server, http.MethodPost, "/api/v1/holders/"+holderAddr+"/discover", holderToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.DiscoveryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Status != domain.DiscoveryStatusReconciled {
		t.Errorf("unexpected status %s", result.Status)
	}
}

func TestHandleDiscover_DegradedStillOK(t *testing.T) {
	server, m := newTestServer(t)
	m.discovery.discoverFn = func(ctx context.Context, holder string) (*domain.DiscoveryResult, error) {
		return &domain.DiscoveryResult{Holder: holder, Status: domain.DiscoveryStatusDegraded}, nil
	}

	rec := doRequest(t, server, http.MethodPost, "/api/v1/holders/"+holderAddr+"/discover", holderToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("degraded discovery must still return 200, got %d", rec.Code)
	}
}

func TestHandleIssueDocument(t *testing.T) {
	server, m := newTestServer(t)
	var received driving.IssueRequest
	m.issuance.issueFn = func(ctx context.Context, req driving.IssueRequest) (*domain.Document, error) {
		received = req
		return &domain.Document{ID: "doc-1", Issuer: req.Issuer, Holder: req.Holder}, nil
	}

	rec := doRequest(t, server, http.MethodPost, "/api/v1/documents", issuerToken, driving.IssueRequest{
		Issuer: "spoofed-issuer",
		Holder: holderAddr,
		Type:   "degree",
		Title:  "Diploma",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	// A non-admin issuer cannot issue under someone else's address
	if received.Issuer != issuerAddr {
		t.Errorf("expected issuer forced to token address, got %s", received.Issuer)
	}
}

func TestHandleIssueDocument_HolderForbidden(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/documents", holderToken, driving.IssueRequest{
		Holder: holderAddr, Type: "degree", Title: "Diploma",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for holder issuing, got %d", rec.Code)
	}
}

func TestHandleClaimDocument(t *testing.T) {
	server, m := newTestServer(t)
	m.claim.claimFn = func(ctx context.Context, documentID, holder string) (*domain.ClaimRecord, error) {
		if holder != holderAddr {
			t.Errorf("expected claim as token address, got %s", holder)
		}
		return &domain.ClaimRecord{DocumentID: documentID, NFTMint: "mint-1", ClaimedAt: time.Now()}, nil
	}

	rec := doRequest(t, server, http.MethodPost, "/api/v1/documents/doc-1/claim", holderToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleClaimDocument_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already claimed", domain.ErrAlreadyClaimed, http.StatusConflict},
		{"holder mismatch", domain.ErrHolderMismatch, http.StatusForbidden},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, m := newTestServer(t)
			m.claim.claimFn = func(ctx context.Context, documentID, holder string) (*domain.ClaimRecord, error) {
				return nil, tt.err
			}

			rec := doRequest(t, server, http.MethodPost, "/api/v1/documents/doc-1/claim", holderToken, nil)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandleGetDocument(t *testing.T) {
	server, m := newTestServer(t)
	_ = m.cache.UpsertDocuments(context.Background(), []*domain.Document{
		{ID: "doc-1", Holder: holderAddr, Issuer: issuerAddr, Title: "Diploma"},
	})
	_ = m.cache.MarkClaimed(context.Background(), &domain.ClaimRecord{DocumentID: "doc-1", NFTMint: "mint-1"})

	rec := doRequest(t, server, http.MethodGet, "/api/v1/documents/doc-1", holderToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var doc domain.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !doc.Claimed || doc.NFTMint != "mint-1" {
		t.Errorf("expected claim state joined onto the document, got %+v", doc)
	}
}

func TestHandleGetDocument_ForeignHolderForbidden(t *testing.T) {
	server, m := newTestServer(t)
	_ = m.cache.UpsertDocuments(context.Background(), []*domain.Document{
		{ID: "doc-1", Holder: otherAddress, Issuer: otherAddress},
	})

	rec := doRequest(t, server, http.MethodGet, "/api/v1/documents/doc-1", holderToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandleRegisterIssuer_AdminOnly(t *testing.T) {
	server, m := newTestServer(t)
	m.issuance.registerIssuerFn = func(ctx context.Context, address string) error { return nil }

	rec := doRequest(t, server, http.MethodPost, "/api/v1/issuers", issuerToken, map[string]string{"address": "issuer-9"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/issuers", adminToken, map[string]string{"address": "issuer-9"})
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleListIssuers(t *testing.T) {
	server, m := newTestServer(t)
	m.issuance.listIssuersFn = func(ctx context.Context) ([]string, error) {
		return []string{"issuer-1", "issuer-2"}, nil
	}

	rec := doRequest(t, server, http.MethodGet, "/api/v1/issuers", holderToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Issuers []string `json:"issuers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Issuers) != 2 {
		t.Errorf("expected 2 issuers, got %v", resp.Issuers)
	}
}

func TestHandleDiscoveryStatus(t *testing.T) {
	server, m := newTestServer(t)
	m.discovery.statusFn = func(holder string) domain.DiscoveryStatus {
		return domain.DiscoveryStatusScanning
	}

	rec := doRequest(t, server, http.MethodGet, "/api/v1/holders/"+holderAddr+"/status", holderToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status domain.DiscoveryStatus `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != domain.DiscoveryStatusScanning {
		t.Errorf("unexpected status %s", resp.Status)
	}
}
