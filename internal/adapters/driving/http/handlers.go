package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response
type StatusResponse struct {
	Status string `json:"status"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if err := s.cache.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "cache store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// handleRegister creates a new holder or issuer account bound to a ledger
// address. Admin accounts cannot be self-registered.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email, password, and address are required")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "account already exists")
		default:
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.RefreshToken(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	_ = s.authService.Logout(r.Context(), token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Holder document endpoints

// handleGetCachedDocuments returns the cached document set instantly,
// without touching the ledger.
func (s *Server) handleGetCachedDocuments(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	docs, err := s.discoveryService.GetCached(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load documents")
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"holder":    address,
		"documents": docs,
	})
}

// handleDiscover runs a full discovery scan for the holder. Throttled scans
// degrade to the cached set rather than failing, so this returns 200 with a
// degraded status instead of an error when the ledger is rate limiting.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	result, err := s.discoveryService.Discover(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "discovery failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	result, err := s.discoveryService.PollOnce(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "poll failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDiscoveryStatus(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	writeJSON(w, http.StatusOK, map[string]any{
		"holder": address,
		"status": s.discoveryService.Status(address),
	})
}

// Document endpoints

// handleGetDocument returns a single cached document with its claim state.
// Visible to the holder it belongs to, the issuer that published it, and
// admins.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	id := r.PathValue("id")

	doc, err := s.cache.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	if !authCtx.Owns(doc.Holder) && authCtx.Address != doc.Issuer {
		writeError(w, http.StatusForbidden, "document not visible to this account")
		return
	}

	if rec, err := s.cache.GetClaim(r.Context(), doc.ID); err == nil {
		doc.Claimed = true
		doc.NFTMint = rec.NFTMint
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleIssueDocument publishes a new document to the annotation channel.
// Issuer accounts publish under their own address.
func (s *Server) handleIssueDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var req driving.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Non-admin issuers always publish as themselves
	if !authCtx.IsAdmin() {
		req.Issuer = authCtx.Address
	}

	doc, err := s.issuanceService.Issue(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "holder, type, and title are required")
		default:
			writeError(w, http.StatusInternalServerError, "issuance failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// handleClaimDocument claims a document for the authenticated holder.
// The claim transition happens exactly once; repeat claims return 409.
func (s *Server) handleClaimDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	id := r.PathValue("id")

	rec, err := s.claimService.Claim(r.Context(), id, authCtx.Address)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, domain.ErrHolderMismatch):
			writeError(w, http.StatusForbidden, "document belongs to another holder")
		case errors.Is(err, domain.ErrAlreadyClaimed):
			writeError(w, http.StatusConflict, "document already claimed")
		default:
			writeError(w, http.StatusInternalServerError, "claim failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Issuer registry endpoints

func (s *Server) handleListIssuers(w http.ResponseWriter, r *http.Request) {
	issuers, err := s.issuanceService.ListIssuers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list issuers")
		return
	}
	if issuers == nil {
		issuers = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"issuers": issuers})
}

func (s *Server) handleRegisterIssuer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.issuanceService.RegisterIssuer(r.Context(), req.Address); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "address is required")
		default:
			writeError(w, http.StatusInternalServerError, "failed to register issuer")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"address": req.Address})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
