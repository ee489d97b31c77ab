package ledgerrpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LedgerClient = (*Client)(nil)

// Client implements driven.LedgerClient over the ledger node's JSON-RPC
// endpoint. Public RPC nodes rate limit aggressively; HTTP 429 responses
// and rate-limit RPC errors are surfaced as *domain.ThrottledError so the
// retry executor can honor the node's Retry-After hint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	requestID  atomic.Int64
}

// Config holds RPC connection configuration
type Config struct {
	// Endpoint is the JSON-RPC URL of the ledger node
	Endpoint string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint: endpoint,
		Timeout:  30 * time.Second,
	}
}

// NewClient creates a new JSON-RPC ledger client
func NewClient(cfg Config) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

// call performs one JSON-RPC round trip and decodes the result.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.ThrottledError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    fmt.Sprintf("%s: node returned 429", method),
		}
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed: %s - %s", method, resp.Status, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		if isRateLimitRPCError(rpcResp.Error) {
			return &domain.ThrottledError{Message: rpcResp.Error.Message}
		}
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func isRateLimitRPCError(e *rpcError) bool {
	msg := strings.ToLower(e.Message)
	return e.Code == -32429 ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit")
}

// GetLatestBlockHeight returns the node's current block height
func (c *Client) GetLatestBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, "getBlockHeight", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

type signatureEntry struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Err       json.RawMessage `json:"err"`
}

// GetSignaturesForAddress lists the most recent transaction signatures
// touching an address, newest first.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]*domain.SignatureInfo, error) {
	params := []any{address, map[string]any{"limit": limit}}

	var entries []signatureEntry
	if err := c.call(ctx, "getSignaturesForAddress", params, &entries); err != nil {
		return nil, err
	}

	infos := make([]*domain.SignatureInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, &domain.SignatureInfo{
			Signature: entry.Signature,
			Slot:      entry.Slot,
			BlockTime: unixTimePtr(entry.BlockTime),
			Err:       rawErrString(entry.Err),
		})
	}
	return infos, nil
}

// transactionResult is the wire shape of a fetched transaction. Instructions
// come in two forms: parsed entries carry programId directly, compiled
// entries reference the message's account key table by index.
type transactionResult struct {
	Slot        uint64 `json:"slot"`
	BlockTime   *int64 `json:"blockTime"`
	Meta        *struct {
		Err json.RawMessage `json:"err"`
	} `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys  []string `json:"accountKeys"`
			Instructions []struct {
				ProgramID      string `json:"programId"`
				ProgramIDIndex *int   `json:"programIdIndex"`
				Data           string `json:"data"`
			} `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

// GetTransaction fetches one confirmed transaction by signature.
// Returns domain.ErrNotFound when the node does not know the signature.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*domain.LedgerTransaction, error) {
	params := []any{signature, map[string]any{"encoding": "json"}}

	var raw json.RawMessage
	if err := c.call(ctx, "getTransaction", params, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, domain.ErrNotFound
	}

	var result transactionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal transaction %s: %w", signature, err)
	}

	tx := &domain.LedgerTransaction{
		Signature: signature,
		Slot:      result.Slot,
		BlockTime: unixTimePtr(result.BlockTime),
	}
	if result.Meta != nil {
		tx.Err = rawErrString(result.Meta.Err)
	}

	keys := result.Transaction.Message.AccountKeys
	for _, ins := range result.Transaction.Message.Instructions {
		programID := ins.ProgramID
		if programID == "" && ins.ProgramIDIndex != nil {
			if idx := *ins.ProgramIDIndex; idx >= 0 && idx < len(keys) {
				programID = keys[idx]
			}
		}
		tx.Instructions = append(tx.Instructions, domain.LedgerInstruction{
			ProgramID: programID,
			Data:      decodeInstructionData(ins.Data),
		})
	}
	return tx, nil
}

// ConfirmTransaction checks whether a signature has been confirmed
func (c *Client) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	params := []any{[]string{signature}}

	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return false, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, nil
	}
	status := result.Value[0]
	if rawErrString(status.Err) != "" {
		return false, nil
	}
	return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
}

// decodeInstructionData decodes base64 instruction data, falling back to
// the raw bytes when the payload was written unencoded.
func decodeInstructionData(data string) []byte {
	if data == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return decoded
	}
	return []byte(data)
}

func unixTimePtr(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}

// rawErrString renders a transaction error object as a comparable string.
// null means success and maps to the empty string.
func rawErrString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}
