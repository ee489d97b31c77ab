package domain

import (
	"fmt"
	"time"
)

// SignatureInfo is a single entry from a transaction-history listing.
type SignatureInfo struct {
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime *time.Time `json:"block_time,omitempty"`
	Err       string     `json:"err,omitempty"`
}

// LedgerInstruction is one instruction of a ledger transaction with its
// program address resolved. Adapters normalise both the legacy and the
// compiled message representations into this form, so scan strategies only
// ever see resolved addresses and raw payload bytes.
type LedgerInstruction struct {
	ProgramID string `json:"program_id"`
	Data      []byte `json:"data"`
}

// LedgerTransaction is a fetched transaction.
type LedgerTransaction struct {
	Signature    string              `json:"signature"`
	Slot         uint64              `json:"slot"`
	BlockTime    *time.Time          `json:"block_time,omitempty"`
	Err          string              `json:"err,omitempty"` // execution error, empty on success
	Instructions []LedgerInstruction `json:"instructions"`
}

// Failed reports whether the transaction executed with an error.
func (t *LedgerTransaction) Failed() bool {
	return t.Err != ""
}

// ThrottledError is returned by ledger adapters when the upstream rate
// limits a request. RetryAfter carries the server-supplied hint when the
// response included one; zero means no hint.
type ThrottledError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *ThrottledError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("throttled: %s", e.Message)
	}
	return "throttled: rate limit exceeded"
}

// Is allows errors.Is(err, ErrThrottled) to match typed throttle errors.
func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}
