package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrThrottled indicates the ledger rate-limited a request
	ErrThrottled = errors.New("throttled")

	// ErrExhaustedRetries indicates the retry budget ran out on a throttled request
	ErrExhaustedRetries = errors.New("exhausted retries")

	// ErrDecodeFailed indicates a malformed or irrelevant annotation payload
	ErrDecodeFailed = errors.New("decode failed")

	// ErrAlreadyClaimed indicates the document's claim flag is already set
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrHolderMismatch indicates the document belongs to a different holder
	ErrHolderMismatch = errors.New("holder mismatch")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")
)
