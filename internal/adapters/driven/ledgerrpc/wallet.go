package ledgerrpc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.WalletSigner = (*Wallet)(nil)

// Wallet implements driven.WalletSigner against the ledger RPC node.
// Signing is a placeholder: the envelope carries a random nonce instead of
// a real signature, matching the documented cosmetic signing contract. The
// annotation payload itself is what discovery reads back.
type Wallet struct {
	client  *Client
	address string
	channel string
}

// NewWallet creates a new RPC-backed wallet signer
func NewWallet(client *Client, address, channel string) *Wallet {
	return &Wallet{
		client:  client,
		address: address,
		channel: channel,
	}
}

// transactionEnvelope is the wire form handed to sendTransaction.
type transactionEnvelope struct {
	Signer  string `json:"signer"`
	Channel string `json:"channel"`
	Payload string `json:"payload"` // base64 annotation bytes
	Nonce   string `json:"nonce"`
}

// SendTransaction publishes an annotation payload to the channel and
// returns the transaction signature assigned by the node.
func (w *Wallet) SendTransaction(ctx context.Context, payload []byte) (string, error) {
	envelope := transactionEnvelope{
		Signer:  w.address,
		Channel: w.channel,
		Payload: base64.StdEncoding.EncodeToString(payload),
		Nonce:   generateNonce(),
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshal transaction envelope: %w", err)
	}

	params := []any{base64.StdEncoding.EncodeToString(encoded), map[string]any{"encoding": "base64"}}

	var signature string
	if err := w.client.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// Address returns the wallet's ledger address
func (w *Wallet) Address() string {
	return w.address
}

func generateNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
