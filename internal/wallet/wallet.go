// Package wallet is a thin adapter over the configured signer key: the
// risk analyzer's sell simulation and the bundle executor's live swaps
// both need a concrete signer, so this package gives them one.
package wallet

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// Wallet wraps a single Ed25519 signing keypair.
type Wallet struct {
	key solanago.PrivateKey
}

// FromBase58 decodes a base58 64-byte private key, the PRIVATE_KEY env
// var's format.
func FromBase58(encoded string) (*Wallet, error) {
	key, err := solanago.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// PublicKey returns the wallet's address.
func (w *Wallet) PublicKey() solanago.PublicKey { return w.key.PublicKey() }

// Sign produces a detached signature over msg.
func (w *Wallet) Sign(msg []byte) (solanago.Signature, error) {
	return w.key.Sign(msg)
}

// PrivateKey exposes the underlying key for transaction-builder helpers
// that need to sign a whole solanago.Transaction in one call.
func (w *Wallet) PrivateKey() solanago.PrivateKey { return w.key }
