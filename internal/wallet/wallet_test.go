package wallet

import (
	"testing"

	solanago "github.com/gagliardetto/solana-go"
)

func TestFromBase58RoundTrip(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}

	w, err := FromBase58(key.String())
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}
	if w.PublicKey() != key.PublicKey() {
		t.Fatal("decoded wallet's public key does not match the source key")
	}
}

func TestFromBase58RejectsGarbage(t *testing.T) {
	if _, err := FromBase58("not-a-valid-key"); err == nil {
		t.Fatal("expected an error for a malformed private key")
	}
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	w, err := FromBase58(key.String())
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}

	msg := []byte("sell simulation probe")
	sig, err := w.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !sig.Verify(w.PublicKey(), msg) {
		t.Fatal("signature failed to verify against the wallet's own public key")
	}
}
