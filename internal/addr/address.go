// Package addr defines the 32-byte on-chain address type shared by every
// component that names a mint, pool, vault or wallet.
package addr

import (
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"
)

// Size is the byte length of a Solana-style address.
const Size = 32

// Address is an opaque 32-byte identifier with a base58 textual form.
type Address [Size]byte

// Zero is the all-zero address, used as a sentinel for "not set".
var Zero Address

// Parse decodes a base58-encoded address string.
func Parse(s string) (Address, error) {
	var a Address
	b, err := base58.Decode(s)
	if err != nil {
		return a, errors.New("addr: invalid base58: " + err.Error())
	}
	if len(b) != Size {
		return a, errors.New("addr: decoded length is not 32 bytes")
	}
	copy(a[:], b)
	return a, nil
}

// MustParse parses s, panicking on error. Intended for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes copies b into a new Address. b must be exactly Size bytes.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, errors.New("addr: source slice is not 32 bytes")
	}
	copy(a[:], b)
	return a, nil
}

// String returns the base58 textual form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Hex returns the hex form, occasionally useful in logs for exact byte diffs.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// Equal reports whether a and b name the same address.
func (a Address) Equal(b Address) bool {
	return a == b
}

// Bytes returns a's bytes as a fresh slice.
func (a Address) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, a[:])
	return out
}
