package decode

import (
	"encoding/binary"
	"math/bits"

	"github.com/mr-tron/base58"
)

// TokenAccountAmountOffset is the raw-u64-amount field within an SPL token
// account (SPL Token and Token-2022 share the same base layout): mint(32)
// + owner(32) precede it.
const TokenAccountAmountOffset = 64

// ParseTokenAccountAmount reads the raw token amount from a token account
// blob, used by the orchestrator's zero-balance exit check.
func ParseTokenAccountAmount(blob []byte) (uint64, bool) {
	if len(blob) < TokenAccountAmountOffset+8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(blob[TokenAccountAmountOffset:]), true
}

// bitsMul64 and bitsDiv64 wrap math/bits' widened 64-bit multiply/divide so
// pumpfun.go's AMM math never silently overflows 64 bits.
func bitsMul64(a, b uint64) (hi, lo uint64) { return bits.Mul64(a, b) }

func bitsDiv64(hi, lo, c uint64) (q, r uint64) { return bits.Div64(hi, lo, c) }

// decodeInstructionData decodes an instruction's base58-encoded data field.
// Malformed data decodes to a nil slice rather than erroring; callers treat
// a too-short result as a non-match.
func decodeInstructionData(data string) []byte {
	b, err := base58.Decode(data)
	if err != nil {
		return nil
	}
	return b
}
