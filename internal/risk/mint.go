package risk

import "encoding/binary"

// SPL Mint account layout offsets (both the legacy Token program and the
// base of a Token-2022 mint): mint_authority is an Option<Pubkey>, then
// supply, decimals, is_initialized, then freeze_authority as another
// Option<Pubkey>.
const (
	mintAuthorityOptionOffset   = 0
	mintAuthorityOffset         = 4
	mintSupplyOffset            = 36
	mintDecimalsOffset          = 44
	mintFreezeAuthorityOptOff   = 46
	mintBaseSize                = 82
)

// mintAuthorities reports whether the mint and freeze authorities are
// present (COption discriminant == 1) on a parsed mint account blob.
func mintAuthorities(blob []byte) (mintAuthoritySet, freezeAuthoritySet bool, ok bool) {
	if len(blob) < mintBaseSize {
		return false, false, false
	}
	mintOpt := binary.LittleEndian.Uint32(blob[mintAuthorityOptionOffset:])
	freezeOpt := binary.LittleEndian.Uint32(blob[mintFreezeAuthorityOptOff:])
	return mintOpt == 1, freezeOpt == 1, true
}

// tokenAccountAmountOffset is the raw-u64-amount field within an SPL token
// account: mint(32) + owner(32) precede it.
const tokenAccountAmountOffset = 64

// parseTokenAccountAmount reads the raw token amount from a token account
// blob (either SPL Token or Token-2022; the base layout is identical).
func parseTokenAccountAmount(blob []byte) (uint64, bool) {
	if len(blob) < tokenAccountAmountOffset+8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(blob[tokenAccountAmountOffset:]), true
}
