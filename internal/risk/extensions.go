package risk

import "encoding/binary"

// ExtensionType is a Token-2022 TLV extension tag, an external wire
// contract this repo consumes (the SPL Token-2022 program defines it).
type ExtensionType uint16

const (
	ExtTransferFeeConfig   ExtensionType = 1
	ExtMintCloseAuthority  ExtensionType = 3
	ExtDefaultAccountState ExtensionType = 6
	ExtNonTransferable     ExtensionType = 9
	ExtPermanentDelegate   ExtensionType = 12
	ExtTransferHook        ExtensionType = 14
)

// Layout constants for where the Token-2022 program appends its TLV
// extension list after the base Mint struct.
const (
	accountTypeOffset = 165
	tlvStart          = 166
	accountTypeMint   = 1
)

// Extension is one parsed TLV entry from a mint account.
type Extension struct {
	Type ExtensionType
	Data []byte
}

// ParseMintExtensions reads the Token-2022 extension TLV list trailing a
// mint account's base layout. It returns (nil, false) for a standard SPL
// mint (no trailing account-type marker).
func ParseMintExtensions(blob []byte) ([]Extension, bool) {
	if len(blob) <= accountTypeOffset || blob[accountTypeOffset] != accountTypeMint {
		return nil, false
	}

	var exts []Extension
	off := tlvStart
	for off+4 <= len(blob) {
		typ := ExtensionType(binary.LittleEndian.Uint16(blob[off:]))
		length := int(binary.LittleEndian.Uint16(blob[off+2:]))
		off += 4
		if length < 0 || off+length > len(blob) {
			break
		}
		exts = append(exts, Extension{Type: typ, Data: blob[off : off+length]})
		off += length
	}
	return exts, true
}

// HasAny reports whether any extension in exts matches one of types.
func HasAny(exts []Extension, types ...ExtensionType) bool {
	for _, e := range exts {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
	}
	return false
}

// newerTransferFeeBpsOffset locates the "newer" (currently-active)
// transfer-fee basis-points field within a TransferFeeConfig extension's
// payload: two authority pubkeys, a withheld-amount counter, and the
// older-fee record all precede it.
const newerTransferFeeBpsOffset = 32 + 32 + 8 + (8 + 8 + 2) + (8 + 8)

// TransferFeeBasisPoints extracts the active transfer-fee basis points from
// a TransferFeeConfig extension, if present.
func TransferFeeBasisPoints(exts []Extension) (bps uint16, ok bool) {
	for _, e := range exts {
		if e.Type != ExtTransferFeeConfig {
			continue
		}
		if len(e.Data) < newerTransferFeeBpsOffset+2 {
			continue
		}
		return binary.LittleEndian.Uint16(e.Data[newerTransferFeeBpsOffset:]), true
	}
	return 0, false
}

// defaultAccountStateFrozen is the AccountState enum's "Frozen" discriminant.
const defaultAccountStateFrozen = 2

// DefaultAccountStateFrozen reports whether a DefaultAccountState extension
// freezes newly-created token accounts by default.
func DefaultAccountStateFrozen(exts []Extension) bool {
	for _, e := range exts {
		if e.Type == ExtDefaultAccountState && len(e.Data) >= 1 {
			return e.Data[0] == defaultAccountStateFrozen
		}
	}
	return false
}

// CriticalExtensions are the extensions that unconditionally veto a token:
// any present makes quick_check non-viable, and a full analysis records a
// critical failure.
var CriticalExtensions = []ExtensionType{ExtMintCloseAuthority, ExtPermanentDelegate, ExtTransferHook, ExtNonTransferable}
