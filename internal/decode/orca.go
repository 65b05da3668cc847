package decode

import (
	"strings"

	"sniper/internal/domain"
	"sniper/internal/solana"
)

// OrcaProgramID is the canonical Orca Whirlpool program address. Orca's
// exact account layout is undocumented here, so this decoder only exists
// to give the ENABLE_ORCA toggle and the WebSocket log-filter list a real
// registration target; parsing always reports a decode error (nil, nil)
// rather than guessing at the layout.
const OrcaProgramID = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"

// OrcaDecoder is a registered-but-undecodable stub, an explicit
// instruction to be honest about gaps rather than guess at an unverified
// wire format.
type OrcaDecoder struct{}

// NewOrcaDecoder constructs the Orca stub decoder.
func NewOrcaDecoder() *OrcaDecoder { return &OrcaDecoder{} }

func (d *OrcaDecoder) Dex() domain.Dex   { return domain.DexOrca }
func (d *OrcaDecoder) ProgramID() string { return OrcaProgramID }

func (d *OrcaDecoder) LooksLikePoolCreation(logs []string) bool {
	for _, l := range logs {
		if strings.Contains(l, "InitializePool") || strings.Contains(l, "InitializeConfig") {
			return true
		}
	}
	return false
}

// ParseAccount always reports "not yet decodable".
func (d *OrcaDecoder) ParseAccount(address string, blob []byte, slot int64) (domain.PoolEvent, error) {
	return nil, nil
}

// ParseTransaction always reports "not yet decodable".
func (d *OrcaDecoder) ParseTransaction(signature string, accountKeys []string, instructions []solana.Instruction, slot int64) (domain.PoolEvent, error) {
	return nil, nil
}
