// Package decode implements the DEX account/instruction decoders: two real
// decoders (Raydium AMM v4, Pumpfun bonding curve) plus a
// registered-but-undecodable Orca stub.
package decode

import (
	"sniper/internal/domain"
	"sniper/internal/solana"
)

// Decoder is implemented by each DEX family's account/instruction decoder.
type Decoder interface {
	// ParseAccount interprets an account blob owned by this DEX's program.
	// Returns nil, nil when the blob is not (or no longer) a live pool —
	// not every account owned by a DEX program is a pool.
	ParseAccount(address string, blob []byte, slot int64) (domain.PoolEvent, error)

	// ParseTransaction interprets a parsed transaction's instructions,
	// returning the pool event they describe, or nil if none matched.
	ParseTransaction(signature string, accountKeys []string, instructions []solana.Instruction, slot int64) (domain.PoolEvent, error)

	// Dex identifies which DEX family this decoder serves.
	Dex() domain.Dex

	// ProgramID returns the base58 program address this decoder watches.
	ProgramID() string

	// LooksLikePoolCreation is the cheap log-text filter the ingestion
	// coordinator's WebSocket path uses before paying for a full
	// transaction fetch.
	LooksLikePoolCreation(logs []string) bool
}

// Registry maps program ID to the decoder that understands its accounts and
// instructions.
type Registry struct {
	byProgramID map[string]Decoder
	ordered     []Decoder
}

// NewRegistry builds a Registry from the given decoders.
func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{byProgramID: make(map[string]Decoder)}
	for _, d := range decoders {
		r.byProgramID[d.ProgramID()] = d
		r.ordered = append(r.ordered, d)
	}
	return r
}

// ByProgramID returns the decoder registered for a program ID, if any.
func (r *Registry) ByProgramID(programID string) (Decoder, bool) {
	d, ok := r.byProgramID[programID]
	return d, ok
}

// All returns every registered decoder, in registration order.
func (r *Registry) All() []Decoder {
	return r.ordered
}

// MatchLogs returns the first decoder whose LooksLikePoolCreation filter
// matches the given log lines, used by the WebSocket ingestion path.
func (r *Registry) MatchLogs(logs []string) (Decoder, bool) {
	for _, d := range r.ordered {
		if d.LooksLikePoolCreation(logs) {
			return d, true
		}
	}
	return nil, false
}
