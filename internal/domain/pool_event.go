// Package domain holds the shared value types that flow between components:
// pool events emitted by ingestion, risk analyses produced by the analyzer,
// and the positions tracked once a buy lands.
package domain

import (
	"time"

	"sniper/internal/addr"
)

// Dex enumerates the decentralized exchange families the decoders understand.
type Dex int

const (
	DexUnknown Dex = iota
	DexRaydium
	DexPumpfun
	DexOrca
)

func (d Dex) String() string {
	switch d {
	case DexRaydium:
		return "raydium"
	case DexPumpfun:
		return "pumpfun"
	case DexOrca:
		return "orca"
	default:
		return "unknown"
	}
}

// PoolEvent is a closed sum type over the events a decoder can emit. The
// unexported marker method keeps it closed: only this package can produce
// implementations, so a switch over the concrete type is exhaustive.
type PoolEvent interface {
	poolEvent()
	Slot() int64
	Signature() string
	Timestamp() time.Time
}

// NewPoolEvent announces a freshly created or freshly observed live pool.
type NewPoolEvent struct {
	Dex        Dex
	Mint       addr.Address
	Pool       addr.Address
	BaseMint   addr.Address
	QuoteMint  addr.Address
	BaseVault  addr.Address
	QuoteVault addr.Address
	LPMint     *addr.Address
	OpenTime   *time.Time
	SlotNum    int64
	Sig        string
	At         time.Time
}

func (NewPoolEvent) poolEvent()             {}
func (e NewPoolEvent) Slot() int64          { return e.SlotNum }
func (e NewPoolEvent) Signature() string    { return e.Sig }
func (e NewPoolEvent) Timestamp() time.Time { return e.At }

// MigrationEvent announces a pool moving from one DEX to another, most
// commonly a Pumpfun bonding curve completing and graduating to Raydium.
type MigrationEvent struct {
	SourceDex  Dex
	TargetDex  Dex
	Mint       addr.Address
	SourcePool addr.Address
	TargetPool addr.Address
	SlotNum    int64
	Sig        string
	At         time.Time
}

func (MigrationEvent) poolEvent()             {}
func (e MigrationEvent) Slot() int64          { return e.SlotNum }
func (e MigrationEvent) Signature() string    { return e.Sig }
func (e MigrationEvent) Timestamp() time.Time { return e.At }

// LiquidityAddedEvent is defined for completeness with spec but is not
// consumed by the core pipeline; no decoder currently emits it.
type LiquidityAddedEvent struct {
	Dex        Dex
	Mint       addr.Address
	Pool       addr.Address
	BaseAmount uint64
	QuoteAmount uint64
	SlotNum    int64
	Sig        string
	At         time.Time
}

func (LiquidityAddedEvent) poolEvent()             {}
func (e LiquidityAddedEvent) Slot() int64          { return e.SlotNum }
func (e LiquidityAddedEvent) Signature() string    { return e.Sig }
func (e LiquidityAddedEvent) Timestamp() time.Time { return e.At }
