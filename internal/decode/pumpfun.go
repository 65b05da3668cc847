package decode

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"sniper/internal/addr"
	"sniper/internal/domain"
	"sniper/internal/solana"
)

// PumpfunProgramID is the canonical Pumpfun bonding-curve program address.
const PumpfunProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// pumpfunBondingCurveMinLen is the minimum fixed-layout record length for a
// Pumpfun bonding-curve account.
const pumpfunBondingCurveMinLen = 49

// Byte offsets within the bonding-curve account, little-endian.
const (
	pfOffsetVirtualTokenReserves = 0
	pfOffsetVirtualSolReserves   = 8
	pfOffsetRealTokenReserves    = 16
	pfOffsetRealSolReserves      = 24
	pfOffsetTokenTotalSupply     = 32
	pfOffsetComplete             = 40
)

// Protocol constants: a freshly-created curve always starts at these exact
// virtual reserves (30 SOL virtual / 1.073e15 virtual tokens).
const (
	PumpfunInitialVirtualSolReserves   uint64 = 30_000_000_000       // 30 SOL in lamports
	PumpfunInitialVirtualTokenReserves uint64 = 1_073_000_000_000_000 // 1.073e15
)

// FeeBPS is the Pumpfun swap fee in basis points used by the buy/sell math.
const FeeBPS = 100 // 1%

// Anchor-style 8-byte instruction discriminators (sighash of
// "global:<method>"), an external wire contract.
var (
	pumpfunCreateDiscriminator = []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
	pumpfunBuyDiscriminator    = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	pumpfunSellDiscriminator   = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
)

// PumpfunDecoder decodes the Pumpfun bonding-curve program.
type PumpfunDecoder struct{}

// NewPumpfunDecoder constructs the Pumpfun decoder.
func NewPumpfunDecoder() *PumpfunDecoder { return &PumpfunDecoder{} }

func (d *PumpfunDecoder) Dex() domain.Dex   { return domain.DexPumpfun }
func (d *PumpfunDecoder) ProgramID() string { return PumpfunProgramID }

func (d *PumpfunDecoder) LooksLikePoolCreation(logs []string) bool {
	for _, l := range logs {
		if strings.Contains(l, "Instruction: Create") || strings.Contains(l, "Instruction: Initialize") {
			return true
		}
	}
	return false
}

// BondingCurve is the parsed form of a Pumpfun bonding-curve account.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// ParseBondingCurve decodes the fixed layout without any pool-event
// classification logic, for reuse by the risk analyzer's price/liquidity
// reads and the position manager's price-refresh tick.
func ParseBondingCurve(blob []byte) (BondingCurve, bool) {
	if len(blob) < pumpfunBondingCurveMinLen {
		return BondingCurve{}, false
	}
	return BondingCurve{
		VirtualTokenReserves: binary.LittleEndian.Uint64(blob[pfOffsetVirtualTokenReserves:]),
		VirtualSolReserves:   binary.LittleEndian.Uint64(blob[pfOffsetVirtualSolReserves:]),
		RealTokenReserves:    binary.LittleEndian.Uint64(blob[pfOffsetRealTokenReserves:]),
		RealSolReserves:      binary.LittleEndian.Uint64(blob[pfOffsetRealSolReserves:]),
		TokenTotalSupply:     binary.LittleEndian.Uint64(blob[pfOffsetTokenTotalSupply:]),
		Complete:             blob[pfOffsetComplete] != 0,
	}, true
}

// ParseAccount detects a newly-created curve (exact protocol-constant
// virtual reserves) or a completed one (migration to Raydium). A mid-life
// curve (neither brand new nor complete) is not a pool-creation event and
// returns nil, nil.
func (d *PumpfunDecoder) ParseAccount(address string, blob []byte, slot int64) (domain.PoolEvent, error) {
	curve, ok := ParseBondingCurve(blob)
	if !ok {
		return nil, nil
	}

	pool, err := addr.Parse(address)
	if err != nil {
		return nil, nil
	}

	if curve.Complete {
		return domain.MigrationEvent{
			SourceDex:  domain.DexPumpfun,
			TargetDex:  domain.DexRaydium,
			SourcePool: pool,
			SlotNum:    slot,
			At:         time.Now(),
		}, nil
	}

	if curve.VirtualSolReserves == PumpfunInitialVirtualSolReserves &&
		curve.VirtualTokenReserves == PumpfunInitialVirtualTokenReserves {
		// The mint is not recoverable from the curve account alone; callers
		// that know the mint separately (e.g. via ParseTransaction) should
		// prefer that path. Here we at least report the pool.
		return domain.NewPoolEvent{
			Dex:     domain.DexPumpfun,
			Pool:    pool,
			SlotNum: slot,
			At:      time.Now(),
		}, nil
	}

	return nil, nil
}

// ParseTransaction matches the CREATE discriminator; fixed slots are mint
// (0) and bonding_curve (2).
func (d *PumpfunDecoder) ParseTransaction(signature string, accountKeys []string, instructions []solana.Instruction, slot int64) (domain.PoolEvent, error) {
	for _, ix := range instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(accountKeys) {
			continue
		}
		if accountKeys[ix.ProgramIDIndex] != PumpfunProgramID {
			continue
		}
		data := decodeInstructionData(ix.Data)
		if len(data) < 8 || !bytes.Equal(data[:8], pumpfunCreateDiscriminator) {
			continue
		}
		if len(ix.Accounts) < 3 {
			continue
		}

		resolve := func(slotIdx int) (addr.Address, bool) {
			accIdx := ix.Accounts[slotIdx]
			if accIdx < 0 || accIdx >= len(accountKeys) {
				return addr.Address{}, false
			}
			a, err := addr.Parse(accountKeys[accIdx])
			if err != nil {
				return addr.Address{}, false
			}
			return a, true
		}

		mint, ok1 := resolve(0)
		curve, ok2 := resolve(2)
		if !(ok1 && ok2) {
			continue
		}

		return domain.NewPoolEvent{
			Dex:      domain.DexPumpfun,
			Mint:     mint,
			Pool:     curve,
			BaseMint: mint,
			SlotNum:  slot,
			Sig:      signature,
			At:       time.Now(),
		}, nil
	}
	return nil, nil
}

// SpotPrice returns the instantaneous price in SOL per token (lamports per
// raw token unit, pre-decimal-correction — see internal/position for the
// decimal-correction boundary open question).
func SpotPrice(c BondingCurve) float64 {
	if c.VirtualTokenReserves == 0 {
		return 0
	}
	return float64(c.VirtualSolReserves) / float64(c.VirtualTokenReserves)
}

// BuyOutput computes the token output for spending x lamports. Reserve
// products can exceed 64 bits even though the reserves themselves fit, so
// the multiply-then-divide step runs through mulDivFloor's 128-bit-widened
// math instead of plain uint64 arithmetic.
func BuyOutput(c BondingCurve, xLamports uint64, feeBPS uint64) uint64 {
	xPrime := xLamports - mulDivFloor(xLamports, feeBPS, 10000)
	newVSol := c.VirtualSolReserves + xPrime
	if newVSol == 0 {
		return 0
	}
	newVTok := mulDivFloor(c.VirtualSolReserves, c.VirtualTokenReserves, newVSol)
	if newVTok > c.VirtualTokenReserves {
		return 0
	}
	return c.VirtualTokenReserves - newVTok
}

// SellOutput computes the net lamport output for selling y tokens, per
// widened-integer sell formula.
func SellOutput(c BondingCurve, yTokens uint64, feeBPS uint64) uint64 {
	newVTok := c.VirtualTokenReserves + yTokens
	if newVTok == 0 {
		return 0
	}
	newVSol := mulDivFloor(c.VirtualSolReserves, c.VirtualTokenReserves, newVTok)
	if newVSol > c.VirtualSolReserves {
		return 0
	}
	gross := c.VirtualSolReserves - newVSol
	return gross - mulDivFloor(gross, feeBPS, 10000)
}

// StateAfterBuy returns the bonding-curve reserves after a buy of
// xLamports, used by the buy-then-sell round-trip invariant in tests.
func StateAfterBuy(c BondingCurve, xLamports uint64, feeBPS uint64) BondingCurve {
	xPrime := xLamports - mulDivFloor(xLamports, feeBPS, 10000)
	newVSol := c.VirtualSolReserves + xPrime
	newVTok := mulDivFloor(c.VirtualSolReserves, c.VirtualTokenReserves, newVSol)
	out := c
	out.VirtualSolReserves = newVSol
	out.VirtualTokenReserves = newVTok
	return out
}

func mustPK(s string) solanago.PublicKey {
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		panic("decode: invalid hardcoded pumpfun account " + s)
	}
	return pk
}

// Fixed Pumpfun program accounts, an external wire contract this repo
// consumes rather than defines.
var (
	pumpfunProgramPK      = mustPK(PumpfunProgramID)
	PumpfunGlobalAccount  = mustPK("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	PumpfunFeeRecipient   = mustPK("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	PumpfunEventAuthority = mustPK("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

// DeriveBondingCurve returns the PDA for a mint's Pumpfun bonding-curve
// account: seeds ["bonding-curve", mint].
func DeriveBondingCurve(mint solanago.PublicKey) (solanago.PublicKey, error) {
	pda, _, err := solanago.FindProgramAddress([][]byte{[]byte("bonding-curve"), mint.Bytes()}, pumpfunProgramPK)
	return pda, err
}

func appendSwapData(discriminator []byte, a, b uint64) []byte {
	data := make([]byte, 0, 24)
	data = append(data, discriminator...)
	data = binary.LittleEndian.AppendUint64(data, a)
	data = binary.LittleEndian.AppendUint64(data, b)
	return data
}

// PumpfunBuyInstructionData builds a BUY instruction's data: discriminator +
// token_amount + max_sol_cost.
func PumpfunBuyInstructionData(tokenAmount, maxSolCost uint64) []byte {
	return appendSwapData(pumpfunBuyDiscriminator, tokenAmount, maxSolCost)
}

// PumpfunSellInstructionData builds a SELL instruction's data: discriminator
// + token_amount + min_sol_output.
func PumpfunSellInstructionData(tokenAmount, minSolOutput uint64) []byte {
	return appendSwapData(pumpfunSellDiscriminator, tokenAmount, minSolOutput)
}

// BuildSwapInstruction assembles a BUY or SELL instruction against the
// bonding curve, for either a real bundle-executor swap or the risk
// analyzer's nominal sell simulation.
func BuildSwapInstruction(data []byte, mint, bondingCurve, associatedBondingCurve, userATA, user solanago.PublicKey) solanago.Instruction {
	return &solanago.GenericInstruction{
		AccountValues: solanago.AccountMetaSlice{
			{PublicKey: PumpfunGlobalAccount, IsWritable: false, IsSigner: false},
			{PublicKey: PumpfunFeeRecipient, IsWritable: true, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: bondingCurve, IsWritable: true, IsSigner: false},
			{PublicKey: associatedBondingCurve, IsWritable: true, IsSigner: false},
			{PublicKey: userATA, IsWritable: true, IsSigner: false},
			{PublicKey: user, IsWritable: true, IsSigner: true},
			{PublicKey: solanago.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solanago.TokenProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solanago.SysVarRentPubkey, IsWritable: false, IsSigner: false},
			{PublicKey: PumpfunEventAuthority, IsWritable: false, IsSigner: false},
			{PublicKey: pumpfunProgramPK, IsWritable: false, IsSigner: false},
		},
		ProgID:    pumpfunProgramPK,
		DataBytes: data,
	}
}

// mulDivFloor computes floor(a*b/c) using a 128-bit-widened multiplication
// so that a*b never silently overflows 64 bits.
func mulDivFloor(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	hi, lo := bitsMul64(a, b)
	if hi >= c {
		return ^uint64(0) // quotient would overflow 64 bits; saturate
	}
	q, _ := bitsDiv64(hi, lo, c)
	return q
}
