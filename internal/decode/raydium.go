package decode

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"sniper/internal/addr"
	"sniper/internal/domain"
	"sniper/internal/solana"
)

// RaydiumAMMV4ProgramID is the canonical Raydium AMM v4 program address.
const RaydiumAMMV4ProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// raydiumPoolStateMinLen is the minimum fixed-layout record length for a
// Raydium AMM v4 pool-state account.
const raydiumPoolStateMinLen = 679

// Byte offsets within the Raydium AMM v4 pool-state account, little-endian.
// This layout is an external wire contract: the program
// defines it, this decoder only consumes it.
const (
	rayOffsetStatus      = 0
	rayOffsetBaseDecimal = 32
	rayOffsetQuoteDecimal = 40
	rayOffsetBaseVault   = 336
	rayOffsetQuoteVault  = 368
	rayOffsetBaseMint    = 400
	rayOffsetQuoteMint   = 432
	rayOffsetLPMint      = 464
	rayOffsetOpenTime    = 541
)

// raydiumInitialize2Discriminator is the 8-byte instruction-kind prefix for
// the INITIALIZE_2 instruction. As with the pool layout,
// this is an external wire constant, not something this decoder invents.
var raydiumInitialize2Discriminator = []byte{0xaf, 0xaf, 0x6d, 0x1f, 0x0d, 0x98, 0x9b, 0xed}

// raydiumLiveStatuses are the only pool-state status values representing a
// live pool.
var raydiumLiveStatuses = map[uint64]bool{1: true, 6: true}

// RaydiumDecoder decodes Raydium AMM v4 account state and instructions.
type RaydiumDecoder struct{}

// NewRaydiumDecoder constructs the Raydium AMM v4 decoder.
func NewRaydiumDecoder() *RaydiumDecoder { return &RaydiumDecoder{} }

func (d *RaydiumDecoder) Dex() domain.Dex       { return domain.DexRaydium }
func (d *RaydiumDecoder) ProgramID() string     { return RaydiumAMMV4ProgramID }

func (d *RaydiumDecoder) LooksLikePoolCreation(logs []string) bool {
	for _, l := range logs {
		if strings.Contains(l, "initialize2") || strings.Contains(l, "Initialize") || strings.Contains(l, "ray_log") {
			return true
		}
	}
	return false
}

// ParseAccount reads the fixed layout and yields NewPool only when status
// is {1,6}; other statuses are ignored (nil, nil).
func (d *RaydiumDecoder) ParseAccount(address string, blob []byte, slot int64) (domain.PoolEvent, error) {
	if len(blob) < raydiumPoolStateMinLen {
		return nil, nil
	}
	status := binary.LittleEndian.Uint64(blob[rayOffsetStatus : rayOffsetStatus+8])
	if !raydiumLiveStatuses[status] {
		return nil, nil
	}

	pool, err := addr.Parse(address)
	if err != nil {
		return nil, nil
	}
	baseVault, err1 := addr.FromBytes(blob[rayOffsetBaseVault : rayOffsetBaseVault+32])
	quoteVault, err2 := addr.FromBytes(blob[rayOffsetQuoteVault : rayOffsetQuoteVault+32])
	baseMint, err3 := addr.FromBytes(blob[rayOffsetBaseMint : rayOffsetBaseMint+32])
	quoteMint, err4 := addr.FromBytes(blob[rayOffsetQuoteMint : rayOffsetQuoteMint+32])
	lpMintBytes, err5 := addr.FromBytes(blob[rayOffsetLPMint : rayOffsetLPMint+32])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return nil, nil
	}

	var openTime *time.Time
	if len(blob) >= rayOffsetOpenTime+8 {
		ts := int64(binary.LittleEndian.Uint64(blob[rayOffsetOpenTime : rayOffsetOpenTime+8]))
		if ts > 0 {
			t := time.Unix(ts, 0)
			openTime = &t
		}
	}

	lpMint := lpMintBytes
	return domain.NewPoolEvent{
		Dex:        domain.DexRaydium,
		Mint:       baseMint,
		Pool:       pool,
		BaseMint:   baseMint,
		QuoteMint:  quoteMint,
		BaseVault:  baseVault,
		QuoteVault: quoteVault,
		LPMint:     &lpMint,
		OpenTime:   openTime,
		SlotNum:    slot,
		At:         time.Now(),
	}, nil
}

// ParseTransaction walks top-level instructions for an INITIALIZE_2 call
// against the Raydium AMM v4 program and reads its fixed account slots.
func (d *RaydiumDecoder) ParseTransaction(signature string, accountKeys []string, instructions []solana.Instruction, slot int64) (domain.PoolEvent, error) {
	for _, ix := range instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(accountKeys) {
			continue
		}
		if accountKeys[ix.ProgramIDIndex] != RaydiumAMMV4ProgramID {
			continue
		}
		data := decodeInstructionData(ix.Data)
		if len(data) < 8 || !bytes.Equal(data[:8], raydiumInitialize2Discriminator) {
			continue
		}
		if len(ix.Accounts) < 12 {
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

		pool, ok1 := resolve(4)
		lpMint, ok2 := resolve(7)
		coinMint, ok3 := resolve(8)
		pcMint, ok4 := resolve(9)
		coinVault, ok5 := resolve(10)
		pcVault, ok6 := resolve(11)
		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
			continue
		}

		return domain.NewPoolEvent{
			Dex:        domain.DexRaydium,
			Mint:       coinMint,
			Pool:       pool,
			BaseMint:   coinMint,
			QuoteMint:  pcMint,
			BaseVault:  coinVault,
			QuoteVault: pcVault,
			LPMint:     &lpMint,
			SlotNum:    slot,
			Sig:        signature,
			At:         time.Now(),
		}, nil
	}
	return nil, nil
}
