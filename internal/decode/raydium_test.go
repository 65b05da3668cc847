package decode

import (
	"encoding/binary"
	"testing"

	"sniper/internal/addr"
	"sniper/internal/domain"
)

func buildRaydiumFixture(status uint64, pool, baseVault, quoteVault, baseMint, quoteMint, lpMint addr.Address) []byte {
	blob := make([]byte, raydiumPoolStateMinLen)
	binary.LittleEndian.PutUint64(blob[rayOffsetStatus:], status)
	copy(blob[rayOffsetBaseVault:], baseVault[:])
	copy(blob[rayOffsetQuoteVault:], quoteVault[:])
	copy(blob[rayOffsetBaseMint:], baseMint[:])
	copy(blob[rayOffsetQuoteMint:], quoteMint[:])
	copy(blob[rayOffsetLPMint:], lpMint[:])
	_ = pool
	return blob
}

func TestRaydiumParseAccountRoundTrip(t *testing.T) {
	pool := addr.MustParse("11111111111111111111111111111111")
	baseVault := addr.Address{1}
	quoteVault := addr.Address{2}
	baseMint := addr.Address{3}
	quoteMint := addr.Address{4}
	lpMint := addr.Address{5}

	blob := buildRaydiumFixture(1, pool, baseVault, quoteVault, baseMint, quoteMint, lpMint)

	d := NewRaydiumDecoder()
	ev, err := d.ParseAccount(pool.String(), blob, 42)
	if err != nil {
		t.Fatalf("ParseAccount: %v", err)
	}
	np, ok := ev.(domain.NewPoolEvent)
	if !ok {
		t.Fatalf("expected NewPoolEvent, got %T", ev)
	}
	if np.BaseMint != baseMint || np.QuoteMint != quoteMint {
		t.Fatal("round-trip mismatch on mints")
	}
	if np.BaseVault != baseVault || np.QuoteVault != quoteVault {
		t.Fatal("round-trip mismatch on vaults")
	}
	if np.LPMint == nil || *np.LPMint != lpMint {
		t.Fatal("round-trip mismatch on lp mint")
	}
}

func TestRaydiumParseAccountIgnoresDeadStatus(t *testing.T) {
	pool := addr.MustParse("11111111111111111111111111111111")
	blob := buildRaydiumFixture(0, pool, addr.Address{}, addr.Address{}, addr.Address{}, addr.Address{}, addr.Address{})

	d := NewRaydiumDecoder()
	ev, err := d.ParseAccount(pool.String(), blob, 1)
	if err != nil {
		t.Fatalf("ParseAccount: %v", err)
	}
	if ev != nil {
		t.Fatal("expected nil event for non-live status")
	}
}

func TestRaydiumParseAccountRejectsShortBlob(t *testing.T) {
	d := NewRaydiumDecoder()
	ev, err := d.ParseAccount("11111111111111111111111111111111", make([]byte, 10), 1)
	if err != nil || ev != nil {
		t.Fatal("expected nil, nil for undersized blob")
	}
}
