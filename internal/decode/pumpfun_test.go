package decode

import (
	"testing"

	"sniper/internal/domain"
)

func sampleCurve() BondingCurve {
	return BondingCurve{
		VirtualSolReserves:   PumpfunInitialVirtualSolReserves,
		VirtualTokenReserves: PumpfunInitialVirtualTokenReserves,
	}
}

func TestSpotPriceAtGenesis(t *testing.T) {
	c := sampleCurve()
	p := SpotPrice(c)
	if p <= 0 {
		t.Fatalf("expected positive spot price, got %v", p)
	}
}

func TestBuyThenSellNeverProfitsFromFees(t *testing.T) {
	c := sampleCurve()
	const x = 1_000_000_000 // 1 SOL

	tokensOut := BuyOutput(c, x, FeeBPS)
	if tokensOut == 0 {
		t.Fatal("expected nonzero token output")
	}

	after := StateAfterBuy(c, x, FeeBPS)
	solBack := SellOutput(after, tokensOut, FeeBPS)

	if solBack >= x {
		t.Fatalf("buy-then-sell must lose value to fees: got back %d from %d", solBack, x)
	}
}

func TestBuyOutputIncreasesWithInput(t *testing.T) {
	c := sampleCurve()
	small := BuyOutput(c, 100_000_000, FeeBPS)
	large := BuyOutput(c, 1_000_000_000, FeeBPS)
	if large <= small {
		t.Fatalf("expected larger input to yield larger output: small=%d large=%d", small, large)
	}
}

func TestParseBondingCurveRejectsShortBlob(t *testing.T) {
	if _, ok := ParseBondingCurve(make([]byte, 10)); ok {
		t.Fatal("expected short blob to be rejected")
	}
}

func TestParseAccountDetectsCompletion(t *testing.T) {
	blob := make([]byte, pumpfunBondingCurveMinLen)
	blob[pfOffsetComplete] = 1
	d := NewPumpfunDecoder()
	ev, err := d.ParseAccount("11111111111111111111111111111111", blob, 1)
	if err != nil {
		t.Fatalf("ParseAccount: %v", err)
	}
	if _, ok := ev.(domain.MigrationEvent); !ok {
		t.Fatalf("expected a MigrationEvent, got %T", ev)
	}
}
