package execution

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"sniper/internal/addr"
	"sniper/internal/domain"
	"sniper/internal/solana"
	"sniper/internal/wallet"
)

// fakeRPCPort implements rpcPort with canned responses, modeled on the
// risk package's fake RPC clients: every call is driven by fields a test
// sets rather than by any real network round trip.
type fakeRPCPort struct {
	curveBlob    []byte
	userATAExists bool
	blockhash    string
	sendErr      error
	confirmed    bool
}

func (f *fakeRPCPort) GetMultipleAccountInfos(ctx context.Context, addresses []string) ([]*solana.AccountInfo, error) {
	var userATA *solana.AccountInfo
	if f.userATAExists {
		userATA = &solana.AccountInfo{Data: b64Blob([]byte{1})}
	}
	return []*solana.AccountInfo{{Data: b64Blob(f.curveBlob)}, userATA}, nil
}

func (f *fakeRPCPort) GetLatestBlockhash(ctx context.Context) (string, error) {
	return f.blockhash, nil
}

func (f *fakeRPCPort) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "sent-sig", nil
}

func (f *fakeRPCPort) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	return f.confirmed, nil
}

// fakeBlockEngine implements BlockEngineClient with a scripted outcome.
type fakeBlockEngine struct {
	sendErr      error
	statusByCall []string // one entry consumed per GetBundleStatuses call
	calls        int
}

func (f *fakeBlockEngine) SendBundle(ctx context.Context, txsBase64 []string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "bundle-id", nil
}

func (f *fakeBlockEngine) GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]string, error) {
	if f.calls >= len(f.statusByCall) {
		return []string{f.statusByCall[len(f.statusByCall)-1]}, nil
	}
	status := f.statusByCall[f.calls]
	f.calls++
	return []string{status}, nil
}

func (f *fakeBlockEngine) GetTipAccounts(ctx context.Context) ([]string, error) {
	return nil, nil
}

const zeroHash = "11111111111111111111111111111111"

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	w, err := wallet.FromBase58(key.String())
	if err != nil {
		t.Fatalf("wallet.FromBase58: %v", err)
	}
	return w
}

func testMintAddr() addr.Address { return addr.MustParse("So11111111111111111111111111111111111111112") }

// validBondingCurve builds a pumpfunBondingCurveMinLen-byte bonding-curve
// account blob with non-zero virtual reserves and Complete=false.
func validBondingCurve() []byte {
	blob := make([]byte, 49)
	binary.LittleEndian.PutUint64(blob[0:], 900_000_000_000) // virtual token reserves
	binary.LittleEndian.PutUint64(blob[8:], 35_000_000_000)   // virtual sol reserves
	binary.LittleEndian.PutUint64(blob[16:], 0)               // real token reserves
	binary.LittleEndian.PutUint64(blob[24:], 0)               // real sol reserves
	binary.LittleEndian.PutUint64(blob[32:], 1_000_000_000_000)
	blob[40] = 0
	return blob
}

func b64Blob(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestExecuteDryRunSkipsBuildAndSubmit(t *testing.T) {
	e := New(Options{DryRun: true})
	result := e.Execute(context.Background(), Request{Dex: domain.DexPumpfun, Mint: testMintAddr(), Side: SideBuy, AmountSOL: 0.1})
	if !result.Success || result.TxHash != "dry-run" {
		t.Fatalf("expected a successful dry-run stub result, got %+v", result)
	}
}

func TestExecuteRejectsRaydium(t *testing.T) {
	e := New(Options{})
	result := e.Execute(context.Background(), Request{Dex: domain.DexRaydium, Mint: testMintAddr(), Side: SideBuy, AmountSOL: 0.1})
	if result.Success || result.Error != ErrRaydiumUnsupported {
		t.Fatalf("expected ErrRaydiumUnsupported, got %+v", result)
	}
}

func TestExecuteBuyLandsViaBlockEngine(t *testing.T) {
	rpc := &fakeRPCPort{curveBlob: validBondingCurve(), blockhash: zeroHash}
	be := &fakeBlockEngine{statusByCall: []string{"landed"}}
	w := testWallet(t)
	e := New(Options{
		RPC: rpc, BlockEngine: be, Wallet: w,
		TipStrategy: TipFixed, TipLamports: 5000, MaxTipLamports: 10000,
		BundlePollInterval: time.Millisecond,
	})

	result := e.Execute(context.Background(), Request{Dex: domain.DexPumpfun, Mint: testMintAddr(), Side: SideBuy, AmountSOL: 0.1})
	if !result.Success || result.TxHash != "bundle-id" {
		t.Fatalf("expected a landed bundle result, got %+v", result)
	}
	if result.Price <= 0 {
		t.Fatalf("expected a positive fill price, got %v", result.Price)
	}
	if e.TipHistory().Len() != 1 {
		t.Fatalf("expected the landed tip to be recorded in history, got %d samples", e.TipHistory().Len())
	}
}

func TestExecuteSellFallsBackToDirectSendWithNoBlockEngine(t *testing.T) {
	rpc := &fakeRPCPort{curveBlob: validBondingCurve(), blockhash: zeroHash, confirmed: true}
	w := testWallet(t)
	e := New(Options{RPC: rpc, Wallet: w, TipStrategy: TipFixed, TipLamports: 1000, MaxTipLamports: 5000})

	result := e.Execute(context.Background(), Request{Dex: domain.DexPumpfun, Mint: testMintAddr(), Side: SideSell, AmountTokens: 1_000_000, SlippageBPS: 500})
	if !result.Success || result.TxHash != "sent-sig" {
		t.Fatalf("expected a successful direct send, got %+v", result)
	}
	if e.TipHistory().Len() != 0 {
		t.Fatal("expected no tip to be recorded when the block engine path was never used")
	}
}

func TestExecuteBundleFailureFallsBackToDirectSend(t *testing.T) {
	rpc := &fakeRPCPort{curveBlob: validBondingCurve(), blockhash: zeroHash, confirmed: true}
	be := &fakeBlockEngine{statusByCall: []string{"failed"}}
	w := testWallet(t)
	e := New(Options{RPC: rpc, BlockEngine: be, Wallet: w, TipStrategy: TipFixed, TipLamports: 1000, MaxTipLamports: 5000, BundlePollInterval: time.Millisecond})

	result := e.Execute(context.Background(), Request{Dex: domain.DexPumpfun, Mint: testMintAddr(), Side: SideBuy, AmountSOL: 0.1})
	if !result.Success || result.TxHash != "sent-sig" {
		t.Fatalf("expected the executor to fall back to a direct send after the bundle failed, got %+v", result)
	}
}

func TestComputeTipFixedStrategy(t *testing.T) {
	tip := ComputeTip(TipParams{Strategy: TipFixed, FixedLamports: 5000})
	if tip != 5000 {
		t.Fatalf("expected fixed tip of 5000, got %d", tip)
	}
}

func TestComputeTipDynamicFallsBackWithoutProfit(t *testing.T) {
	tip := ComputeTip(TipParams{Strategy: TipDynamic, FixedLamports: 1000, ExpectedProfitLamports: 0})
	if tip != 1000 {
		t.Fatalf("expected dynamic tip to fall back to fixed when profit is non-positive, got %d", tip)
	}
}

func TestComputeTipDynamicScalesWithProfitAndClampsToMax(t *testing.T) {
	tip := ComputeTip(TipParams{Strategy: TipDynamic, FixedLamports: 1000, TipPercent: 50, ExpectedProfitLamports: 1_000_000, MaxTipLamports: 10000})
	if tip != 10000 {
		t.Fatalf("expected dynamic tip to clamp to the configured max, got %d", tip)
	}
}

func TestComputeTipCompetitiveFallsBackWithoutCompetitors(t *testing.T) {
	tip := ComputeTip(TipParams{Strategy: TipCompetitive, FixedLamports: 2000})
	if tip != 2000 {
		t.Fatalf("expected competitive tip to fall back to fixed with no competitor data, got %d", tip)
	}
}

func TestComputeTipCompetitiveBeatsMaxCompetitorByUrgency(t *testing.T) {
	tip := ComputeTip(TipParams{
		Strategy:          TipCompetitive,
		FixedLamports:     1000,
		CompetitorTips:    []uint64{3000, 7000, 5000},
		UrgencyMultiplier: 1.25,
		MaxTipLamports:    100000,
	})
	if tip != 8750 {
		t.Fatalf("expected 7000*1.25=8750, got %d", tip)
	}
}

func TestComputeTipCompetitiveDefaultsUrgencyWhenInvalid(t *testing.T) {
	tip := ComputeTip(TipParams{
		Strategy:          TipCompetitive,
		FixedLamports:     1000,
		CompetitorTips:    []uint64{1000},
		UrgencyMultiplier: 3.0,
		MaxTipLamports:    100000,
	})
	if tip != 1100 {
		t.Fatalf("expected the invalid urgency multiplier to default to 1.1 (1000*1.1=1100), got %d", tip)
	}
}

func TestTipHistoryRequiresMinimumSamples(t *testing.T) {
	h := NewTipHistory()
	for i := 0; i < 4; i++ {
		h.RecordSuccess(10000)
	}
	if _, ok := h.Recommended(^uint64(0)); ok {
		t.Fatal("expected no recommendation before 5 samples are recorded")
	}
	h.RecordSuccess(10000)
	rec, ok := h.Recommended(^uint64(0))
	if !ok {
		t.Fatal("expected a recommendation once 5 samples are recorded")
	}
	if rec != 11000 {
		t.Fatalf("expected floor(10000*1.1)=11000, got %d", rec)
	}
}

func TestTipHistoryRecommendedClampsToMax(t *testing.T) {
	h := NewTipHistory()
	for i := 0; i < 5; i++ {
		h.RecordSuccess(100000)
	}
	rec, ok := h.Recommended(50000)
	if !ok || rec != 50000 {
		t.Fatalf("expected the recommendation to clamp to the 50000 ceiling, got %d ok=%v", rec, ok)
	}
}

func TestTipHistoryEvictsOldestBeyondCap(t *testing.T) {
	h := NewTipHistory()
	for i := 0; i < tipHistoryCap+3; i++ {
		h.RecordSuccess(1000)
	}
	if h.Len() != tipHistoryCap {
		t.Fatalf("expected the rolling window to cap at %d samples, got %d", tipHistoryCap, h.Len())
	}
}

func TestNormalizeBundleStatusMapsKnownStrings(t *testing.T) {
	cases := map[string]BundleStatus{
		"Landed":     BundleLanded,
		"confirmed":  BundleLanded,
		"finalized":  BundleLanded,
		"Failed":     BundleFailed,
		"rejected":   BundleFailed,
		"dropped":    BundleDropped,
		"Pending":    BundlePending,
		"processing": BundlePending,
		"gibberish":  BundleUnknown,
	}
	for raw, want := range cases {
		if got := NormalizeBundleStatus(raw); got != want {
			t.Errorf("NormalizeBundleStatus(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestBundleStatusString(t *testing.T) {
	if BundleLanded.String() != "landed" || BundleUnknown.String() != "unknown" {
		t.Fatalf("unexpected BundleStatus.String() output")
	}
}
