package risk

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	"sniper/internal/addr"
	"sniper/internal/domain"
	"sniper/internal/solana"
)

// fakeRPC is a minimal solana.RPCClient whose account/balance/holder
// responses are driven entirely by the mintBlob/lamports/accounts fields a
// test sets, modeled on internal/solana's own provider_test.go fakeClient.
type fakeRPC struct {
	mintBlob       []byte
	vaultLamports  uint64
	largest        []solana.TokenAccountBalance
	supply         uint64
	simResult      *solana.SimulationResult
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	return &solana.AccountInfo{Data: b64(f.mintBlob)}, nil
}
func (f *fakeRPC) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i := range out {
		out[i] = &solana.AccountInfo{Data: b64(f.mintBlob)}
	}
	return out, nil
}
func (f *fakeRPC) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	return nil, nil
}
func (f *fakeRPC) GetBlock(ctx context.Context, slot int64) (*solana.Block, error) { return nil, nil }
func (f *fakeRPC) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	return nil, nil
}
func (f *fakeRPC) GetSlot(ctx context.Context) (int64, error)                  { return 0, nil }
func (f *fakeRPC) GetBlockTime(ctx context.Context, slot int64) (*int64, error) { return nil, nil }
func (f *fakeRPC) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	return f.vaultLamports, nil
}
func (f *fakeRPC) GetLatestBlockhash(ctx context.Context) (string, error) { return "11111111111111111111111111111111", nil }
func (f *fakeRPC) GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	return f.largest, nil
}
func (f *fakeRPC) GetTokenSupply(ctx context.Context, mint string) (uint64, error) { return f.supply, nil }
func (f *fakeRPC) SimulateTransaction(ctx context.Context, txBase64 string) (*solana.SimulationResult, error) {
	return f.simResult, nil
}
func (f *fakeRPC) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	return "sig", nil
}
func (f *fakeRPC) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	return true, nil
}

func b64(b []byte) string {
	if b == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

// mintBlob builds an 82-byte base SPL Mint account with the given
// authority presence flags.
func mintBlob(mintAuthoritySet, freezeAuthoritySet bool) []byte {
	blob := make([]byte, 82)
	if mintAuthoritySet {
		binary.LittleEndian.PutUint32(blob[0:], 1)
	}
	if freezeAuthoritySet {
		binary.LittleEndian.PutUint32(blob[46:], 1)
	}
	return blob
}

func newTestManager(rpcOverride *solana.ProviderManager) *Analyzer {
	return New(Options{
		RPC:                 rpcOverride,
		MinLiquiditySOL:     5,
		MaxTopHolderPercent: 30,
		MaxTaxPercent:       10,
		EnableHoneypotCheck: false,
	})
}

func providerFromFake(t *testing.T, f *fakeRPC) *solana.ProviderManager {
	t.Helper()
	pm, err := solana.NewProviderManager(solana.ManagerOptions{
		Providers: []solana.ProviderConfig{{Name: "fake", URL: "fake", Priority: 1, RPSLimit: 1000}},
		NewClient: func(url string) solana.RPCClient { return f },
	})
	if err != nil {
		t.Fatalf("NewProviderManager: %v", err)
	}
	return pm
}

func testMint() addr.Address { return addr.MustParse("So11111111111111111111111111111111111111112") }
func testVault() addr.Address {
	var raw [32]byte
	raw[31] = 0x09
	a, _ := addr.FromBytes(raw[:])
	return a
}

func TestAnalyzeAuthoritiesRevokedPasses(t *testing.T) {
	f := &fakeRPC{mintBlob: mintBlob(false, false)}
	a := newTestManager(providerFromFake(t, f))
	factor := a.analyzeAuthorities(context.Background(), testMint())
	if !factor.Passed {
		t.Fatalf("expected revoked authorities to pass, got %+v", factor)
	}
	if factor.Score != WeightMintAuthorityRevoked+WeightFreezeAuthorityRevoked {
		t.Fatalf("expected full authority score, got %d", factor.Score)
	}
}

func TestAnalyzeAuthoritiesSetIsCriticalFailure(t *testing.T) {
	f := &fakeRPC{mintBlob: mintBlob(true, true)}
	a := newTestManager(providerFromFake(t, f))
	factor := a.analyzeAuthorities(context.Background(), testMint())
	if factor.Passed {
		t.Fatal("expected a live mint authority to fail the factor")
	}
	if !domain.IsCritical(factor.Name, factor.Score) {
		t.Fatal("expected mint_authority to be a critical factor regardless of score")
	}
}

func TestAnalyzeExtensionsStandardSPL(t *testing.T) {
	f := &fakeRPC{mintBlob: mintBlob(false, false)}
	a := newTestManager(providerFromFake(t, f))
	factor := a.analyzeExtensions(context.Background(), testMint())
	if !factor.Passed || factor.Score != WeightStandardSPL {
		t.Fatalf("expected standard SPL pass at full weight, got %+v", factor)
	}
}

func TestQuoteLiquiditySOLReadsWrappedSolBalance(t *testing.T) {
	f := &fakeRPC{vaultLamports: 12_000_000_000}
	a := newTestManager(providerFromFake(t, f))
	req := Request{QuoteMint: testMint(), QuoteVault: testVault()}
	sol, err := a.quoteLiquiditySOL(context.Background(), req)
	if err != nil {
		t.Fatalf("quoteLiquiditySOL: %v", err)
	}
	if sol != 12.0 {
		t.Fatalf("expected 12.0 SOL, got %v", sol)
	}
}

func TestAnalyzeFullPassFlow(t *testing.T) {
	f := &fakeRPC{
		mintBlob:      mintBlob(false, false),
		vaultLamports: 20_000_000_000,
	}
	a := newTestManager(providerFromFake(t, f))
	req := Request{
		Mint:       testMint(),
		QuoteMint:  testMint(),
		QuoteVault: testVault(),
		Dex:        domain.DexPumpfun,
	}
	analysis := a.Analyze(context.Background(), req)
	if !analysis.Passed {
		t.Fatalf("expected a clean candidate to pass, got %+v", analysis)
	}
	if analysis.Score < 50 {
		t.Fatalf("expected score >= 50, got %d", analysis.Score)
	}
}

func TestAnalyzeRejectsLiveMintAuthority(t *testing.T) {
	f := &fakeRPC{
		mintBlob:      mintBlob(true, false),
		vaultLamports: 20_000_000_000,
	}
	a := newTestManager(providerFromFake(t, f))
	req := Request{Mint: testMint(), QuoteMint: testMint(), QuoteVault: testVault(), Dex: domain.DexPumpfun}
	analysis := a.Analyze(context.Background(), req)
	if analysis.Passed {
		t.Fatal("expected a live mint authority to veto the analysis")
	}
}

func TestAnalyzeCachesResult(t *testing.T) {
	f := &fakeRPC{mintBlob: mintBlob(false, false), vaultLamports: 20_000_000_000}
	a := newTestManager(providerFromFake(t, f))
	req := Request{Mint: testMint(), QuoteMint: testMint(), QuoteVault: testVault(), Dex: domain.DexPumpfun}

	first := a.Analyze(context.Background(), req)
	second := a.Analyze(context.Background(), req)
	if first.Score != second.Score || first.Timestamp != second.Timestamp {
		t.Fatal("expected the second Analyze call to return the cached result unchanged")
	}
}

func TestBlacklistShortCircuitsAnalyze(t *testing.T) {
	f := &fakeRPC{mintBlob: mintBlob(false, false), vaultLamports: 20_000_000_000}
	a := newTestManager(providerFromFake(t, f))
	mint := testMint()
	a.Blacklist(mint, "known scam")

	analysis := a.Analyze(context.Background(), Request{Mint: mint, QuoteMint: mint, QuoteVault: testVault()})
	if analysis.Passed {
		t.Fatal("expected a blacklisted mint to never pass")
	}
}

func TestWhitelistBypassesQuickCheck(t *testing.T) {
	f := &fakeRPC{mintBlob: mintBlob(true, true), vaultLamports: 0}
	a := newTestManager(providerFromFake(t, f))
	mint := testMint()
	a.Whitelist(mint)

	res := a.QuickCheck(context.Background(), Request{Mint: mint, QuoteMint: mint, QuoteVault: testVault()})
	if !res.Viable {
		t.Fatalf("expected whitelist to bypass quick_check gating, got %+v", res)
	}
}

func TestQuickCheckRejectsBelowLiquidityFloor(t *testing.T) {
	f := &fakeRPC{mintBlob: mintBlob(false, false), vaultLamports: 1_000_000_000}
	a := newTestManager(providerFromFake(t, f))
	mint := testMint()
	res := a.QuickCheck(context.Background(), Request{Mint: mint, QuoteMint: mint, QuoteVault: testVault()})
	if res.Viable {
		t.Fatalf("expected 1 SOL liquidity to fail the 5 SOL floor, got %+v", res)
	}
}

func TestInterpretSimulationCleanPass(t *testing.T) {
	factor := interpretSimulation(&solana.SimulationResult{}, 10)
	if !factor.Passed || factor.Score != honeypotFullScore {
		t.Fatalf("expected a clean simulation to pass at full score, got %+v", factor)
	}
}

func TestInterpretSimulationHighTaxIsHoneypot(t *testing.T) {
	factor := interpretSimulation(&solana.SimulationResult{Logs: []string{"Program log: tax: 75"}}, 10)
	if factor.Passed {
		t.Fatalf("expected >50%% tax to be treated as a honeypot, got %+v", factor)
	}
}

func TestInterpretSimulationModerateTaxOverLimit(t *testing.T) {
	factor := interpretSimulation(&solana.SimulationResult{Logs: []string{"Program log: fee: 25"}}, 10)
	if factor.Passed {
		t.Fatalf("expected tax over the configured max to fail, got %+v", factor)
	}
}

func TestInterpretSimulationBlockedIsHoneypot(t *testing.T) {
	factor := interpretSimulation(&solana.SimulationResult{Err: "transaction denied by program"}, 10)
	if factor.Passed {
		t.Fatal("expected a denied simulation to fail as a honeypot")
	}
}

func TestInterpretSimulationInsufficientFundsIsInconclusive(t *testing.T) {
	factor := interpretSimulation(&solana.SimulationResult{Err: "insufficient funds for rent"}, 10)
	if !factor.Passed || factor.Score != honeypotHalfScore {
		t.Fatalf("expected insufficient-funds to pass at half credit, got %+v", factor)
	}
}

func TestNowFuncIsReplaceable(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = old }()

	f := &fakeRPC{mintBlob: mintBlob(false, false), vaultLamports: 20_000_000_000}
	a := newTestManager(providerFromFake(t, f))
	analysis := a.Analyze(context.Background(), Request{Mint: testMint(), QuoteMint: testMint(), QuoteVault: testVault(), Dex: domain.DexPumpfun})
	if !analysis.Timestamp.Equal(fixed) {
		t.Fatalf("expected analysis timestamp to use the injected clock, got %v", analysis.Timestamp)
	}
}
