package orchestrator

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"sniper/internal/addr"
	"sniper/internal/domain"
	"sniper/internal/execution"
	"sniper/internal/position"
	"sniper/internal/risk"
	"sniper/internal/solana"
	"sniper/internal/wallet"
)

// fakeRPCClient is a minimal solana.RPCClient good enough to drive a
// risk.Analyzer to a clean pass without honeypot simulation: a standard
// 82-byte mint with both authorities revoked, sufficient wrapped-SOL
// liquidity, and no holder concentration data.
type fakeRPCClient struct {
	mintBlob       []byte
	lamportBalance uint64
	tokenBalance   uint64
}

func (f *fakeRPCClient) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	return &solana.AccountInfo{Data: base64.StdEncoding.EncodeToString(f.mintBlob)}, nil
}
func (f *fakeRPCClient) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i := range out {
		out[i] = &solana.AccountInfo{Data: base64.StdEncoding.EncodeToString(f.mintBlob)}
	}
	return out, nil
}
func (f *fakeRPCClient) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	return nil, nil
}
func (f *fakeRPCClient) GetBlock(ctx context.Context, slot int64) (*solana.Block, error) { return nil, nil }
func (f *fakeRPCClient) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	return nil, nil
}
func (f *fakeRPCClient) GetSlot(ctx context.Context) (int64, error)                    { return 0, nil }
func (f *fakeRPCClient) GetBlockTime(ctx context.Context, slot int64) (*int64, error)   { return nil, nil }
func (f *fakeRPCClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) { return f.lamportBalance, nil }
func (f *fakeRPCClient) GetLatestBlockhash(ctx context.Context) (string, error)        { return solanago.Hash{}.String(), nil }
func (f *fakeRPCClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	return nil, nil
}
func (f *fakeRPCClient) GetTokenSupply(ctx context.Context, mint string) (uint64, error) { return 0, nil }
func (f *fakeRPCClient) SimulateTransaction(ctx context.Context, txBase64 string) (*solana.SimulationResult, error) {
	return &solana.SimulationResult{}, nil
}
func (f *fakeRPCClient) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	return "direct-sig", nil
}
func (f *fakeRPCClient) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	return true, nil
}

func standardMintBlob() []byte {
	// 82-byte base Mint layout: mint_authority option=0 (unset), then
	// supply/decimals, freeze_authority option=0 (unset) at offset 46.
	return make([]byte, 82)
}

func newTestOrchestrator(t *testing.T, lamports, tokens uint64) (*Orchestrator, *wallet.Wallet) {
	t.Helper()
	client := &fakeRPCClient{mintBlob: standardMintBlob(), lamportBalance: lamports, tokenBalance: tokens}
	pm, err := solana.NewProviderManager(solana.ManagerOptions{
		Providers: []solana.ProviderConfig{{Name: "fake", URL: "fake", Priority: 1, RPSLimit: 1000}},
		NewClient: func(url string) solana.RPCClient { return client },
	})
	if err != nil {
		t.Fatalf("NewProviderManager: %v", err)
	}

	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	w, err := wallet.FromBase58(key.String())
	if err != nil {
		t.Fatalf("wallet.FromBase58: %v", err)
	}

	riskAnalyzer := risk.New(risk.Options{
		RPC:                 pm,
		MinLiquiditySOL:     5,
		MaxTopHolderPercent: 30,
		MaxTaxPercent:       10,
		EnableHoneypotCheck: false,
	})
	executor := execution.New(execution.Options{DryRun: true})
	positions := position.New(position.Options{MaxConcurrentPositions: 5, MaxPositionSizeSOL: 10})

	o := New(Options{
		Risk:               riskAnalyzer,
		Executor:           executor,
		Positions:          positions,
		RPC:                pm,
		Wallet:             w,
		RiskScoreThreshold: 70,
		BuyAmountSOL:       0.1,
		MaxSlippageBPS:     500,
		TakeProfitPercent:  50,
		StopLossPercent:    20,
	})
	return o, w
}

// fakeAddress builds a deterministic, exactly-32-byte test address from a
// single distinguishing byte, avoiding the need to hand-pick base58 strings
// that happen to decode to the right length.
func fakeAddress(b byte) addr.Address {
	var raw [32]byte
	raw[31] = b
	a, err := addr.FromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return a
}

func testQuoteVault() addr.Address { return fakeAddress(0x05) }

func TestHandleNewPoolOpensPositionOnPass(t *testing.T) {
	o, _ := newTestOrchestrator(t, 20_000_000_000, 0)
	ev := domain.NewPoolEvent{
		Dex:        domain.DexPumpfun,
		Mint:       fakeAddress(0x06),
		Pool:       fakeAddress(0x07),
		BaseMint:   fakeAddress(0x06),
		QuoteMint:  addr.MustParse("So11111111111111111111111111111111111111112"),
		QuoteVault: testQuoteVault(),
		SlotNum:    1,
		At:         time.Now(),
	}

	o.handlePoolEvent(context.Background(), ev)

	pos, ok := o.opts.Positions.ForMint(ev.Mint)
	if !ok {
		t.Fatal("expected a position to be opened for a passing candidate")
	}
	if pos.Status != domain.PositionOpen {
		t.Fatalf("expected Open status, got %v", pos.Status)
	}
	if pos.SolSpent != 0.1 {
		t.Fatalf("expected sol_spent 0.1, got %v", pos.SolSpent)
	}
}

func TestHandleNewPoolSkipsWhenPositionAlreadyOpen(t *testing.T) {
	o, _ := newTestOrchestrator(t, 20_000_000_000, 0)
	mint := fakeAddress(0x06)
	if _, err := o.opts.Positions.OpenPosition(mint, testQuoteVault(), domain.DexPumpfun, 1.0, 0.1, 100, "tx", 50, 20); err != nil {
		t.Fatalf("seed OpenPosition: %v", err)
	}

	ev := domain.NewPoolEvent{Dex: domain.DexPumpfun, Mint: mint, Pool: testQuoteVault(), SlotNum: 1, At: time.Now()}
	o.handlePoolEvent(context.Background(), ev)

	snap := o.opts.Positions.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected no new position to be opened, got %d positions", len(snap))
	}
}

func TestHandleExitTriggerClosesOnZeroBalance(t *testing.T) {
	o, _ := newTestOrchestrator(t, 20_000_000_000, 0)
	mint := fakeAddress(0x08)
	pos, err := o.opts.Positions.OpenPosition(mint, testQuoteVault(), domain.DexPumpfun, 1.0, 0.1, 100, "tx", 50, 20)
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	trig := position.ExitTrigger{ID: pos.ID, Mint: mint, Pool: testQuoteVault(), Dex: domain.DexPumpfun, Reason: domain.ExitTakeProfit, Position: *pos}
	o.handleExitTrigger(context.Background(), trig)

	got, ok := o.opts.Positions.Get(pos.ID)
	if !ok {
		t.Fatal("expected position to still exist")
	}
	if got.Status != domain.PositionClosed {
		t.Fatalf("expected Closed after zero-balance exit, got %v", got.Status)
	}
	if got.ExitTx != "" {
		t.Fatalf("expected no exit tx on a zero-balance close, got %q", got.ExitTx)
	}
}
