package solana

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClient is a minimal in-memory RPCClient used to exercise the provider
// manager's failover and health logic without any network access.
type fakeClient struct {
	name    string
	fail    atomic.Bool
	calls   atomic.Int32
	account *AccountInfo
}

func (f *fakeClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errors.New(f.name + ": synthetic failure")
	}
	return f.account, nil
}
func (f *fakeClient) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error) {
	out := make([]*AccountInfo, len(pubkeys))
	for i := range out {
		out[i] = f.account
	}
	return out, nil
}
func (f *fakeClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) { return nil, nil }
func (f *fakeClient) GetBlock(ctx context.Context, slot int64) (*Block, error)                    { return nil, nil }
func (f *fakeClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	return nil, nil
}
func (f *fakeClient) GetSlot(ctx context.Context) (int64, error)                  { return 0, nil }
func (f *fakeClient) GetBlockTime(ctx context.Context, slot int64) (*int64, error) { return nil, nil }
func (f *fakeClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) { return 0, nil }
func (f *fakeClient) GetLatestBlockhash(ctx context.Context) (string, error)       { return "hash", nil }
func (f *fakeClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	return nil, nil
}
func (f *fakeClient) GetTokenSupply(ctx context.Context, mint string) (uint64, error) { return 0, nil }
func (f *fakeClient) SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error) {
	return nil, nil
}
func (f *fakeClient) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	return "sig", nil
}
func (f *fakeClient) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	return true, nil
}

func TestNewProviderManagerRequiresProviders(t *testing.T) {
	_, err := NewProviderManager(ManagerOptions{})
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestFailoverToSecondProvider(t *testing.T) {
	a := &fakeClient{name: "a", account: &AccountInfo{Owner: "A"}}
	b := &fakeClient{name: "b", account: &AccountInfo{Owner: "B"}}
	a.fail.Store(true)

	clients := map[string]RPCClient{"a": a, "b": b}
	pm, err := NewProviderManager(ManagerOptions{
		Providers: []ProviderConfig{
			{Name: "a", URL: "a", Priority: 1, RPSLimit: 100},
			{Name: "b", URL: "b", Priority: 1, RPSLimit: 100},
		},
		NewClient:           func(url string) RPCClient { return clients[url] },
		MaxConsecutiveFails: 3,
		Cooldown:            time.Hour,
	})
	if err != nil {
		t.Fatalf("NewProviderManager: %v", err)
	}

	info, err := pm.GetAccountInfo(context.Background(), "some-account")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info.Owner != "B" {
		t.Fatalf("expected failover to provider b, got owner=%s", info.Owner)
	}
}

func TestUnhealthyAfterConsecutiveFailures(t *testing.T) {
	a := &fakeClient{name: "a"}
	a.fail.Store(true)

	pm, err := NewProviderManager(ManagerOptions{
		Providers:           []ProviderConfig{{Name: "a", URL: "a", Priority: 1, RPSLimit: 100}},
		NewClient:           func(url string) RPCClient { return a },
		MaxConsecutiveFails: 2,
		Cooldown:            time.Hour,
	})
	if err != nil {
		t.Fatalf("NewProviderManager: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, _ = pm.GetAccountInfo(context.Background(), "x")
	}

	_, err = pm.GetAccountInfo(context.Background(), "x")
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed once unhealthy, got %v", err)
	}
}

func TestAccountInfoCachedAcrossCalls(t *testing.T) {
	a := &fakeClient{name: "a", account: &AccountInfo{Owner: "A"}}
	pm, err := NewProviderManager(ManagerOptions{
		Providers: []ProviderConfig{{Name: "a", URL: "a", Priority: 1, RPSLimit: 100}},
		NewClient: func(url string) RPCClient { return a },
		CacheTTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("NewProviderManager: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := pm.GetAccountInfo(context.Background(), "acct"); err != nil {
			t.Fatalf("GetAccountInfo: %v", err)
		}
	}
	if a.calls.Load() != 1 {
		t.Fatalf("expected one underlying call due to caching, got %d", a.calls.Load())
	}
}
