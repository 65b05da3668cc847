package solana

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sniper/internal/cache"
	"sniper/internal/coalesce"
	"sniper/internal/ratelimit"
)

// ErrNoProviders is returned at construction when the provider list is
// empty, a fatal configuration error.
var ErrNoProviders = errors.New("solana: at least one RPC provider is required")

// ErrAllProvidersFailed is returned when every healthy provider's call
// failed and none remain to try.
var ErrAllProvidersFailed = errors.New("solana: all providers failed")

// DefaultMaxConsecutiveFailures is the consecutive-failure count after
// which a provider is marked unhealthy and enters cooldown.
const DefaultMaxConsecutiveFailures = 3

// DefaultCooldown is how long an unhealthy provider sits out before it is
// eligible for selection again.
const DefaultCooldown = 30 * time.Second

// ProviderConfig describes one upstream RPC endpoint at construction time.
type ProviderConfig struct {
	Name     string
	URL      string
	RPSLimit float64
	Priority int // 1 = highest
}

// providerRecord is the provider manager's internal-only bookkeeping entry
// for one provider: health state, consecutive failures, and cooldown.
type providerRecord struct {
	name     string
	url      string
	priority int
	client   RPCClient
	limiter  *ratelimit.Limiter

	mu                  sync.Mutex
	healthy             bool
	consecutiveFailures int
	lastFailureTS       time.Time
	lastSuccessTS       time.Time
}

func (p *providerRecord) markSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = true
	p.consecutiveFailures = 0
	p.lastSuccessTS = time.Now()
}

func (p *providerRecord) markFailure(maxFailures int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFailures++
	p.lastFailureTS = time.Now()
	if p.consecutiveFailures >= maxFailures {
		p.healthy = false
	}
}

func (p *providerRecord) isEligible(maxFailures int, cooldown time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return true
	}
	if time.Since(p.lastFailureTS) >= cooldown {
		p.healthy = true
		p.consecutiveFailures = 0
		return true
	}
	return false
}

// ManagerOptions configures the provider manager.
type ManagerOptions struct {
	Providers           []ProviderConfig
	NewClient           func(url string) RPCClient // overridable for tests
	CacheTTL            time.Duration
	MaxConsecutiveFails int
	Cooldown            time.Duration
}

// ProviderManager is a pool of RPC providers behind health tracking,
// capacity-aware failover, an account-read cache, and request coalescing.
type ProviderManager struct {
	providers   []*providerRecord
	maxFailures int
	cooldown    time.Duration

	accountCache *cache.TTLCache[string, *AccountInfo]
	coalescer    coalesce.Group[string, *AccountInfo]
}

// NewProviderManager builds a ProviderManager from opts. Returns
// ErrNoProviders if opts.Providers is empty.
func NewProviderManager(opts ManagerOptions) (*ProviderManager, error) {
	if len(opts.Providers) == 0 {
		return nil, ErrNoProviders
	}
	newClient := opts.NewClient
	if newClient == nil {
		newClient = func(url string) RPCClient { return NewHTTPClient(url) }
	}
	maxFailures := opts.MaxConsecutiveFails
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}

	pm := &ProviderManager{
		maxFailures:  maxFailures,
		cooldown:     cooldown,
		accountCache: cache.New[string, *AccountInfo](10000, ttl),
	}
	for _, pc := range opts.Providers {
		rps := pc.RPSLimit
		if rps <= 0 {
			rps = 10
		}
		pm.providers = append(pm.providers, &providerRecord{
			name:     pc.Name,
			url:      pc.URL,
			priority: pc.Priority,
			client:   newClient(pc.URL),
			limiter:  ratelimit.New(rps, rps),
			healthy:  true,
		})
	}
	return pm, nil
}

// eligibleSorted returns healthy (or cooldown-recovered) providers sorted by
// priority ascending, then by available tokens descending within the top
// priority band.
func (pm *ProviderManager) eligibleSorted() []*providerRecord {
	var eligible []*providerRecord
	for _, p := range pm.providers {
		if p.isEligible(pm.maxFailures, pm.cooldown) {
			eligible = append(eligible, p)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].priority != eligible[j].priority {
			return eligible[i].priority < eligible[j].priority
		}
		return eligible[i].limiter.AvailableTokens() > eligible[j].limiter.AvailableTokens()
	})
	return eligible
}

// withFailover runs fn against each eligible provider in selection order
// until one succeeds, recording health transitions as it goes.
func (pm *ProviderManager) withFailover(ctx context.Context, priority int, fn func(RPCClient) error) error {
	eligible := pm.eligibleSorted()
	if len(eligible) == 0 {
		return ErrAllProvidersFailed
	}

	var lastErr error
	for _, p := range eligible {
		if err := p.limiter.Acquire(ctx, priority); err != nil {
			return err
		}
		err := fn(p.client)
		if err == nil {
			p.markSuccess()
			return nil
		}
		p.markFailure(pm.maxFailures)
		lastErr = err
	}
	return fmt.Errorf("%w: last error: %v", ErrAllProvidersFailed, lastErr)
}

// GetAccountInfo is cache-first and coalesces concurrent requests for the
// same address.
func (pm *ProviderManager) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	if v, ok := pm.accountCache.Get(address); ok {
		return v, nil
	}
	info, err := pm.coalescer.Do(address, func() (*AccountInfo, error) {
		var result *AccountInfo
		err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
			r, err := c.GetAccountInfo(ctx, address)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		return result, err
	})
	if err != nil {
		return nil, err
	}
	pm.accountCache.Set(address, info)
	return info, nil
}

// GetMultipleAccountInfos resolves as many addresses as possible from cache
// and fetches the remainder (in batches of <=100, handled by the RPC
// client) through a single failover-wrapped call.
func (pm *ProviderManager) GetMultipleAccountInfos(ctx context.Context, addresses []string) ([]*AccountInfo, error) {
	out := make([]*AccountInfo, len(addresses))
	var missIdx []int
	var missAddrs []string

	for i, addr := range addresses {
		if v, ok := pm.accountCache.Get(addr); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missAddrs = append(missAddrs, addr)
	}
	if len(missAddrs) == 0 {
		return out, nil
	}

	var fetched []*AccountInfo
	err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
		r, err := c.GetMultipleAccounts(ctx, missAddrs)
		if err != nil {
			return err
		}
		fetched = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	for k, idx := range missIdx {
		if k < len(fetched) {
			out[idx] = fetched[k]
			pm.accountCache.Set(missAddrs[k], fetched[k])
		}
	}
	return out, nil
}

// GetParsedTransaction fetches a transaction by signature; results are
// never cached since they are slot-bound.
func (pm *ProviderManager) GetParsedTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var result *Transaction
	err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
		r, err := c.GetTransaction(ctx, signature)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// GetSignaturesForAddress is used by the polling ingestion fallback.
func (pm *ProviderManager) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	var result []SignatureInfo
	err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
		r, err := c.GetSignaturesForAddress(ctx, address, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// SendTransaction acquires with top priority so position-exit paths are
// never starved by background reads, and bypasses the cache entirely
// (writes are never cached).
func (pm *ProviderManager) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	var sig string
	err := pm.withFailover(ctx, ratelimit.PriorityTop, func(c RPCClient) error {
		s, err := c.SendTransaction(ctx, txBase64, skipPreflight)
		if err != nil {
			return err
		}
		sig = s
		return nil
	})
	return sig, err
}

// ConfirmTransaction polls signature status through the failover chain.
func (pm *ProviderManager) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	var ok bool
	err := pm.withFailover(ctx, ratelimit.PriorityHigh, func(c RPCClient) error {
		r, err := c.ConfirmTransaction(ctx, signature)
		if err != nil {
			return err
		}
		ok = r
		return nil
	})
	return ok, err
}

// SimulateTransaction runs a simulateTransaction RPC call, used by the
// risk analyzer's sell-simulation honeypot check.
func (pm *ProviderManager) SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error) {
	var result *SimulationResult
	err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
		r, err := c.SimulateTransaction(ctx, txBase64)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// GetTokenLargestAccounts is used by the risk analyzer's top-holder
// concentration check.
func (pm *ProviderManager) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	var result []TokenAccountBalance
	err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
		r, err := c.GetTokenLargestAccounts(ctx, mint)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// GetTokenSupply is used by the risk analyzer's LP-burn detection
// heuristic.
func (pm *ProviderManager) GetTokenSupply(ctx context.Context, mint string) (uint64, error) {
	var result uint64
	err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
		r, err := c.GetTokenSupply(ctx, mint)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// GetBalance reads a lamport balance, used by the risk analyzer's
// wrapped-SOL liquidity read and the orchestrator's auto-sweep.
func (pm *ProviderManager) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var result uint64
	err := pm.withFailover(ctx, ratelimit.PriorityNormal, func(c RPCClient) error {
		r, err := c.GetBalance(ctx, pubkey)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// GetLatestBlockhash is used by the bundle executor to assemble a fresh
// versioned transaction.
func (pm *ProviderManager) GetLatestBlockhash(ctx context.Context) (string, error) {
	var result string
	err := pm.withFailover(ctx, ratelimit.PriorityHigh, func(c RPCClient) error {
		r, err := c.GetLatestBlockhash(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// HealthSnapshot reports a point-in-time view of provider health.
type HealthSnapshot struct {
	Name                string
	Healthy             bool
	ConsecutiveFailures int
	AvailableTokens     float64
}

// Health returns a snapshot of every configured provider.
func (pm *ProviderManager) Health() []HealthSnapshot {
	out := make([]HealthSnapshot, 0, len(pm.providers))
	for _, p := range pm.providers {
		p.mu.Lock()
		out = append(out, HealthSnapshot{
			Name:                p.name,
			Healthy:             p.healthy,
			ConsecutiveFailures: p.consecutiveFailures,
			AvailableTokens:     p.limiter.AvailableTokens(),
		})
		p.mu.Unlock()
	}
	return out
}
