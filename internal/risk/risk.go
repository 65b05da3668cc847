// Package risk implements the three-phase candidate-pool risk analyzer:
// a fast quick_check gate, a deeper multi-factor analysis, and an optional
// sell simulation that probes for honeypot behavior.
package risk

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"sniper/internal/addr"
	"sniper/internal/cache"
	"sniper/internal/domain"
	"sniper/internal/solana"
	"sniper/internal/wallet"
)

// decodeBase64 decodes an account's base64 data field, tolerating the
// empty string an absent account returns.
func decodeBase64(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

const (
	analysisCacheTTL  = 5 * time.Minute
	blacklistCacheTTL = 24 * time.Hour
	whitelistCacheTTL = 30 * 24 * time.Hour
	blacklistCacheCap = 10000
	whitelistCacheCap = 1000
	analysisCacheCap  = 2000
)

// Options configures a new Analyzer, mirroring the RISK_* env vars.
type Options struct {
	RPC                 *solana.ProviderManager
	Wallet              *wallet.Wallet
	Logger              zerolog.Logger
	MinLiquiditySOL     float64
	MaxTopHolderPercent float64
	MaxTaxPercent       float64
	EnableHoneypotCheck bool
}

// Analyzer evaluates candidate pools for rug-pull and honeypot risk.
type Analyzer struct {
	rpc                 *solana.ProviderManager
	wallet              *wallet.Wallet
	log                 zerolog.Logger
	minLiquiditySOL     float64
	maxTopHolderPercent float64
	maxTaxPercent       float64
	enableHoneypotCheck bool

	cache     *cache.TTLCache[string, domain.RiskAnalysis]
	blacklist *cache.TTLCache[string, string]
	whitelist *cache.TTLCache[string, struct{}]
}

// New constructs an Analyzer.
func New(opts Options) *Analyzer {
	return &Analyzer{
		rpc:                 opts.RPC,
		wallet:              opts.Wallet,
		log:                 opts.Logger,
		minLiquiditySOL:     opts.MinLiquiditySOL,
		maxTopHolderPercent: opts.MaxTopHolderPercent,
		maxTaxPercent:       opts.MaxTaxPercent,
		enableHoneypotCheck: opts.EnableHoneypotCheck,
		cache:               cache.New[string, domain.RiskAnalysis](analysisCacheCap, analysisCacheTTL),
		blacklist:           cache.New[string, string](blacklistCacheCap, blacklistCacheTTL),
		whitelist:           cache.New[string, struct{}](whitelistCacheCap, whitelistCacheTTL),
	}
}

// Blacklist marks mint as risky for the next 24h, with reason
// recorded for diagnostics.
func (a *Analyzer) Blacklist(mint addr.Address, reason string) {
	a.blacklist.Set(mint.String(), reason)
}

// Whitelist marks mint as pre-approved, skipping quick_check's gating.
func (a *Analyzer) Whitelist(mint addr.Address) {
	a.whitelist.Set(mint.String(), struct{}{})
}

// Request carries everything the analyzer needs about a candidate pool;
// not every decoder fills every field (e.g. LPMint and Creator are
// Raydium/Pumpfun-specific), so missing fields degrade gracefully to
// skipped factors rather than errors.
type Request struct {
	Mint       addr.Address
	Pool       addr.Address
	Dex        domain.Dex
	BaseMint   addr.Address
	QuoteMint  addr.Address
	BaseVault  addr.Address
	QuoteVault addr.Address
	LPMint     *addr.Address
	Creator    *addr.Address
}

// QuickCheckResult is the fast-path viability verdict.
type QuickCheckResult struct {
	Viable bool
	Reason string
}

// QuickCheck runs a fast gate: blacklist short-circuit, whitelist bypass,
// then critical-extension and liquidity-floor checks, reading the mint
// account and quote vault through the provider manager.
func (a *Analyzer) QuickCheck(ctx context.Context, req Request) QuickCheckResult {
	mintKey := req.Mint.String()
	if reason, blacklisted := a.blacklist.Get(mintKey); blacklisted {
		return QuickCheckResult{Viable: false, Reason: "blacklisted: " + reason}
	}
	if _, whitelisted := a.whitelist.Get(mintKey); whitelisted {
		return QuickCheckResult{Viable: true, Reason: "whitelisted"}
	}

	mintInfo, err := a.rpc.GetAccountInfo(ctx, mintKey)
	if err != nil || mintInfo == nil {
		return QuickCheckResult{Viable: false, Reason: "mint account unavailable"}
	}
	blob, ok := decodeBase64(mintInfo.Data)
	if !ok {
		return QuickCheckResult{Viable: false, Reason: "mint account data undecodable"}
	}
	if exts, isToken2022 := ParseMintExtensions(blob); isToken2022 {
		if HasAny(exts, CriticalExtensions...) {
			return QuickCheckResult{Viable: false, Reason: "mint carries a critical Token-2022 extension"}
		}
	}

	liquiditySOL, err := a.quoteLiquiditySOL(ctx, req)
	if err != nil {
		return QuickCheckResult{Viable: false, Reason: "liquidity unavailable"}
	}
	if liquiditySOL < a.minLiquiditySOL {
		return QuickCheckResult{Viable: false, Reason: "liquidity below floor"}
	}

	return QuickCheckResult{Viable: true, Reason: "passed quick check"}
}

// Analyze runs the full three-phase pipeline and caches the result for
// analysisCacheTTL keyed by mint.
func (a *Analyzer) Analyze(ctx context.Context, req Request) domain.RiskAnalysis {
	mintKey := req.Mint.String()

	if reason, blacklisted := a.blacklist.Get(mintKey); blacklisted {
		return domain.BuildAnalysis([]domain.RiskFactor{
			failFactor(domain.CriticalHoneypot, -100, 0, "blacklisted: "+reason),
		}, nil, nowFunc())
	}
	if cached, ok := a.cache.Get(mintKey); ok {
		return cached
	}

	var warnings []string
	factors, criticalFailed := a.phase1(ctx, req, &warnings)
	if criticalFailed {
		analysis := domain.BuildAnalysis(factors, warnings, nowFunc())
		a.cache.Set(mintKey, analysis)
		return analysis
	}

	factors = append(factors, a.phase2(ctx, req, &warnings)...)

	if a.enableHoneypotCheck && req.Dex == domain.DexPumpfun {
		factors = append(factors, a.phase3(ctx, req, &warnings))
	}

	analysis := domain.BuildAnalysis(factors, warnings, nowFunc())
	a.cache.Set(mintKey, analysis)
	return analysis
}

// phase1 is the fast, parallelizable pass: mint/freeze authority, liquidity
// depth, and extension classification. It early-terminates, skipping
// phase2/phase3, when a critical factor fails.
func (a *Analyzer) phase1(ctx context.Context, req Request, warnings *[]string) (factors []domain.RiskFactor, criticalFailed bool) {
	var (
		mu              sync.Mutex
		authorityFactor domain.RiskFactor
		liquidityFactor domain.RiskFactor
		extensionFactor domain.RiskFactor
	)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		f := a.analyzeAuthorities(ctx, req.Mint)
		mu.Lock()
		authorityFactor = f
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		f := a.analyzeLiquidity(ctx, req)
		mu.Lock()
		liquidityFactor = f
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		f := a.analyzeExtensions(ctx, req.Mint)
		mu.Lock()
		extensionFactor = f
		mu.Unlock()
	}()
	wg.Wait()

	factors = []domain.RiskFactor{authorityFactor, liquidityFactor, extensionFactor}
	for _, f := range factors {
		if !f.Passed && domain.IsCritical(f.Name, f.Score) {
			criticalFailed = true
		}
	}
	return factors, criticalFailed
}

// phase2 is the deeper pass: holder concentration, LP lock, and (when a
// creator is known) creator self-holding.
func (a *Analyzer) phase2(ctx context.Context, req Request, warnings *[]string) []domain.RiskFactor {
	holderFactor, accounts, supply, _ := a.analyzeTopHolders(ctx, req.Mint)
	factors := []domain.RiskFactor{holderFactor}

	if req.LPMint != nil {
		factors = append(factors, a.analyzeLPLock(ctx, *req.LPMint))
	} else {
		*warnings = append(*warnings, "lp mint unknown, lp_locked factor skipped")
	}

	if req.Creator != nil {
		factors = append(factors, analyzeCreatorHolding(*req.Creator, req.Mint, accounts, supply))
	}

	return factors
}

// phase3 runs the sell simulation, the most expensive and most decisive
// check, gated behind RISK_ENABLE_HONEYPOT_CHECK and limited to Pumpfun
// since only that DEX's swap-instruction path is fully wired (Raydium swaps
// need Serum market accounts this repo's pool-event data doesn't carry).
func (a *Analyzer) phase3(ctx context.Context, req Request, warnings *[]string) domain.RiskFactor {
	if a.wallet == nil {
		*warnings = append(*warnings, "sell simulation skipped: no wallet configured")
		return passFactor(domain.CriticalHoneypot, honeypotHalfScore, WeightHoneypotPassed, "sell simulation skipped: no wallet configured")
	}

	mintPK, err := solanago.PublicKeyFromBase58(req.Mint.String())
	if err != nil {
		return failFactor(domain.CriticalHoneypot, 0, WeightHoneypotPassed, "mint address invalid for sell simulation")
	}
	blockhash, err := a.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		*warnings = append(*warnings, "sell simulation skipped: blockhash unavailable")
		return passFactor(domain.CriticalHoneypot, honeypotHalfScore, WeightHoneypotPassed, "sell simulation skipped: blockhash unavailable")
	}
	txBase64, err := buildSellSimTx(a.wallet, mintPK, blockhash)
	if err != nil {
		*warnings = append(*warnings, "sell simulation skipped: could not build transaction: "+err.Error())
		return passFactor(domain.CriticalHoneypot, honeypotHalfScore, WeightHoneypotPassed, "sell simulation skipped: could not build transaction")
	}
	result, err := a.rpc.SimulateTransaction(ctx, txBase64)
	if err != nil {
		*warnings = append(*warnings, "sell simulation rpc call failed: "+err.Error())
		return passFactor(domain.CriticalHoneypot, honeypotHalfScore, WeightHoneypotPassed, "sell simulation rpc call failed; half credit")
	}
	return interpretSimulation(result, a.maxTaxPercent)
}

// analyzeAuthorities scores the mint-authority and freeze-authority
// revocation factor, the single critical factor with name
// domain.CriticalMintAuthority.
func (a *Analyzer) analyzeAuthorities(ctx context.Context, mint addr.Address) domain.RiskFactor {
	info, err := a.rpc.GetAccountInfo(ctx, mint.String())
	if err != nil || info == nil {
		return failFactor(domain.CriticalMintAuthority, 0, WeightMintAuthorityRevoked+WeightFreezeAuthorityRevoked, "mint account unavailable")
	}
	blob, ok := decodeBase64(info.Data)
	if !ok {
		return failFactor(domain.CriticalMintAuthority, 0, WeightMintAuthorityRevoked+WeightFreezeAuthorityRevoked, "mint account data undecodable")
	}
	mintSet, freezeSet, ok := mintAuthorities(blob)
	if !ok {
		return failFactor(domain.CriticalMintAuthority, 0, WeightMintAuthorityRevoked+WeightFreezeAuthorityRevoked, "mint account too short to parse")
	}

	score := 0
	if !mintSet {
		score += WeightMintAuthorityRevoked
	}
	if !freezeSet {
		score += WeightFreezeAuthorityRevoked
	}
	passed := !mintSet
	details := "mint authority set; retained mint control is critical"
	if !mintSet {
		details = "mint authority revoked"
		if !freezeSet {
			details += ", freeze authority revoked"
		} else {
			details += ", freeze authority still set"
		}
	}

	return domain.RiskFactor{
		Name:     domain.CriticalMintAuthority,
		Score:    score,
		MaxScore: WeightMintAuthorityRevoked + WeightFreezeAuthorityRevoked,
		Passed:   passed,
		Details:  details,
	}
}

// analyzeExtensions classifies a mint as standard SPL or benign Token-2022,
// scoring either a flat "standard" bonus or a "benign extensions" bonus.
// Critical extensions are never reached here: quick_check already vetoes
// them before analyze() is called for a viable candidate, but Analyze can
// be invoked directly, so this still defends the axis.
func (a *Analyzer) analyzeExtensions(ctx context.Context, mint addr.Address) domain.RiskFactor {
	info, err := a.rpc.GetAccountInfo(ctx, mint.String())
	if err != nil || info == nil {
		return failFactor("token_program", 0, WeightStandardSPL, "mint account unavailable")
	}
	blob, ok := decodeBase64(info.Data)
	if !ok {
		return failFactor("token_program", 0, WeightStandardSPL, "mint account data undecodable")
	}

	exts, isToken2022 := ParseMintExtensions(blob)
	if !isToken2022 {
		return passFactor("token_program", WeightStandardSPL, WeightStandardSPL, "standard SPL Token mint")
	}
	if HasAny(exts, CriticalExtensions...) {
		return failFactor("token_program", 0, WeightToken2022Benign, "Token-2022 mint carries a critical extension")
	}
	if DefaultAccountStateFrozen(exts) {
		return failFactor("token_program", 0, WeightToken2022Benign, "Token-2022 mint freezes new accounts by default")
	}
	if bps, hasFee := TransferFeeBasisPoints(exts); hasFee && bps > 0 {
		return passFactor("token_program", WeightToken2022Benign/2, WeightToken2022Benign,
			"Token-2022 mint has a non-critical transfer fee extension")
	}
	return passFactor("token_program", WeightToken2022Benign, WeightToken2022Benign, "Token-2022 mint has only benign extensions")
}

// analyzeLiquidity scores the quote-side liquidity depth against
// LiquidityFullThresholdSOL, converting via quoteLiquiditySOL.
func (a *Analyzer) analyzeLiquidity(ctx context.Context, req Request) domain.RiskFactor {
	liquiditySOL, err := a.quoteLiquiditySOL(ctx, req)
	if err != nil {
		return failFactor("liquidity", 0, WeightLiquidityFull, "liquidity unavailable: "+err.Error())
	}
	if liquiditySOL >= LiquidityFullThresholdSOL {
		return passFactor("liquidity", WeightLiquidityFull, WeightLiquidityFull,
			formatSOL("liquidity depth sufficient", liquiditySOL))
	}
	prorated := int(WeightLiquidityFull * liquiditySOL / LiquidityFullThresholdSOL)
	if prorated < 0 {
		prorated = 0
	}
	return passFactor("liquidity", prorated, WeightLiquidityFull, formatSOL("liquidity below full threshold", liquiditySOL))
}

// quoteLiquiditySOL reads the quote vault's balance and converts it to a
// SOL-equivalent figure: wrapped-SOL vaults are read as raw lamports
// balances; anything else is treated as a stablecoin and
// converted via the crude fixed stableToSOLRatio.
func (a *Analyzer) quoteLiquiditySOL(ctx context.Context, req Request) (float64, error) {
	if req.QuoteVault.IsZero() {
		return 0, nil
	}
	if req.QuoteMint.String() == wsolMint || req.QuoteMint.IsZero() {
		lamports, err := a.rpc.GetBalance(ctx, req.QuoteVault.String())
		if err != nil {
			return 0, err
		}
		return float64(lamports) / 1e9, nil
	}

	info, err := a.rpc.GetAccountInfo(ctx, req.QuoteVault.String())
	if err != nil || info == nil {
		return 0, err
	}
	blob, ok := decodeBase64(info.Data)
	if !ok {
		return 0, nil
	}
	amount, ok := parseTokenAccountAmount(blob)
	if !ok {
		return 0, nil
	}
	return float64(amount) / 1e6 / stableToSOLRatio, nil
}

// wsolMint is the canonical wrapped-SOL mint address, grounded on the
// teacher's internal/discovery/dex_parser.go WSOL constant.
const wsolMint = "So11111111111111111111111111111111111111112"

func formatSOL(prefix string, sol float64) string {
	return fmt.Sprintf("%s (%.3f SOL)", prefix, sol)
}

var nowFunc = time.Now
