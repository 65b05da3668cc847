package risk

import (
	"context"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"sniper/internal/addr"
	"sniper/internal/domain"
	"sniper/internal/solana"
)

// topHolders reads getTokenLargestAccounts + getTokenSupply once and
// computes top1/top5/top10 concentration percentages.
func (a *Analyzer) topHolders(ctx context.Context, mint addr.Address) (accounts []solana.TokenAccountBalance, supply uint64, top1Pct, top5Pct, top10Pct float64, err error) {
	accounts, err = a.rpc.GetTokenLargestAccounts(ctx, mint.String())
	if err != nil {
		return nil, 0, 0, 0, 0, err
	}
	supply, err = a.rpc.GetTokenSupply(ctx, mint.String())
	if err != nil {
		return nil, 0, 0, 0, 0, err
	}
	if supply == 0 || len(accounts) == 0 {
		return accounts, supply, 0, 0, 0, nil
	}

	var t1, t5, t10 uint64
	for i, acc := range accounts {
		switch {
		case i == 0:
			t1 += acc.Amount
			t5 += acc.Amount
			t10 += acc.Amount
		case i < 5:
			t5 += acc.Amount
			t10 += acc.Amount
		case i < 10:
			t10 += acc.Amount
		}
	}
	top1Pct = 100 * float64(t1) / float64(supply)
	top5Pct = 100 * float64(t5) / float64(supply)
	top10Pct = 100 * float64(t10) / float64(supply)
	return accounts, supply, top1Pct, top5Pct, top10Pct, nil
}

// analyzeTopHolders produces the holder_distribution factor; its score is
// the top-holder-overrun penalty (0 when within bound, down to
// MaxTopHolderPenalty), which is exactly the axis domain.IsCritical checks
// against HolderDistributionCriticalThreshold.
func (a *Analyzer) analyzeTopHolders(ctx context.Context, mint addr.Address) (domain.RiskFactor, []solana.TokenAccountBalance, uint64, float64) {
	accounts, supply, top1Pct, top5Pct, top10Pct, err := a.topHolders(ctx, mint)
	if err != nil {
		return failFactor(domain.CriticalHolderDistribution, MaxTopHolderPenalty, 0, "top holders unavailable: "+err.Error()), nil, 0, 0
	}
	if supply == 0 || len(accounts) == 0 {
		return passFactor(domain.CriticalHolderDistribution, 0, 0, "no holder data (new or zero-supply mint)"), accounts, supply, 0
	}

	penalty := 0
	if top1Pct > a.maxTopHolderPercent {
		penalty = -int(top1Pct - a.maxTopHolderPercent)
		if penalty < MaxTopHolderPenalty {
			penalty = MaxTopHolderPenalty
		}
	}

	level := concentrationLevel(top1Pct, top5Pct)
	details := fmt.Sprintf("top1=%.1f%% top5=%.1f%% top10=%.1f%% (%s)", top1Pct, top5Pct, top10Pct, level)
	passed := penalty >= domain.HolderDistributionCriticalThreshold

	return domain.RiskFactor{
		Name:     domain.CriticalHolderDistribution,
		Score:    penalty,
		MaxScore: 0,
		Passed:   passed,
		Details:  details,
	}, accounts, supply, top1Pct
}

// analyzeLPLock heuristically treats high concentration of LP tokens in a
// single holder as a locker or a burn, since this repo has no locker
// program registry to consult; this is the observable proxy available from
// on-chain reads alone.
func (a *Analyzer) analyzeLPLock(ctx context.Context, lpMint addr.Address) domain.RiskFactor {
	accounts, supply, top1Pct, _, _, err := a.topHolders(ctx, lpMint)
	if err != nil {
		return failFactor("lp_locked", 0, WeightLPLocked+WeightLPLockDurationBonus, "lp holder data unavailable: "+err.Error())
	}
	if supply == 0 || len(accounts) == 0 {
		return failFactor("lp_locked", 0, WeightLPLocked+WeightLPLockDurationBonus, "lp supply or holder data unavailable")
	}

	switch {
	case top1Pct >= 90:
		return passFactor("lp_locked", WeightLPLocked+WeightLPLockDurationBonus, WeightLPLocked+WeightLPLockDurationBonus,
			fmt.Sprintf("%.1f%% of LP concentrated in top holder (locked or burned)", top1Pct))
	case top1Pct >= 50:
		prorated := int(float64(WeightLPLocked) * top1Pct / 100)
		return passFactor("lp_locked", prorated, WeightLPLocked+WeightLPLockDurationBonus,
			fmt.Sprintf("%.1f%% of LP concentrated (partial lock)", top1Pct))
	default:
		return failFactor("lp_locked", 0, WeightLPLocked+WeightLPLockDurationBonus,
			fmt.Sprintf("only %.1f%% of LP concentrated (unlocked)", top1Pct))
	}
}

// analyzeCreatorHolding detects whether the creator's own associated token
// account appears among the already-fetched top-holder accounts.
func analyzeCreatorHolding(creator, mint addr.Address, accounts []solana.TokenAccountBalance, supply uint64) domain.RiskFactor {
	ownerPK, err := solanago.PublicKeyFromBase58(creator.String())
	if err != nil {
		return failFactor("creator_holding", 0, 0, "creator address invalid")
	}
	mintPK, err := solanago.PublicKeyFromBase58(mint.String())
	if err != nil {
		return failFactor("creator_holding", 0, 0, "mint address invalid")
	}
	ata, _, err := solanago.FindAssociatedTokenAddress(ownerPK, mintPK)
	if err != nil {
		return failFactor("creator_holding", 0, 0, "could not derive creator's associated token account")
	}
	ataStr := ata.String()

	for i, acc := range accounts {
		if acc.Address != ataStr {
			continue
		}
		pct := 0.0
		if supply > 0 {
			pct = 100 * float64(acc.Amount) / float64(supply)
		}
		if i == 0 {
			return failFactor("creator_holding", -10, 0, fmt.Sprintf("creator holds %.1f%% and is the top holder", pct))
		}
		return passFactor("creator_holding", -2, 0, fmt.Sprintf("creator holds %.1f%% (rank %d)", pct, i+1))
	}
	return passFactor("creator_holding", 0, 0, "creator not among top holders")
}
