package domain

import "time"

// Critical risk-factor names. A failed factor with one of these names always
// fails the overall analysis, regardless of score.
const (
	CriticalHoneypot          = "honeypot"
	CriticalMintAuthority     = "mint_authority"
	CriticalHolderDistribution = "holder_distribution"
)

// HolderDistributionCriticalThreshold is the score below which a failed
// holder_distribution factor is treated as critical.
const HolderDistributionCriticalThreshold = -10

// RiskFactor records one scored input to a RiskAnalysis.
type RiskFactor struct {
	Name     string
	Score    int
	MaxScore int
	Passed   bool
	Details  string
}

// RiskAnalysis is the outcome of the risk analyzer's full evaluation of a
// candidate pool.
type RiskAnalysis struct {
	Score     int
	Passed    bool
	Factors   []RiskFactor
	Warnings  []string
	Timestamp time.Time
}

// IsCritical reports whether a factor with this name and score must veto the
// overall analysis when it has failed.
func IsCritical(name string, score int) bool {
	switch name {
	case CriticalHoneypot, CriticalMintAuthority:
		return true
	case CriticalHolderDistribution:
		return score < HolderDistributionCriticalThreshold
	default:
		return false
	}
}

// Normalize converts a raw sum of factor scores and max-scores into the
// [0,100] scale used by RiskAnalysis.Score:
// round(100 * sum(score) / max(sum(max_score), 1)), clamped to [0,100].
func Normalize(sumScore, sumMaxScore int) int {
	if sumMaxScore < 1 {
		sumMaxScore = 1
	}
	n := roundDiv(100*sumScore, sumMaxScore)
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func roundDiv(num, den int) int {
	if den == 0 {
		return 0
	}
	half := den / 2
	if (num < 0) != (den < 0) {
		return -((-num + half) / den)
	}
	return (num + half) / den
}

// BuildAnalysis assembles a RiskAnalysis from a set of factors following the
// pass rule: no critical factor failed AND normalized score >= 50.
func BuildAnalysis(factors []RiskFactor, warnings []string, now time.Time) RiskAnalysis {
	var sumScore, sumMax int
	criticalFailed := false
	for _, f := range factors {
		sumScore += f.Score
		sumMax += f.MaxScore
		if !f.Passed && IsCritical(f.Name, f.Score) {
			criticalFailed = true
		}
	}
	score := Normalize(sumScore, sumMax)
	return RiskAnalysis{
		Score:     score,
		Passed:    !criticalFailed && score >= 50,
		Factors:   factors,
		Warnings:  warnings,
		Timestamp: now,
	}
}
