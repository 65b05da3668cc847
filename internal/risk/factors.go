package risk

import "sniper/internal/domain"

func passFactor(name string, score, max int, details string) domain.RiskFactor {
	return domain.RiskFactor{Name: name, Score: score, MaxScore: max, Passed: true, Details: details}
}

func failFactor(name string, score, max int, details string) domain.RiskFactor {
	return domain.RiskFactor{Name: name, Score: score, MaxScore: max, Passed: false, Details: details}
}

// concentrationLevel classifies top-holder concentration into a coarse
// low/medium/high bucket for display.
func concentrationLevel(top1Pct, top5Pct float64) string {
	switch {
	case top1Pct <= 10 && top5Pct <= 30:
		return "low"
	case top1Pct <= 20 && top5Pct <= 50:
		return "medium"
	default:
		return "high"
	}
}
