package domain

import (
	"testing"
	"time"
)

func fixedTime() time.Time { return time.Unix(1700000000, 0) }

func TestBuildAnalysisPassRule(t *testing.T) {
	factors := []RiskFactor{
		{Name: "mint_authority_revoked", Score: 20, MaxScore: 20, Passed: true},
		{Name: "freeze_authority_revoked", Score: 15, MaxScore: 15, Passed: true},
		{Name: "liquidity", Score: 10, MaxScore: 10, Passed: true},
	}
	a := BuildAnalysis(factors, nil, fixedTime())
	if !a.Passed {
		t.Fatalf("expected pass, got score=%d passed=%v", a.Score, a.Passed)
	}
	if a.Score != 100 {
		t.Fatalf("expected score 100, got %d", a.Score)
	}
}

func TestBuildAnalysisCriticalFailureVetoes(t *testing.T) {
	factors := []RiskFactor{
		{Name: CriticalHoneypot, Score: -50, MaxScore: 15, Passed: false},
		{Name: "liquidity", Score: 10, MaxScore: 10, Passed: true},
	}
	a := BuildAnalysis(factors, nil, fixedTime())
	if a.Passed {
		t.Fatal("critical failure must veto pass regardless of score")
	}
}

func TestNormalizeClamps(t *testing.T) {
	if got := Normalize(1000, 10); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if got := Normalize(-50, 10); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestPositionPricing(t *testing.T) {
	tp := TPPriceFor(1.0, 50)
	if tp != 1.5 {
		t.Fatalf("expected tp 1.5, got %v", tp)
	}
	sl := SLPriceFor(1.0, 20)
	if sl != 0.8 {
		t.Fatalf("expected sl 0.8, got %v", sl)
	}
}
