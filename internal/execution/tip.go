package execution

import (
	"math/rand"
	"sync"
)

// TipStrategy selects how the bundle executor prices its tip to the block
// engine.
type TipStrategy int

const (
	TipFixed TipStrategy = iota
	TipDynamic
	TipCompetitive
)

// fixedTipRecipients is the static pool of tip-account addresses that every
// submission tips into; the block engine's live getTipAccounts list is not
// consulted. One is chosen uniformly at random per submission so tip
// traffic does not concentrate on a single account.
var fixedTipRecipients = [8]string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// randomTipRecipient picks one fixed tip recipient, pseudo-random and not
// deterministic per signer.
func randomTipRecipient() string {
	return fixedTipRecipients[rand.Intn(len(fixedTipRecipients))]
}

// clampU64 bounds v to [lo, hi].
func clampU64(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TipParams collects the configuration inputs needed to compute a tip
// under any strategy.
type TipParams struct {
	Strategy           TipStrategy
	FixedLamports      uint64
	TipPercent         float64
	MaxTipLamports     uint64
	ExpectedProfitLamports int64 // only meaningful for TipDynamic; may be <= 0
	CompetitorTips     []uint64 // only meaningful for TipCompetitive
	UrgencyMultiplier  float64  // one of 1.1, 1.25, 1.5; 0 defaults to 1.1
}

// ComputeTip derives the lamport tip to attach to a submission, per the
// selected strategy. Dynamic falls back to fixed when the expected profit
// is non-positive; competitive falls back to fixed when no competitor tips
// are known.
func ComputeTip(p TipParams) uint64 {
	switch p.Strategy {
	case TipDynamic:
		if p.ExpectedProfitLamports <= 0 {
			return p.FixedLamports
		}
		raw := uint64(float64(p.ExpectedProfitLamports) * p.TipPercent / 100)
		return clampU64(raw, p.FixedLamports, p.MaxTipLamports)
	case TipCompetitive:
		if len(p.CompetitorTips) == 0 {
			return p.FixedLamports
		}
		var max uint64
		for _, t := range p.CompetitorTips {
			if t > max {
				max = t
			}
		}
		mult := p.UrgencyMultiplier
		if mult != 1.1 && mult != 1.25 && mult != 1.5 {
			mult = 1.1
		}
		tip := uint64(float64(max) * mult)
		if tip > p.MaxTipLamports {
			return p.MaxTipLamports
		}
		return tip
	default:
		return p.FixedLamports
	}
}

// tipHistoryCap bounds the rolling history to the last 10 successful tips.
const tipHistoryCap = 10

// tipHistoryMinSamples is the minimum sample count before a recommendation
// is produced.
const tipHistoryMinSamples = 5

// TipHistory tracks a rolling window of successful tip amounts and derives
// a recommended tip from it.
type TipHistory struct {
	mu      sync.Mutex
	samples []uint64
}

// NewTipHistory constructs an empty rolling tip history.
func NewTipHistory() *TipHistory { return &TipHistory{} }

// RecordSuccess appends a successful tip amount, evicting the oldest entry
// once the window exceeds its cap.
func (h *TipHistory) RecordSuccess(lamports uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, lamports)
	if len(h.samples) > tipHistoryCap {
		h.samples = h.samples[len(h.samples)-tipHistoryCap:]
	}
}

// Recommended returns floor(avg * 1.1) clamped to maxTip once at least
// tipHistoryMinSamples samples are recorded; ok is false before then.
func (h *TipHistory) Recommended(maxTip uint64) (lamports uint64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) < tipHistoryMinSamples {
		return 0, false
	}
	var sum uint64
	for _, s := range h.samples {
		sum += s
	}
	avg := float64(sum) / float64(len(h.samples))
	rec := uint64(avg * 1.1)
	if rec > maxTip {
		rec = maxTip
	}
	return rec, true
}

// Len reports the number of samples currently held.
func (h *TipHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}
