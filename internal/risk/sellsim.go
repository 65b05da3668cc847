package risk

import (
	"regexp"
	"strconv"
	"strings"

	solanago "github.com/gagliardetto/solana-go"

	"sniper/internal/decode"
	"sniper/internal/domain"
	"sniper/internal/solana"
	"sniper/internal/wallet"
)

var taxIndicatorPattern = regexp.MustCompile(`(?i)(?:tax|fee)[:\s]+(\d+\.?\d*)`)

const (
	honeypotDenyScore   = 0
	honeypotMaxTxScore  = WeightHoneypotPassed / 2
	honeypotFullScore   = WeightHoneypotPassed
	honeypotHalfScore   = WeightHoneypotPassed / 2
	honeypotTaxOverScore = 0
)

// buildSellSimTx assembles an unsigned, simulation-only sell transaction
// for a Pumpfun bonding curve, selling a small nominal test amount.
func buildSellSimTx(w *wallet.Wallet, mint solanago.PublicKey, blockhashBase58 string) (string, error) {
	blockhash, err := solanago.HashFromBase58(blockhashBase58)
	if err != nil {
		return "", err
	}
	bondingCurve, err := decode.DeriveBondingCurve(mint)
	if err != nil {
		return "", err
	}
	associatedBondingCurve, _, err := solanago.FindAssociatedTokenAddress(bondingCurve, mint)
	if err != nil {
		return "", err
	}
	userATA, _, err := solanago.FindAssociatedTokenAddress(w.PublicKey(), mint)
	if err != nil {
		return "", err
	}

	data := decode.PumpfunSellInstructionData(sellSimTestTokenAmount, 0)
	ix := decode.BuildSwapInstruction(data, mint, bondingCurve, associatedBondingCurve, userATA, w.PublicKey())

	tx, err := solanago.NewTransaction([]solanago.Instruction{ix}, blockhash, solanago.TransactionPayer(w.PublicKey()))
	if err != nil {
		return "", err
	}
	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(w.PublicKey()) {
			pk := w.PrivateKey()
			return &pk
		}
		return nil
	}); err != nil {
		return "", err
	}
	return tx.ToBase64()
}

// interpretSimulation classifies a simulateTransaction outcome into the
// honeypot factor across four branches: clean success, insufficient funds,
// a block/deny outcome, and a transaction-limit outcome.
func interpretSimulation(res *solana.SimulationResult, maxTaxPercent float64) domain.RiskFactor {
	if res == nil {
		return passFactor(domain.CriticalHoneypot, honeypotHalfScore, WeightHoneypotPassed, "sell simulation produced no result; half credit")
	}

	logsJoined := strings.ToLower(strings.Join(res.Logs, "\n"))

	if res.Err == nil {
		if bps, overLimit := scanTaxIndicator(logsJoined); overLimit {
			if bps > 50 {
				return failFactor(domain.CriticalHoneypot, honeypotDenyScore, WeightHoneypotPassed, "sell simulation indicates >50% tax, treated as honeypot")
			}
			if bps > maxTaxPercent {
				return failFactor(domain.CriticalHoneypot, honeypotTaxOverScore, WeightHoneypotPassed, "sell simulation tax exceeds configured maximum")
			}
		}
		return passFactor(domain.CriticalHoneypot, honeypotFullScore, WeightHoneypotPassed, "sell simulation succeeded cleanly")
	}

	errStr := strings.ToLower(errToString(res.Err))
	combined := errStr + "\n" + logsJoined

	switch {
	case strings.Contains(combined, "insufficient") && strings.Contains(combined, "fund"):
		return passFactor(domain.CriticalHoneypot, honeypotHalfScore, WeightHoneypotPassed, "sell simulation failed on insufficient funds, inconclusive; half credit")
	case strings.Contains(combined, "blocked") || strings.Contains(combined, "blacklist") || strings.Contains(combined, "denied"):
		return failFactor(domain.CriticalHoneypot, honeypotDenyScore, WeightHoneypotPassed, "sell simulation was blocked or denied, treated as honeypot")
	case strings.Contains(combined, "max") || strings.Contains(combined, "limit"):
		return failFactor(domain.CriticalHoneypot, honeypotMaxTxScore, WeightHoneypotPassed, "sell simulation hit a transaction-size limit, not a honeypot but penalized (has_max_tx)")
	default:
		return failFactor(domain.CriticalHoneypot, honeypotDenyScore, WeightHoneypotPassed, "sell simulation failed for an unrecognized reason, treated as honeypot")
	}
}

// scanTaxIndicator looks for "tax: N" / "fee: N" patterns in simulation
// logs and reports the highest basis-point-as-percent figure found, and
// whether it exceeds maxTaxPercent is left to the caller; here we only
// report whether any figure was found above zero.
func scanTaxIndicator(logs string) (pct float64, found bool) {
	matches := taxIndicatorPattern.FindAllStringSubmatch(logs, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var max float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, max > 0
}

func errToString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
