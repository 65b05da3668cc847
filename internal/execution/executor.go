// Package execution drives a risk-approved trade to on-chain inclusion: it
// builds the DEX-specific swap instructions, prepends compute-budget and
// tip instructions, submits the result as a one-transaction bundle to a
// block engine, polls for landing, and falls back to a direct RPC send if
// the bundle fails or times out.
package execution

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rs/zerolog"

	"sniper/internal/addr"
	"sniper/internal/decode"
	"sniper/internal/domain"
	"sniper/internal/solana"
	"sniper/internal/wallet"
)

// Side identifies which leg of a swap is being executed.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// rpcPort is the subset of the RPC provider manager the executor needs:
// account reads to build instructions, a fresh blockhash, and the direct
// send/confirm fallback path. Defined against *solana.AccountInfo directly
// (rather than a locally mirrored struct) so the real provider manager
// satisfies it without an adapter shim.
type rpcPort interface {
	GetMultipleAccountInfos(ctx context.Context, addresses []string) ([]*solana.AccountInfo, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) (bool, error)
}

// Request describes one swap the executor should drive to inclusion.
type Request struct {
	Dex          domain.Dex
	Mint         addr.Address
	Pool         addr.Address // bonding curve for Pumpfun
	Side         Side
	AmountSOL    float64 // buy: SOL to spend
	AmountTokens uint64  // sell: raw token units to sell
	SlippageBPS  int
}

// Result is the outcome of driving a Request to inclusion.
type Result struct {
	Success   bool
	TxHash    string
	Price     float64
	Error     error
	LatencyMs int64
}

// Options configures an Executor.
type Options struct {
	RPC               rpcPort
	BlockEngine       BlockEngineClient
	Wallet            *wallet.Wallet
	Logger            zerolog.Logger
	DryRun            bool
	TipStrategy       TipStrategy
	TipLamports       uint64
	TipPercent        float64
	MaxTipLamports    uint64
	ComputeUnitLimit  uint32
	ComputeUnitPrice  uint64
	BundleTimeout     time.Duration
	BundlePollInterval time.Duration
	MaxDirectRetries  int
}

// ErrRaydiumUnsupported is returned for any Raydium swap request: building
// a valid Raydium AMM v4 swap needs Serum market accounts this repo's
// pool-event data model does not carry.
var ErrRaydiumUnsupported = errors.New("execution: raydium swap building is not supported")

// Executor drives buy/sell requests to on-chain inclusion via a bundle
// submission with a direct-RPC fallback.
type Executor struct {
	opts    Options
	log     zerolog.Logger
	history *TipHistory
}

// New constructs an Executor, applying the documented defaults for any
// zero-valued timing/compute options.
func New(opts Options) *Executor {
	if opts.BundleTimeout <= 0 {
		opts.BundleTimeout = 60 * time.Second
	}
	if opts.BundlePollInterval <= 0 {
		opts.BundlePollInterval = 2 * time.Second
	}
	if opts.MaxDirectRetries <= 0 {
		opts.MaxDirectRetries = 3
	}
	if opts.ComputeUnitLimit == 0 {
		opts.ComputeUnitLimit = 200_000
	}
	return &Executor{opts: opts, log: opts.Logger, history: NewTipHistory()}
}

// TipHistory exposes the rolling successful-tip window, so the orchestrator
// can report the tip actually used per trade alongside a recommendation.
func (e *Executor) TipHistory() *TipHistory { return e.history }

// Execute drives req to inclusion. A dry run returns success immediately
// without building or submitting anything.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	if e.opts.DryRun {
		return Result{Success: true, TxHash: "dry-run", LatencyMs: time.Since(start).Milliseconds()}
	}

	if req.Dex != domain.DexPumpfun {
		return Result{Success: false, Error: ErrRaydiumUnsupported, LatencyMs: time.Since(start).Milliseconds()}
	}

	built, err := e.buildPumpfunSwap(ctx, req)
	if err != nil {
		return Result{Success: false, Error: err, LatencyMs: time.Since(start).Milliseconds()}
	}

	res := e.submitWithFallback(ctx, built)
	res.Price = built.price
	res.LatencyMs = time.Since(start).Milliseconds()
	return res
}

// builtSwap holds the instruction list and bookkeeping produced by a
// DEX-specific build step, ready for compute-budget/tip prepending and
// submission.
type builtSwap struct {
	instructions []solanago.Instruction
	price        float64
	tipLamports  uint64
}

func (e *Executor) buildPumpfunSwap(ctx context.Context, req Request) (*builtSwap, error) {
	mintPK, err := solanago.PublicKeyFromBase58(req.Mint.String())
	if err != nil {
		return nil, fmt.Errorf("execution: invalid mint: %w", err)
	}
	user := e.opts.Wallet.PublicKey()

	bondingCurve, err := decode.DeriveBondingCurve(mintPK)
	if err != nil {
		return nil, fmt.Errorf("execution: derive bonding curve: %w", err)
	}
	associatedBondingCurve, _, err := solanago.FindAssociatedTokenAddress(bondingCurve, mintPK)
	if err != nil {
		return nil, fmt.Errorf("execution: derive bonding curve ATA: %w", err)
	}
	userATA, _, err := solanago.FindAssociatedTokenAddress(user, mintPK)
	if err != nil {
		return nil, fmt.Errorf("execution: derive user ATA: %w", err)
	}

	// Batched read: bonding curve state + user ATA existence, in one call.
	infos, err := e.opts.RPC.GetMultipleAccountInfos(ctx, []string{bondingCurve.String(), userATA.String()})
	if err != nil {
		return nil, fmt.Errorf("execution: batched account read: %w", err)
	}
	if len(infos) != 2 || infos[0] == nil {
		return nil, fmt.Errorf("execution: bonding curve account not found for mint %s", req.Mint)
	}
	curveBlob, ok := decodeB64(infos[0].Data)
	if !ok {
		return nil, fmt.Errorf("execution: malformed bonding curve account data")
	}
	curve, ok := decode.ParseBondingCurve(curveBlob)
	if !ok {
		return nil, fmt.Errorf("execution: bonding curve account too short")
	}
	userATAMissing := infos[1] == nil

	instructions := make([]solanago.Instruction, 0, 4)
	if userATAMissing {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(user, user, mintPK).Build())
	}

	var price float64
	switch req.Side {
	case SideBuy:
		amountLamports := uint64(req.AmountSOL * 1e9)
		expectedTokens := decode.BuyOutput(curve, amountLamports, decode.FeeBPS)
		if expectedTokens == 0 {
			return nil, fmt.Errorf("execution: buy of %.6f SOL yields zero tokens at current curve state", req.AmountSOL)
		}
		data := decode.PumpfunBuyInstructionData(expectedTokens, amountLamports)
		instructions = append(instructions, decode.BuildSwapInstruction(data, mintPK, bondingCurve, associatedBondingCurve, userATA, user))
		price = float64(amountLamports) / float64(expectedTokens)
	case SideSell:
		expectedLamports := decode.SellOutput(curve, req.AmountTokens, decode.FeeBPS)
		minSol := expectedLamports * uint64(10000-req.SlippageBPS) / 10000
		data := decode.PumpfunSellInstructionData(req.AmountTokens, minSol)
		instructions = append(instructions, decode.BuildSwapInstruction(data, mintPK, bondingCurve, associatedBondingCurve, userATA, user))
		if req.AmountTokens > 0 {
			price = float64(expectedLamports) / float64(req.AmountTokens)
		}
	}

	return &builtSwap{instructions: instructions, price: price}, nil
}

func decodeB64(s string) ([]byte, bool) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

// submitWithFallback prepends compute-budget and tip instructions, signs
// and submits the bundle, polls for its outcome, and falls back to a
// direct send (tip instruction dropped) on failure or timeout.
func (e *Executor) submitWithFallback(ctx context.Context, built *builtSwap) Result {
	tip := ComputeTip(TipParams{
		Strategy:       e.opts.TipStrategy,
		FixedLamports:  e.opts.TipLamports,
		TipPercent:     e.opts.TipPercent,
		MaxTipLamports: e.opts.MaxTipLamports,
	})
	built.tipLamports = tip

	blockhash, err := e.opts.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("execution: blockhash: %w", err)}
	}
	hash, err := solanago.HashFromBase58(blockhash)
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("execution: invalid blockhash: %w", err)}
	}

	user := e.opts.Wallet.PublicKey()
	tipIx := system.NewTransferInstruction(tip, user, solanago.MustPublicKeyFromBase58(randomTipRecipient())).Build()

	bundleTx, err := e.assembleAndSign(hash, append(e.withComputeBudget(built.instructions), tipIx))
	if err != nil {
		return Result{Success: false, Error: err}
	}
	bundleB64, err := bundleTx.ToBase64()
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("execution: encode bundle tx: %w", err)}
	}

	if e.opts.BlockEngine != nil {
		if res, ok := e.runBundle(ctx, bundleB64); ok {
			e.history.RecordSuccess(tip)
			return res
		}
	}

	// Fallback: drop the tip instruction and send directly through the RPC
	// substrate, with internal retries.
	fallbackTx, err := e.assembleAndSign(hash, e.withComputeBudget(built.instructions))
	if err != nil {
		return Result{Success: false, Error: err}
	}
	fallbackB64, err := fallbackTx.ToBase64()
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("execution: encode fallback tx: %w", err)}
	}
	return e.sendDirect(ctx, fallbackB64)
}

func (e *Executor) withComputeBudget(instructions []solanago.Instruction) []solanago.Instruction {
	out := make([]solanago.Instruction, 0, len(instructions)+2)
	out = append(out,
		computebudget.NewSetComputeUnitLimitInstruction(e.opts.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.opts.ComputeUnitPrice).Build(),
	)
	out = append(out, instructions...)
	return out
}

func (e *Executor) assembleAndSign(blockhash solanago.Hash, instructions []solanago.Instruction) (*solanago.Transaction, error) {
	builder := solanago.NewTransactionBuilder()
	for _, ix := range instructions {
		builder.AddInstruction(ix)
	}
	builder.SetFeePayer(e.opts.Wallet.PublicKey())
	builder.SetRecentBlockHash(blockhash)

	tx, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("execution: build transaction: %w", err)
	}
	key := e.opts.Wallet.PrivateKey()
	if _, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(e.opts.Wallet.PublicKey()) {
			return &key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("execution: sign transaction: %w", err)
	}
	return tx, nil
}

// runBundle submits the bundle and polls its status until landed, failed,
// dropped, or BundleTimeout elapses. ok is false when the caller should
// fall back to a direct send.
func (e *Executor) runBundle(ctx context.Context, bundleB64 string) (Result, bool) {
	bundleID, err := e.opts.BlockEngine.SendBundle(ctx, []string{bundleB64})
	if err != nil {
		e.log.Warn().Err(err).Msg("execution: bundle submission failed, falling back to direct send")
		return Result{}, false
	}

	deadline := time.Now().Add(e.opts.BundleTimeout)
	ticker := time.NewTicker(e.opts.BundlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, false
		case <-ticker.C:
			statuses, err := e.opts.BlockEngine.GetBundleStatuses(ctx, []string{bundleID})
			if err != nil || len(statuses) == 0 {
				if time.Now().After(deadline) {
					return Result{}, false
				}
				continue
			}
			switch NormalizeBundleStatus(statuses[0]) {
			case BundleLanded:
				return Result{Success: true, TxHash: bundleID}, true
			case BundleFailed, BundleDropped:
				return Result{}, false
			}
			if time.Now().After(deadline) {
				return Result{}, false
			}
		}
	}
}

func (e *Executor) sendDirect(ctx context.Context, txB64 string) Result {
	var lastErr error
	delay := 500 * time.Millisecond
	for attempt := 0; attempt < e.opts.MaxDirectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{Success: false, Error: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}
		sig, err := e.opts.RPC.SendTransaction(ctx, txB64, true)
		if err != nil {
			lastErr = err
			continue
		}
		confirmed, err := e.opts.RPC.ConfirmTransaction(ctx, sig)
		if err != nil || !confirmed {
			lastErr = err
			continue
		}
		return Result{Success: true, TxHash: sig}
	}
	return Result{Success: false, Error: fmt.Errorf("execution: direct send exhausted retries: %w", lastErr)}
}
