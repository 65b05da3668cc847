// Package orchestrator wires the ingestion coordinator, risk analyzer,
// bundle executor and position manager into the single decision loop
// spec.md §4.10 describes: on every new pool event, analyze then buy; on
// every exit trigger, check balance then sell. Every stage records its
// latency into a structured "perf:<stage>" log line.
package orchestrator

import (
	"context"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"sniper/internal/addr"
	"sniper/internal/decode"
	"sniper/internal/domain"
	"sniper/internal/execution"
	"sniper/internal/ingestion"
	"sniper/internal/observability"
	"sniper/internal/position"
	"sniper/internal/risk"
	"sniper/internal/solana"
	"sniper/internal/wallet"
)

// Options configures an Orchestrator. All sub-components are constructed
// by the caller (no global singletons, per spec.md §9) and handed in by
// reference.
type Options struct {
	Ingestion *ingestion.Coordinator
	Risk      *risk.Analyzer
	Executor  *execution.Executor
	Positions *position.Manager
	RPC       *solana.ProviderManager
	Wallet    *wallet.Wallet
	Logger    zerolog.Logger

	RiskScoreThreshold int
	BuyAmountSOL       float64
	MaxSlippageBPS     int
	TakeProfitPercent  float64
	StopLossPercent    float64

	EnableAutoSweep     bool
	ColdWalletAddress   string
	AutoSweepInterval   time.Duration
	AutoSweepReserveSOL float64
}

// DefaultAutoSweepInterval and DefaultAutoSweepReserveSOL are the sweep
// timer's defaults: spec.md §6 defines only the on/off toggle and the
// destination address, leaving cadence and reserve as implementation
// choices for this "simple timer loop atop the executor" (spec.md §1).
const (
	DefaultAutoSweepInterval   = 10 * time.Minute
	DefaultAutoSweepReserveSOL = 0.05
)

// Orchestrator drives the detection-to-execution-to-exit pipeline.
type Orchestrator struct {
	opts Options
	log  zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Orchestrator, applying sweep defaults when auto-sweep
// is enabled but the caller left cadence/reserve unset.
func New(opts Options) *Orchestrator {
	if opts.AutoSweepInterval <= 0 {
		opts.AutoSweepInterval = DefaultAutoSweepInterval
	}
	if opts.AutoSweepReserveSOL <= 0 {
		opts.AutoSweepReserveSOL = DefaultAutoSweepReserveSOL
	}
	return &Orchestrator{opts: opts, log: opts.Logger}
}

// Start launches ingestion, position tracking, the two consumer loops, and
// (if enabled) the auto-sweep timer. It returns immediately; call Stop to
// shut everything down.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.opts.Ingestion.Start(ctx)
	o.opts.Positions.Start(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.consumePoolEvents(ctx)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.consumeExitTriggers(ctx)
	}()

	if o.opts.EnableAutoSweep {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.runAutoSweep(ctx)
		}()
	}
}

// Stop propagates cancellation to the ingestion coordinator's receive
// loop, the position manager's polling timer, and the auto-sweep timer,
// then waits for every consumer loop to exit. In-flight RPCs may complete
// but will not enqueue further work, per spec.md §5 "Cancellation".
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.opts.Ingestion.Stop()
	o.opts.Positions.Stop()
	o.wg.Wait()
}

func (o *Orchestrator) consumePoolEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.opts.Ingestion.Events():
			if !ok {
				return
			}
			o.handlePoolEvent(ctx, ev)
		}
	}
}

func (o *Orchestrator) consumeExitTriggers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trig, ok := <-o.opts.Positions.Exits():
			if !ok {
				return
			}
			o.handleExitTrigger(ctx, trig)
		}
	}
}

func (o *Orchestrator) handlePoolEvent(ctx context.Context, ev domain.PoolEvent) {
	newPool, ok := ev.(domain.NewPoolEvent)
	if !ok {
		// Migration and LiquidityAdded events are defined for completeness
		// (spec.md §3) but are not consumed by the core pipeline.
		return
	}
	o.handleNewPool(ctx, newPool)
}

func (o *Orchestrator) handleNewPool(ctx context.Context, ev domain.NewPoolEvent) {
	stageStart := time.Now()
	log := o.log.With().Str("mint", ev.Mint.String()).Str("pool", ev.Pool.String()).Str("dex", ev.Dex.String()).Logger()

	if _, exists := o.opts.Positions.ForMint(ev.Mint); exists {
		log.Debug().Str("perf", "pipeline").Str("outcome", "skipped_existing_position").Msg("new pool event skipped")
		return
	}

	req := risk.Request{
		Mint:       ev.Mint,
		Pool:       ev.Pool,
		Dex:        ev.Dex,
		BaseMint:   ev.BaseMint,
		QuoteMint:  ev.QuoteMint,
		BaseVault:  ev.BaseVault,
		QuoteVault: ev.QuoteVault,
		LPMint:     ev.LPMint,
	}

	riskStart := time.Now()
	analysis := o.opts.Risk.Analyze(ctx, req)
	riskElapsed := time.Since(riskStart)
	observability.RecordAnalysis(analysis.Passed, analysis.Score, riskElapsed.Seconds())
	log.Info().Str("perf", "risk_analysis").Int64("latency_ms", riskElapsed.Milliseconds()).
		Int("score", analysis.Score).Bool("passed", analysis.Passed).Msg("risk analysis complete")

	if !analysis.Passed || analysis.Score < o.opts.RiskScoreThreshold {
		outcome := "rejected_score_below_threshold"
		if !analysis.Passed {
			outcome = "rejected_security_failed"
		}
		log.Info().Str("perf", "pipeline").Str("outcome", outcome).
			Int64("latency_ms", time.Since(stageStart).Milliseconds()).Msg("candidate rejected")
		return
	}

	execStart := time.Now()
	result := o.opts.Executor.Execute(ctx, execution.Request{
		Dex:         ev.Dex,
		Mint:        ev.Mint,
		Pool:        ev.Pool,
		Side:        execution.SideBuy,
		AmountSOL:   o.opts.BuyAmountSOL,
		SlippageBPS: o.opts.MaxSlippageBPS,
	})
	observability.RecordExecutionLatency("buy", time.Since(execStart).Seconds())
	tipLamports, _ := o.opts.Executor.TipHistory().Recommended(^uint64(0))
	observability.RecordBundleOutcome(result.Success, tipLamports)
	log.Info().Str("perf", "execution").Int64("latency_ms", time.Since(execStart).Milliseconds()).
		Bool("success", result.Success).Msg("buy execution complete")

	if !result.Success {
		log.Warn().Str("perf", "pipeline").Str("outcome", "buy_failed").Err(result.Error).
			Int64("latency_ms", time.Since(stageStart).Milliseconds()).Msg("buy failed")
		return
	}

	tokenAmount := tokensFromSpend(o.opts.BuyAmountSOL, result.Price)
	pos, err := o.opts.Positions.OpenPosition(ev.Mint, ev.Pool, ev.Dex, result.Price, o.opts.BuyAmountSOL,
		tokenAmount, result.TxHash, o.opts.TakeProfitPercent, o.opts.StopLossPercent)
	if err != nil {
		log.Error().Str("perf", "pipeline").Str("outcome", "position_limit_reached").Err(err).
			Msg("buy landed but position could not be opened")
		return
	}

	log.Info().Str("perf", "pipeline").Str("outcome", "bought").Str("position_id", pos.ID.String()).
		Int64("latency_ms", time.Since(stageStart).Milliseconds()).Msg("pipeline completed")
}

// tokensFromSpend recovers the raw token amount purchased from the spend
// and the executor-reported fill price (lamports per raw token unit).
func tokensFromSpend(solSpent, price float64) uint64 {
	if price <= 0 {
		return 0
	}
	return uint64(solSpent * 1e9 / price)
}

func (o *Orchestrator) handleExitTrigger(ctx context.Context, trig position.ExitTrigger) {
	stageStart := time.Now()
	log := o.log.With().Str("mint", trig.Mint.String()).Str("position_id", trig.ID.String()).
		Str("reason", string(trig.Reason)).Logger()

	balance, err := o.walletTokenBalance(ctx, trig.Mint)
	if err != nil {
		log.Error().Err(err).Msg("could not read on-chain token balance before exit; leaving position closing for retry")
		return
	}
	if balance == 0 {
		if closed, err := o.opts.Positions.ClosePosition(trig.ID, trig.Reason, "", trig.Position.CurrentPrice); err != nil {
			log.Error().Err(err).Msg("failed to close zero-balance position")
		} else {
			observability.RecordPositionClosed(string(trig.Reason), closed.PnLPercent)
		}
		log.Info().Str("perf", "pipeline").Str("outcome", "closed_zero_balance").
			Int64("latency_ms", time.Since(stageStart).Milliseconds()).Msg("exit with no on-chain balance, closed without a sell")
		return
	}

	execStart := time.Now()
	result := o.opts.Executor.Execute(ctx, execution.Request{
		Dex:          trig.Dex,
		Mint:         trig.Mint,
		Pool:         trig.Pool,
		Side:         execution.SideSell,
		AmountTokens: balance,
		SlippageBPS:  o.opts.MaxSlippageBPS,
	})
	observability.RecordExecutionLatency("sell", time.Since(execStart).Seconds())
	tipLamports, _ := o.opts.Executor.TipHistory().Recommended(^uint64(0))
	observability.RecordBundleOutcome(result.Success, tipLamports)
	log.Info().Str("perf", "execution").Int64("latency_ms", time.Since(execStart).Milliseconds()).
		Bool("success", result.Success).Msg("sell execution complete")

	if !result.Success {
		o.opts.Positions.RevertToOpen(trig.ID)
		log.Warn().Str("perf", "pipeline").Str("outcome", "sell_failed_reverted").Err(result.Error).
			Msg("sell failed, position reverted to open for retry")
		return
	}

	closed, err := o.opts.Positions.ClosePosition(trig.ID, trig.Reason, result.TxHash, result.Price)
	if err != nil {
		log.Error().Err(err).Msg("sell succeeded but position close failed")
		return
	}
	observability.RecordPositionClosed(string(trig.Reason), closed.PnLPercent)
	log.Info().Str("perf", "pipeline").Str("outcome", "sold").
		Int64("latency_ms", time.Since(stageStart).Milliseconds()).Msg("pipeline completed")
}

// walletTokenBalance reads the configured wallet's associated-token-account
// balance for mint directly through the RPC substrate (bypassing the risk
// analyzer's cache, since this must reflect the current on-chain state).
func (o *Orchestrator) walletTokenBalance(ctx context.Context, mint addr.Address) (uint64, error) {
	mintPK, err := solanago.PublicKeyFromBase58(mint.String())
	if err != nil {
		return 0, err
	}
	ata, _, err := solanago.FindAssociatedTokenAddress(o.opts.Wallet.PublicKey(), mintPK)
	if err != nil {
		return 0, err
	}
	info, err := o.opts.RPC.GetAccountInfo(ctx, ata.String())
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, nil
	}
	blob, ok := decodeB64(info.Data)
	if !ok {
		return 0, nil
	}
	amount, ok := decode.ParseTokenAccountAmount(blob)
	if !ok {
		return 0, nil
	}
	return amount, nil
}
