// Package position owns the open-positions map: admission control on open,
// a batched price-refresh tick that evaluates take-profit/stop-loss exit
// conditions, and the close/revert lifecycle transitions spec.md §4.9
// requires. Only this package's methods mutate positions; exit triggers
// are delivered over a channel rather than a listener callback.
package position

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sniper/internal/addr"
	"sniper/internal/decode"
	"sniper/internal/domain"
	"sniper/internal/observability"
	"sniper/internal/solana"
)

// DefaultRefreshInterval is the batched price-refresh tick period.
const DefaultRefreshInterval = 500 * time.Millisecond

// pumpfunPriceScale corrects the 9-vs-6 decimal mismatch between SOL and a
// standard Pumpfun token, per spec.md §4.9 and §9's note that the factor
// should be documented rather than left as a bare magic number: prices are
// kept in lamports-per-micro-token at this scale.
const pumpfunPriceScale = 1000.0

// ErrPositionLimitReached is returned by OpenPosition when adding the
// position would exceed MaxConcurrentPositions or MaxPositionSizeSOL.
var ErrPositionLimitReached = fmt.Errorf("position: limit reached")

// rpcPort is the subset of the RPC provider manager the price-refresh tick
// needs: a single batched account read. Defined against
// *solana.AccountInfo directly so the real provider manager satisfies it
// without an adapter shim.
type rpcPort interface {
	GetMultipleAccountInfos(ctx context.Context, addresses []string) ([]*solana.AccountInfo, error)
}

// ExitTrigger is emitted when an open position crosses its take-profit or
// stop-loss threshold; the orchestrator consumes these to drive a sell.
type ExitTrigger struct {
	ID       domain.PositionID
	Mint     addr.Address
	Pool     addr.Address
	Dex      domain.Dex
	Reason   domain.ExitReason
	Position domain.Position
}

// Options configures a Manager.
type Options struct {
	RPC                    rpcPort
	Logger                 zerolog.Logger
	MaxConcurrentPositions int
	MaxPositionSizeSOL     float64
	RefreshInterval        time.Duration
}

// Manager owns the open-positions map for the lifetime of one process run.
type Manager struct {
	rpc             rpcPort
	log             zerolog.Logger
	maxConcurrent   int
	maxSizeSOL      float64
	refreshInterval time.Duration

	mu        sync.Mutex
	positions map[domain.PositionID]*domain.Position
	nextID    atomic.Uint64

	exits chan ExitTrigger

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Manager. Start must be called to begin the
// price-refresh tick.
func New(opts Options) *Manager {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Manager{
		rpc:             opts.RPC,
		log:             opts.Logger,
		maxConcurrent:   opts.MaxConcurrentPositions,
		maxSizeSOL:      opts.MaxPositionSizeSOL,
		refreshInterval: interval,
		positions:       make(map[domain.PositionID]*domain.Position),
		exits:           make(chan ExitTrigger, 256),
	}
}

// Exits returns the channel of exit triggers. It is never closed while the
// manager runs.
func (m *Manager) Exits() <-chan ExitTrigger { return m.exits }

// Start launches the background price-refresh tick. Stop (or cancelling
// ctx) halts it.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop halts the price-refresh tick. Safe to call multiple times.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshTick(ctx)
		}
	}
}

// TPSL computes the take-profit/stop-loss price pair for an entry price,
// exported so the orchestrator can log intended thresholds before a
// position exists.
func TPSL(entryPrice, tpPercent, slPercent float64) (tp, sl float64) {
	return domain.TPPriceFor(entryPrice, tpPercent), domain.SLPriceFor(entryPrice, slPercent)
}

// OpenPosition admits a new position if room remains under both
// MaxConcurrentPositions and MaxPositionSizeSOL (summed across open
// positions); otherwise it returns ErrPositionLimitReached.
func (m *Manager) OpenPosition(mint, pool addr.Address, dex domain.Dex, entryPrice, solSpent float64, tokenAmount uint64, entryTx string, tpPercent, slPercent float64) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	openCount := 0
	openSOL := 0.0
	for _, p := range m.positions {
		if p.Status == domain.PositionOpen || p.Status == domain.PositionClosing {
			openCount++
			openSOL += p.SolSpent
		}
	}
	if m.maxConcurrent > 0 && openCount >= m.maxConcurrent {
		return nil, ErrPositionLimitReached
	}
	if m.maxSizeSOL > 0 && openSOL+solSpent > m.maxSizeSOL {
		return nil, ErrPositionLimitReached
	}

	id := domain.PositionID(m.nextID.Add(1))
	tp, sl := TPSL(entryPrice, tpPercent, slPercent)
	p := &domain.Position{
		ID:           id,
		Mint:         mint,
		Pool:         pool,
		Dex:          dex,
		EntryPrice:   entryPrice,
		EntryTime:    time.Now(),
		Amount:       tokenAmount,
		SolSpent:     solSpent,
		CurrentPrice: entryPrice,
		TPPrice:      tp,
		SLPrice:      sl,
		Status:       domain.PositionOpen,
		EntryTx:      entryTx,
	}
	m.positions[id] = p
	observability.SetPositionsOpen(openCount + 1)

	m.log.Info().
		Str("event", "position_opened").
		Str("position_id", id.String()).
		Str("mint", mint.String()).
		Float64("entry_price", entryPrice).
		Float64("tp_price", tp).
		Float64("sl_price", sl).
		Msg("position opened")

	out := *p
	return &out, nil
}

// ForMint returns the open/closing position for mint, if one exists. Used
// by the orchestrator's dedup-by-mint check on NewPoolEvent.
func (m *Manager) ForMint(mint addr.Address) (*domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.Mint.Equal(mint) && p.Status != domain.PositionClosed {
			out := *p
			return &out, true
		}
	}
	return nil, false
}

// Get returns a copy of the position with id, if it exists.
func (m *Manager) Get(id domain.PositionID) (*domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, false
	}
	out := *p
	return &out, true
}

// Snapshot returns a copy of every tracked position, for diagnostics and
// for the sum(open.sol_spent) <= max_position_size_sol invariant tests.
func (m *Manager) Snapshot() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// ClosePosition transitions a Closing position to Closed, finalizing
// pnl_percent against exitPrice and recording the exit transaction.
func (m *Manager) ClosePosition(id domain.PositionID, reason domain.ExitReason, exitTx string, exitPrice float64) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("position: unknown id %s", id)
	}
	p.Status = domain.PositionClosed
	p.ExitTx = exitTx
	p.ExitReason = reason
	if exitPrice > 0 {
		p.CurrentPrice = exitPrice
	}
	p.PnLPercent = domain.PnLPercentFor(p.EntryPrice, p.CurrentPrice)

	openCount := 0
	for _, other := range m.positions {
		if other.Status == domain.PositionOpen || other.Status == domain.PositionClosing {
			openCount++
		}
	}
	observability.SetPositionsOpen(openCount)

	m.log.Info().
		Str("event", "position_closed").
		Str("position_id", id.String()).
		Str("reason", string(reason)).
		Float64("pnl_percent", p.PnLPercent).
		Msg("position closed")

	out := *p
	return &out, nil
}

// RevertToOpen transitions a Closing position back to Open so the exit
// trigger is re-evaluated and re-fired on the next tick, used by the
// orchestrator when a sell attempt fails.
func (m *Manager) RevertToOpen(id domain.PositionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.positions[id]; ok && p.Status == domain.PositionClosing {
		p.Status = domain.PositionOpen
		m.log.Warn().Str("position_id", id.String()).Msg("position reverted to open after failed sell, will retry")
	}
}

// refreshTick partitions open positions by DEX, batch-refreshes Pumpfun
// prices, and evaluates TP/SL on the result. Non-Pumpfun DEXes are a
// documented no-op per spec.md §4.9.
func (m *Manager) refreshTick(ctx context.Context) {
	pumpfunIDs, pools := m.openPumpfunPools()
	if len(pumpfunIDs) == 0 {
		return
	}

	infos, err := m.rpc.GetMultipleAccountInfos(ctx, pools)
	if err != nil {
		m.log.Warn().Err(err).Msg("position: batched price refresh failed")
		return
	}

	for i, id := range pumpfunIDs {
		if i >= len(infos) || infos[i] == nil {
			continue
		}
		price, ok := pumpfunPrice(infos[i].Data)
		if !ok {
			continue
		}
		m.applyPriceAndEvaluate(id, price)
	}
}

// openPumpfunPools returns the IDs and pool addresses of every currently
// open Pumpfun position, in matching order, for a single batched read.
func (m *Manager) openPumpfunPools() ([]domain.PositionID, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []domain.PositionID
	var pools []string
	for id, p := range m.positions {
		if p.Status == domain.PositionOpen && p.Dex == domain.DexPumpfun {
			ids = append(ids, id)
			pools = append(pools, p.Pool.String())
		}
	}
	return ids, pools
}

// applyPriceAndEvaluate updates a position's current price and fires an
// exit trigger on the first tick that crosses TP or SL.
func (m *Manager) applyPriceAndEvaluate(id domain.PositionID, price float64) {
	m.mu.Lock()
	p, ok := m.positions[id]
	if !ok || p.Status != domain.PositionOpen {
		m.mu.Unlock()
		return
	}
	p.CurrentPrice = price
	p.PnLPercent = domain.PnLPercentFor(p.EntryPrice, price)

	var trigger *ExitTrigger
	switch {
	case price >= p.TPPrice:
		p.Status = domain.PositionClosing
		snap := *p
		trigger = &ExitTrigger{ID: id, Mint: p.Mint, Pool: p.Pool, Dex: p.Dex, Reason: domain.ExitTakeProfit, Position: snap}
	case price <= p.SLPrice:
		p.Status = domain.PositionClosing
		snap := *p
		trigger = &ExitTrigger{ID: id, Mint: p.Mint, Pool: p.Pool, Dex: p.Dex, Reason: domain.ExitStopLoss, Position: snap}
	}
	m.mu.Unlock()

	if trigger == nil {
		return
	}
	m.log.Info().
		Str("event", "exit_trigger").
		Str("position_id", id.String()).
		Str("reason", string(trigger.Reason)).
		Float64("price", price).
		Msg("exit trigger fired")
	select {
	case m.exits <- *trigger:
	default:
		m.mu.Lock()
		if p, ok := m.positions[id]; ok && p.Status == domain.PositionClosing {
			p.Status = domain.PositionOpen
		}
		m.mu.Unlock()
		m.log.Warn().Str("position_id", id.String()).Msg("position: exit trigger channel full, dropping (reverted to Open, will refire next tick)")
	}
}

// pumpfunPrice parses a base64 bonding-curve account blob and computes
// spot price scaled by pumpfunPriceScale.
func pumpfunPrice(dataB64 string) (float64, bool) {
	blob, ok := decodeB64(dataB64)
	if !ok {
		return 0, false
	}
	curve, ok := decode.ParseBondingCurve(blob)
	if !ok {
		return 0, false
	}
	if curve.VirtualTokenReserves == 0 {
		return 0, false
	}
	return decode.SpotPrice(curve) * pumpfunPriceScale, true
}
