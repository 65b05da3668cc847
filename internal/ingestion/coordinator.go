// Package ingestion drives pool-event detection over gRPC with a
// WebSocket fallback and a polling last resort, watching the DEX programs
// registered in internal/decode.
package ingestion

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sniper/internal/decode"
	"sniper/internal/domain"
	"sniper/internal/ingestion/grpcsource"
	"sniper/internal/observability"
	"sniper/internal/solana"
)

// Mode identifies which transport is currently driving ingestion.
type Mode int32

const (
	ModeStopped Mode = iota
	ModeGRPC
	ModeWebSocket
	ModePolling
)

func (m Mode) String() string {
	switch m {
	case ModeGRPC:
		return "grpc"
	case ModeWebSocket:
		return "websocket"
	case ModePolling:
		return "polling"
	default:
		return "stopped"
	}
}

// grpcProbeTimeout bounds the initial subscribe-then-drain probe used to
// decide whether the gRPC endpoint is actually usable before committing to
// it as the active transport.
const grpcProbeTimeout = 3 * time.Second

// Options configures a Coordinator.
type Options struct {
	GRPCEndpoint string
	GRPCToken    string
	WSEndpoint   string

	UseDevnet            bool
	EnableGRPCAutoDetect bool

	MaxConcurrentFetches int
	FetchTimeoutMs       int
	PollingIntervalMs    int

	Registry *decode.Registry
	RPC      *solana.ProviderManager
	Logger   zerolog.Logger
}

// Coordinator drives pool-event detection across the gRPC/WebSocket/polling
// transport chain, falling back one step at a time as each proves
// unusable.
type Coordinator struct {
	opts Options
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mode atomic.Int32

	dedup          *sigDedup
	stats          Stats
	pendingFetches atomic.Int64

	grpcUnavailable bool

	out chan domain.PoolEvent
}

// New constructs a Coordinator. It does not start any transport until
// Start is called.
func New(opts Options) *Coordinator {
	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = 2
	}
	if opts.FetchTimeoutMs <= 0 {
		opts.FetchTimeoutMs = 5000
	}
	if opts.PollingIntervalMs <= 0 {
		opts.PollingIntervalMs = 2000
	}
	return &Coordinator{
		opts:  opts,
		log:   opts.Logger,
		dedup: newSigDedup(),
		out:   make(chan domain.PoolEvent, 1024),
	}
}

// Events returns the channel of detected pool events. It is never closed
// while the coordinator runs; it is safe to range over until Stop.
func (c *Coordinator) Events() <-chan domain.PoolEvent { return c.out }

// Mode reports the currently active transport.
func (c *Coordinator) Mode() Mode { return Mode(c.mode.Load()) }

// Stats returns a snapshot of the running counters.
func (c *Coordinator) Stats() StatsSnapshot { return c.stats.Snapshot() }

func (c *Coordinator) setMode(m Mode) {
	if Mode(c.mode.Swap(int32(m))) != m {
		c.log.Info().Str("mode", m.String()).Msg("ingestion: transport active")
	}
	observability.SetIngestionMode(m.String())
}

// Start launches the ingestion run loop in the background. Cancelling ctx
// (or calling Stop) halts the active transport and closes its streams; any
// in-flight fetch may still complete but will not enqueue further work.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
}

// Stop halts ingestion. Safe to call multiple times.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.setMode(ModeStopped)
}

func (c *Coordinator) run() {
	// Try gRPC first, then WebSocket, then fall back to polling.
	if !c.opts.UseDevnet && c.opts.GRPCEndpoint != "" {
		if c.tryGRPC() {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn().Msg("ingestion: grpc stream ended, falling back to websocket")
		}
	}
	if c.ctx.Err() != nil {
		return
	}
	if c.runWebSocketWithReconnect() {
		return
	}
	if c.ctx.Err() != nil {
		return
	}
	c.runPolling()
}

// wsReconnectBase and wsReconnectMax bound the exponential backoff applied
// between WebSocket reconnect attempts once the transport has connected at
// least once: min(BASE * 2^attempts, MAX).
const (
	wsReconnectBase = time.Second
	wsReconnectMax  = 30 * time.Second
)

// runWebSocketWithReconnect keeps the WebSocket transport active for the
// lifetime of the coordinator once it has connected successfully at least
// once, reconnecting with exponential backoff on every disconnect rather
// than degrading to polling. It returns false only if the very first
// connection attempt fails, so the caller can fall back to polling.
func (c *Coordinator) runWebSocketWithReconnect() bool {
	everConnected := false
	attempts := 0
	for {
		if c.ctx.Err() != nil {
			return everConnected
		}
		if c.tryWebSocket() {
			everConnected = true
			attempts = 0
			if c.ctx.Err() != nil {
				return true
			}
			c.log.Warn().Msg("ingestion: websocket disconnected, reconnecting")
			continue
		}
		if !everConnected {
			return false
		}
		delay := wsReconnectBase * time.Duration(1<<attempts)
		if delay > wsReconnectMax {
			delay = wsReconnectMax
		}
		attempts++
		select {
		case <-c.ctx.Done():
			return true
		case <-time.After(delay):
		}
	}
}

// --- gRPC path ---

func (c *Coordinator) subscribeRequest() grpcsource.SubscribeRequest {
	owners := c.programIDs()
	return grpcsource.SubscribeRequest{
		Accounts: map[string]grpcsource.AccountFilter{
			"pools": {Owner: owners},
		},
		Transactions: map[string]grpcsource.TransactionFilter{
			"pools": {AccountInclude: owners, Vote: false, Failed: false},
		},
		Commitment: "confirmed",
	}
}

func (c *Coordinator) programIDs() []string {
	var ids []string
	for _, d := range c.opts.Registry.All() {
		ids = append(ids, d.ProgramID())
	}
	return ids
}

// tryGRPC returns true once a gRPC stream was actually established and run
// to completion (success path, later disconnected); it returns false if the
// transport never got off the ground (probe failure, dial failure, initial
// subscribe failure) so the caller should move on to WebSocket.
func (c *Coordinator) tryGRPC() bool {
	if c.grpcUnavailable {
		return false
	}

	if c.opts.EnableGRPCAutoDetect {
		if !c.probeGRPC() {
			c.grpcUnavailable = true
			c.log.Warn().Msg("ingestion: grpc probe failed, marking unavailable for this run")
			return false
		}
	}

	client, err := grpcsource.Dial(c.ctx, c.opts.GRPCEndpoint)
	if err != nil {
		c.log.Warn().Err(err).Msg("ingestion: grpc dial failed")
		return false
	}
	client.WithToken(c.opts.GRPCToken)

	ch, err := client.Subscribe(c.ctx, c.subscribeRequest())
	if err != nil {
		client.Close()
		c.log.Warn().Err(err).Msg("ingestion: grpc subscribe failed")
		return false
	}

	c.setMode(ModeGRPC)
	c.consumeGRPC(ch)
	client.Close()
	return true
}

func (c *Coordinator) probeGRPC() bool {
	client, err := grpcsource.Dial(c.ctx, c.opts.GRPCEndpoint)
	if err != nil {
		return false
	}
	defer client.Close()
	client.WithToken(c.opts.GRPCToken)

	probeCtx, cancel := context.WithTimeout(c.ctx, grpcProbeTimeout)
	defer cancel()

	ch, err := client.Subscribe(probeCtx, c.subscribeRequest())
	if err != nil {
		return false
	}
	select {
	case _, ok := <-ch:
		return ok
	case <-probeCtx.Done():
		return false
	}
}

func (c *Coordinator) consumeGRPC(ch <-chan grpcsource.Update) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case upd, ok := <-ch:
			if !ok {
				return
			}
			c.handleGRPCUpdate(upd)
		}
	}
}

func (c *Coordinator) handleGRPCUpdate(upd grpcsource.Update) {
	switch {
	case upd.Account != nil:
		c.handleGRPCAccount(upd.Account)
	case upd.Transaction != nil:
		c.handleGRPCTransaction(upd.Transaction)
	}
}

func (c *Coordinator) handleGRPCAccount(a *grpcsource.AccountUpdate) {
	d, ok := c.opts.Registry.ByProgramID(a.Owner)
	if !ok {
		return
	}
	blob, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		c.stats.Errors.Add(1)
		return
	}
	ev, err := d.ParseAccount(a.Pubkey, blob, a.Slot)
	c.emit(ev, err)
}

func (c *Coordinator) handleGRPCTransaction(tx *grpcsource.TransactionUpdate) {
	if c.dedup.SeenOrAdd(tx.Signature) {
		observability.RecordDedupDrop()
		return
	}
	ixs := make([]solana.Instruction, len(tx.Instructions))
	for i, ri := range tx.Instructions {
		ixs[i] = solana.Instruction{ProgramIDIndex: ri.ProgramIDIndex, Accounts: ri.Accounts, Data: ri.Data}
	}
	for _, d := range c.opts.Registry.All() {
		ev, err := d.ParseTransaction(tx.Signature, tx.AccountKeys, ixs, tx.Slot)
		if err != nil {
			c.stats.Errors.Add(1)
			continue
		}
		if ev != nil {
			c.emit(ev, nil)
			return
		}
	}
}

// --- WebSocket path ---

func (c *Coordinator) tryWebSocket() bool {
	client, err := solana.NewWSClient(c.ctx, c.opts.WSEndpoint, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("ingestion: websocket connect failed")
		return false
	}

	ch, err := client.SubscribeLogs(c.ctx, solana.LogsFilter{Mentions: c.programIDs()})
	if err != nil {
		client.Close()
		c.log.Warn().Err(err).Msg("ingestion: websocket subscribe failed")
		return false
	}

	c.setMode(ModeWebSocket)
	c.consumeWebSocket(ch)
	client.Close()
	return true
}

func (c *Coordinator) consumeWebSocket(ch <-chan solana.LogNotification) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case notif, ok := <-ch:
			if !ok {
				return
			}
			c.handleLogNotification(notif)
		}
	}
}

func (c *Coordinator) handleLogNotification(notif solana.LogNotification) {
	if notif.Err != nil {
		return
	}
	d, ok := c.opts.Registry.MatchLogs(notif.Logs)
	if !ok {
		return
	}
	if c.dedup.SeenOrAdd(notif.Signature) {
		observability.RecordDedupDrop()
		return
	}
	if !c.tryAcquireFetch() {
		c.stats.Dropped.Add(1)
		return
	}
	go c.fetchAndDecodeTx(notif.Signature, notif.Slot, d)
}

// --- polling path ---

func (c *Coordinator) runPolling() {
	c.setMode(ModePolling)
	cursors := make(map[string]string)
	interval := time.Duration(c.opts.PollingIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			for _, d := range c.opts.Registry.All() {
				c.pollProgram(d, cursors)
			}
		}
	}
}

func (c *Coordinator) pollProgram(d decode.Decoder, cursors map[string]string) {
	opts := &solana.SignaturesOpts{Limit: 20, Until: cursors[d.ProgramID()]}
	sigs, err := c.opts.RPC.GetSignaturesForAddress(c.ctx, d.ProgramID(), opts)
	if err != nil {
		c.stats.Errors.Add(1)
		return
	}
	if len(sigs) == 0 {
		return
	}
	cursors[d.ProgramID()] = sigs[0].Signature

	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i]
		if c.dedup.SeenOrAdd(sig.Signature) {
			observability.RecordDedupDrop()
			continue
		}
		if !c.tryAcquireFetch() {
			c.stats.Dropped.Add(1)
			continue
		}
		go c.fetchAndDecodeTx(sig.Signature, sig.Slot, d)
	}
}

// --- shared fetch/emit plumbing ---

func (c *Coordinator) tryAcquireFetch() bool {
	for {
		cur := c.pendingFetches.Load()
		if cur >= int64(c.opts.MaxConcurrentFetches) {
			return false
		}
		if c.pendingFetches.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (c *Coordinator) releaseFetch() { c.pendingFetches.Add(-1) }

func (c *Coordinator) fetchAndDecodeTx(sig string, slot int64, d decode.Decoder) {
	defer c.releaseFetch()

	ctx, cancel := context.WithTimeout(c.ctx, time.Duration(c.opts.FetchTimeoutMs)*time.Millisecond)
	defer cancel()

	tx, err := c.opts.RPC.GetParsedTransaction(ctx, sig)
	if err != nil {
		c.stats.Errors.Add(1)
		return
	}
	if tx == nil || tx.Message == nil {
		return
	}
	ev, err := d.ParseTransaction(sig, tx.Message.AccountKeys, tx.Message.Instructions, slot)
	c.emit(ev, err)
}

// emit records stats and forwards a non-nil event. A nil event with a nil
// error is a decode non-match (not every account owned by a DEX is a
// pool) and is silently dropped, not logged as an error.
func (c *Coordinator) emit(ev domain.PoolEvent, err error) {
	c.stats.EventsReceived.Add(1)
	if err != nil {
		c.stats.Errors.Add(1)
		observability.RecordDecodeError()
		return
	}
	if ev == nil {
		return
	}
	c.stats.PoolsDetected.Add(1)
	c.stats.recordEventNow()

	if newPool, ok := ev.(domain.NewPoolEvent); ok {
		observability.RecordPoolEventDetected(newPool.Dex.String())
	}

	select {
	case c.out <- ev:
	case <-c.ctx.Done():
	}
}
