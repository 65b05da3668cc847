package orchestrator

import (
	"context"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// runAutoSweep is the auto-sweep timer named in spec.md §1 as an
// out-of-core external collaborator: on each tick it drains any wallet
// balance above AutoSweepReserveSOL to ColdWalletAddress, built as a
// single system-transfer transaction over the same RPC substrate (C4) the
// rest of the pipeline uses.
func (o *Orchestrator) runAutoSweep(ctx context.Context) {
	coldPK, err := solanago.PublicKeyFromBase58(o.opts.ColdWalletAddress)
	if err != nil {
		o.log.Error().Err(err).Msg("auto-sweep: invalid cold wallet address, sweep disabled for this run")
		return
	}
	reserveLamports := uint64(o.opts.AutoSweepReserveSOL * 1e9)

	ticker := time.NewTicker(o.opts.AutoSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepOnce(ctx, coldPK, reserveLamports)
		}
	}
}

func (o *Orchestrator) sweepOnce(ctx context.Context, cold solanago.PublicKey, reserveLamports uint64) {
	self := o.opts.Wallet.PublicKey()
	balance, err := o.opts.RPC.GetBalance(ctx, self.String())
	if err != nil {
		o.log.Warn().Str("perf", "sweep").Err(err).Msg("auto-sweep: balance read failed")
		return
	}
	if balance <= reserveLamports {
		return
	}
	surplus := balance - reserveLamports

	blockhash, err := o.opts.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		o.log.Warn().Str("perf", "sweep").Err(err).Msg("auto-sweep: blockhash read failed")
		return
	}
	hash, err := solanago.HashFromBase58(blockhash)
	if err != nil {
		o.log.Warn().Str("perf", "sweep").Err(err).Msg("auto-sweep: invalid blockhash")
		return
	}

	ix := system.NewTransferInstruction(surplus, self, cold).Build()
	builder := solanago.NewTransactionBuilder()
	builder.AddInstruction(ix)
	builder.SetFeePayer(self)
	builder.SetRecentBlockHash(hash)
	tx, err := builder.Build()
	if err != nil {
		o.log.Warn().Str("perf", "sweep").Err(err).Msg("auto-sweep: build transaction failed")
		return
	}
	key := o.opts.Wallet.PrivateKey()
	if _, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(self) {
			return &key
		}
		return nil
	}); err != nil {
		o.log.Warn().Str("perf", "sweep").Err(err).Msg("auto-sweep: sign transaction failed")
		return
	}
	txB64, err := tx.ToBase64()
	if err != nil {
		o.log.Warn().Str("perf", "sweep").Err(err).Msg("auto-sweep: encode transaction failed")
		return
	}

	start := time.Now()
	sig, err := o.opts.RPC.SendTransaction(ctx, txB64, false)
	if err != nil {
		o.log.Warn().Str("perf", "sweep").Err(err).Msg("auto-sweep: send failed")
		return
	}
	confirmed, err := o.opts.RPC.ConfirmTransaction(ctx, sig)
	o.log.Info().Str("perf", "sweep").Str("outcome", "swept").Str("tx", sig).
		Uint64("lamports", surplus).Bool("confirmed", confirmed).Err(err).
		Int64("latency_ms", time.Since(start).Milliseconds()).Msg("auto-sweep transfer submitted")
}
