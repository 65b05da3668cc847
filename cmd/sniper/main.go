// Package main is the sniper process: wire every component, run the
// detection-to-exit pipeline until a shutdown signal arrives, and exit
// cleanly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sniper/internal/config"
	"sniper/internal/decode"
	"sniper/internal/execution"
	"sniper/internal/ingestion"
	"sniper/internal/logging"
	"sniper/internal/orchestrator"
	"sniper/internal/position"
	"sniper/internal/risk"
	"sniper/internal/solana"
	"sniper/internal/wallet"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "sniper: load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sniper: invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: cfg.LogConsole})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sniper: build logger: %v\n", err)
		os.Exit(1)
	}

	var w *wallet.Wallet
	if !cfg.DryRun {
		w, err = wallet.FromBase58(cfg.PrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid PRIVATE_KEY")
		}
	}

	rpc, err := buildProviderManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not build RPC provider manager")
	}

	registry := buildDecoderRegistry(cfg)

	riskAnalyzer := risk.New(risk.Options{
		RPC:                 rpc,
		Wallet:              w,
		Logger:              log,
		MinLiquiditySOL:     cfg.MinLiquiditySOL,
		MaxTopHolderPercent: cfg.MaxTopHolderPercent,
		MaxTaxPercent:       cfg.MaxTaxPercent,
		EnableHoneypotCheck: cfg.EnableHoneypotCheck,
	})

	var blockEngine execution.BlockEngineClient
	if cfg.JitoBlockEngineURL != "" {
		blockEngine = execution.NewBlockEngineClient(cfg.JitoBlockEngineURL)
	}
	executor := execution.New(execution.Options{
		RPC:            rpc,
		BlockEngine:    blockEngine,
		Wallet:         w,
		Logger:         log,
		DryRun:         cfg.DryRun,
		TipStrategy:    execution.TipDynamic,
		TipLamports:    cfg.JitoTipLamports,
		TipPercent:     cfg.JitoTipPercent,
		MaxTipLamports: cfg.JitoMaxTipLamports,
	})

	positions := position.New(position.Options{
		RPC:                    rpc,
		Logger:                 log,
		MaxConcurrentPositions: cfg.MaxConcurrentPositions,
		MaxPositionSizeSOL:     cfg.MaxPositionSizeSOL,
	})

	coordinator := ingestion.New(ingestion.Options{
		GRPCEndpoint:         cfg.GRPCEndpoint,
		GRPCToken:            cfg.GRPCToken,
		WSEndpoint:           wsEndpointFor(cfg),
		UseDevnet:            cfg.UseDevnet,
		EnableGRPCAutoDetect: cfg.EnableGRPCAutoDetect,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		FetchTimeoutMs:       cfg.FetchTimeoutMs,
		PollingIntervalMs:    cfg.RPCPollingIntervalMs,
		Registry:             registry,
		RPC:                  rpc,
		Logger:               log,
	})

	orch := orchestrator.New(orchestrator.Options{
		Ingestion:           coordinator,
		Risk:                riskAnalyzer,
		Executor:            executor,
		Positions:            positions,
		RPC:                 rpc,
		Wallet:               w,
		Logger:               log,
		RiskScoreThreshold:  cfg.RiskScoreThreshold,
		BuyAmountSOL:        cfg.BuyAmountSOL,
		MaxSlippageBPS:      cfg.MaxSlippageBPS,
		TakeProfitPercent:   cfg.TakeProfitPercent,
		StopLossPercent:     cfg.StopLossPercent,
		EnableAutoSweep:     cfg.EnableAutoSweep,
		ColdWalletAddress:   cfg.ColdWalletAddress,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Bool("dry_run", cfg.DryRun).Msg("sniper starting")
	orch.Start(ctx)

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received, draining")
	cancel()
	orch.Stop()
	log.Info().Msg("sniper stopped cleanly")
}

// buildProviderManager assembles the RPC provider table from config: a
// Helius endpoint at HELIUS_PRIORITY (when an API key is configured),
// followed by each backup URL alternating SHYFT_PRIORITY/SOLANA_PRIORITY,
// per spec.md §6's env surface and §9's note to treat the provider-manager
// integration as canonical.
func buildProviderManager(cfg *config.Config) (*solana.ProviderManager, error) {
	var providers []solana.ProviderConfig
	if cfg.HeliusAPIKey != "" {
		providers = append(providers, solana.ProviderConfig{
			Name:     "helius",
			URL:      "https://mainnet.helius-rpc.com/?api-key=" + cfg.HeliusAPIKey,
			RPSLimit: cfg.HeliusRPCRPS,
			Priority: cfg.HeliusPriority,
		})
	}
	for i, url := range cfg.BackupRPCURLs {
		priority := cfg.ShyftPriority
		if i%2 == 1 {
			priority = cfg.SolanaPriority
		}
		providers = append(providers, solana.ProviderConfig{
			Name:     fmt.Sprintf("backup-%d", i),
			URL:      url,
			RPSLimit: cfg.ShyftRPCRPS,
			Priority: priority,
		})
	}
	return solana.NewProviderManager(solana.ManagerOptions{
		Providers:           providers,
		CacheTTL:            time.Duration(cfg.RPCCacheTTLMs) * time.Millisecond,
		MaxConsecutiveFails: solana.DefaultMaxConsecutiveFailures,
		Cooldown:            solana.DefaultCooldown,
	})
}

// wsEndpointFor derives the Helius WebSocket endpoint from the same API
// key used for RPC, since no separate WS env var is defined.
func wsEndpointFor(cfg *config.Config) string {
	if cfg.HeliusAPIKey == "" {
		return ""
	}
	return "wss://mainnet.helius-rpc.com/?api-key=" + cfg.HeliusAPIKey
}

func buildDecoderRegistry(cfg *config.Config) *decode.Registry {
	var decoders []decode.Decoder
	if cfg.EnableRaydium {
		decoders = append(decoders, decode.NewRaydiumDecoder())
	}
	if cfg.EnablePumpfun {
		decoders = append(decoders, decode.NewPumpfunDecoder())
	}
	if cfg.EnableOrca {
		decoders = append(decoders, decode.NewOrcaDecoder())
	}
	return decode.NewRegistry(decoders...)
}
