// Package config loads and validates the environment-variable configuration
// surface. Every variable is parsed by a typed loader method (str, intVal,
// uintVal, floatVal, boolVal, strList);
// validation failures are collected rather than raised one at a time, so a
// bad config surfaces as a single line-by-line error listing at startup.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the fully-parsed, validated runtime configuration.
type Config struct {
	// gRPC / RPC substrate
	GRPCEndpoint    string
	GRPCToken       string
	HeliusAPIKey    string
	BackupRPCURLs   []string
	ShyftRPCRPS     float64
	HeliusRPCRPS    float64
	HeliusPriority  int
	ShyftPriority   int
	SolanaPriority  int
	RPCCacheTTLMs   int
	MaxConcurrentFetches int
	FetchTimeoutMs  int
	RPCPollingIntervalMs int
	EnableGRPCAutoDetect bool

	// Signer
	PrivateKey string

	// Trading params
	BuyAmountSOL           float64
	MaxSlippageBPS         int
	TakeProfitPercent      float64
	StopLossPercent        float64
	MaxPositionSizeSOL     float64
	MaxConcurrentPositions int

	// Bundle params
	JitoBlockEngineURL string
	JitoTipLamports    uint64
	JitoTipPercent     float64
	JitoMaxTipLamports uint64

	// Risk params
	MinLiquiditySOL     float64
	MaxTopHolderPercent float64
	RiskScoreThreshold  int
	EnableHoneypotCheck bool
	MaxTaxPercent       float64

	// DEX toggles
	EnableRaydium bool
	EnablePumpfun bool
	EnableOrca    bool

	// Mode switches
	DryRun    bool
	UseDevnet bool

	// Auto-sweep
	EnableAutoSweep   bool
	ColdWalletAddress string

	// Logging
	LogLevel   string
	LogFile    string
	LogConsole bool
}

// LoadEnvFile reads a simple KEY=VALUE .env file into the process
// environment, skipping blank lines and '#' comments, and never overwriting
// a variable already set in the environment. Missing files are not an
// error: exported shell vars alone are a valid configuration.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if _, exists := os.LookupEnv(k); !exists {
			os.Setenv(k, v)
		}
	}
	return scanner.Err()
}

type loader struct {
	errs []error
}

func (l *loader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func (l *loader) strList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *loader) intVal(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: invalid integer %q: %w", key, v, err))
		return def
	}
	return n
}

func (l *loader) uintVal(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, v, err))
		return def
	}
	return n
}

func (l *loader) floatVal(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: invalid float %q: %w", key, v, err))
		return def
	}
	return f
}

func (l *loader) boolVal(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: invalid boolean %q: %w", key, v, err))
		return def
	}
	return b
}

func (l *loader) require(key, val string) {
	if strings.TrimSpace(val) == "" {
		l.errs = append(l.errs, fmt.Errorf("%s: required and not set", key))
	}
}

// Load parses and validates the environment into a Config. On any
// validation failure it returns a joined error listing every problem found,
// not just the first.
func Load() (*Config, error) {
	l := &loader{}

	cfg := &Config{
		GRPCEndpoint:   l.str("GRPC_ENDPOINT", ""),
		GRPCToken:      l.str("GRPC_TOKEN", ""),
		HeliusAPIKey:   l.str("HELIUS_API_KEY", ""),
		BackupRPCURLs:  l.strList("BACKUP_RPC_URLS"),
		ShyftRPCRPS:    l.floatVal("SHYFT_RPC_RPS", 10),
		HeliusRPCRPS:   l.floatVal("HELIUS_RPC_RPS", 10),
		HeliusPriority: l.intVal("HELIUS_PRIORITY", 1),
		ShyftPriority:  l.intVal("SHYFT_PRIORITY", 2),
		SolanaPriority: l.intVal("SOLANA_PRIORITY", 3),
		RPCCacheTTLMs:  l.intVal("RPC_CACHE_TTL_MS", 2000),
		MaxConcurrentFetches: l.intVal("MAX_CONCURRENT_FETCHES", 2),
		FetchTimeoutMs: l.intVal("FETCH_TIMEOUT_MS", 5000),
		RPCPollingIntervalMs: l.intVal("RPC_POLLING_INTERVAL_MS", 2000),
		EnableGRPCAutoDetect: l.boolVal("ENABLE_GRPC_AUTO_DETECT", true),

		PrivateKey: l.str("PRIVATE_KEY", ""),

		BuyAmountSOL:           l.floatVal("BUY_AMOUNT_SOL", 0.1),
		MaxSlippageBPS:         l.intVal("MAX_SLIPPAGE_BPS", 500),
		TakeProfitPercent:      l.floatVal("TAKE_PROFIT_PERCENT", 50),
		StopLossPercent:        l.floatVal("STOP_LOSS_PERCENT", 20),
		MaxPositionSizeSOL:     l.floatVal("MAX_POSITION_SIZE_SOL", 1.0),
		MaxConcurrentPositions: l.intVal("MAX_CONCURRENT_POSITIONS", 5),

		JitoBlockEngineURL: l.str("JITO_BLOCK_ENGINE_URL", ""),
		JitoTipLamports:    l.uintVal("JITO_TIP_LAMPORTS", 100000),
		JitoTipPercent:     l.floatVal("JITO_TIP_PERCENT", 10),
		JitoMaxTipLamports: l.uintVal("JITO_MAX_TIP_LAMPORTS", 2000000),

		MinLiquiditySOL:     l.floatVal("MIN_LIQUIDITY_SOL", 5),
		MaxTopHolderPercent: l.floatVal("MAX_TOP_HOLDER_PERCENT", 30),
		RiskScoreThreshold:  l.intVal("RISK_SCORE_THRESHOLD", 70),
		EnableHoneypotCheck: l.boolVal("ENABLE_HONEYPOT_CHECK", true),
		MaxTaxPercent:       l.floatVal("MAX_TAX_PERCENT", 10),

		EnableRaydium: l.boolVal("ENABLE_RAYDIUM", true),
		EnablePumpfun: l.boolVal("ENABLE_PUMPFUN", true),
		EnableOrca:    l.boolVal("ENABLE_ORCA", false),

		DryRun:    l.boolVal("DRY_RUN", true),
		UseDevnet: l.boolVal("USE_DEVNET", false),

		EnableAutoSweep:   l.boolVal("ENABLE_AUTO_SWEEP", false),
		ColdWalletAddress: l.str("COLD_WALLET_ADDRESS", ""),

		LogLevel:   l.str("LOG_LEVEL", "info"),
		LogFile:    l.str("LOG_FILE", ""),
		LogConsole: l.boolVal("LOG_CONSOLE", true),
	}

	if !cfg.DryRun {
		l.require("PRIVATE_KEY", cfg.PrivateKey)
	}
	if cfg.EnableAutoSweep {
		l.require("COLD_WALLET_ADDRESS", cfg.ColdWalletAddress)
	}
	if cfg.MaxConcurrentPositions <= 0 {
		l.errs = append(l.errs, errors.New("MAX_CONCURRENT_POSITIONS: must be > 0"))
	}
	if cfg.MaxPositionSizeSOL <= 0 {
		l.errs = append(l.errs, errors.New("MAX_POSITION_SIZE_SOL: must be > 0"))
	}
	if cfg.MaxConcurrentFetches <= 0 {
		l.errs = append(l.errs, errors.New("MAX_CONCURRENT_FETCHES: must be > 0"))
	}
	if cfg.RiskScoreThreshold < 0 || cfg.RiskScoreThreshold > 100 {
		l.errs = append(l.errs, errors.New("RISK_SCORE_THRESHOLD: must be within [0,100]"))
	}

	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}
	return cfg, nil
}
