package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaultsDryRun(t *testing.T) {
	clearEnv(t, "DRY_RUN", "PRIVATE_KEY", "MAX_CONCURRENT_POSITIONS")
	os.Setenv("DRY_RUN", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrentPositions != 5 {
		t.Fatalf("expected default MAX_CONCURRENT_POSITIONS=5, got %d", cfg.MaxConcurrentPositions)
	}
}

func TestLoadRequiresPrivateKeyWhenLive(t *testing.T) {
	clearEnv(t, "DRY_RUN", "PRIVATE_KEY")
	os.Setenv("DRY_RUN", "false")
	os.Unsetenv("PRIVATE_KEY")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing PRIVATE_KEY when not dry-run")
	}
}

func TestLoadCollectsMultipleErrors(t *testing.T) {
	clearEnv(t, "DRY_RUN", "PRIVATE_KEY", "MAX_CONCURRENT_POSITIONS", "RISK_SCORE_THRESHOLD")
	os.Setenv("DRY_RUN", "false")
	os.Setenv("MAX_CONCURRENT_POSITIONS", "0")
	os.Setenv("RISK_SCORE_THRESHOLD", "500")
	_, err := Load()
	if err == nil {
		t.Fatal("expected joined error")
	}
}
