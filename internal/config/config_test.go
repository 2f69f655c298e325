package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "slab.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	path := writeTestConfig(t, "risk:\n  imr_bps: 600\n  mmr_bps: 300\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Risk.IMRBps != 600 || cfg.Risk.MMRBps != 300 {
		t.Fatalf("explicit values not honored: %+v", cfg.Risk)
	}
	if cfg.Fees.TakerFeeBps != 10 {
		t.Fatalf("expected default taker_fee_bps=10, got %d", cfg.Fees.TakerFeeBps)
	}
	if cfg.AntiTox.BatchMs != 100 {
		t.Fatalf("expected default batch_ms=100, got %d", cfg.AntiTox.BatchMs)
	}
}

func TestValidateRejectsMMAboveIM(t *testing.T) {
	cfg := &Config{Risk: RiskConfig{IMRBps: 100, MMRBps: 200}, AntiTox: AntiToxConfig{BatchMs: 1}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when mmr_bps >= imr_bps")
	}
}

func TestValidateAcceptsSaneConfig(t *testing.T) {
	cfg := &Config{Risk: RiskConfig{IMRBps: 500, MMRBps: 250}, AntiTox: AntiToxConfig{BatchMs: 100}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
