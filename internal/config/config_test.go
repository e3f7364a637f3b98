package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}

	if cfg.Entsoe.Country != "DE" {
		t.Fatalf("default country: %s", cfg.Entsoe.Country)
	}
	if cfg.Optimizer.MinPrice != 0.05 || cfg.Optimizer.MaxPrice != 0.50 {
		t.Fatalf("default price bounds: %f / %f", cfg.Optimizer.MinPrice, cfg.Optimizer.MaxPrice)
	}
	if cfg.Optimizer.SolverTimeout != 30*time.Second {
		t.Fatalf("default solver timeout: %s", cfg.Optimizer.SolverTimeout)
	}
	if cfg.Scheduler.Interval != 24*time.Hour {
		t.Fatalf("default scheduler interval: %s", cfg.Scheduler.Interval)
	}
	if cfg.Ingest.Households != 100 {
		t.Fatalf("default households: %d", cfg.Ingest.Households)
	}
	if len(cfg.Pricing.PeakHours) == 0 {
		t.Fatal("default peak hours should be set")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("defaults should load: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Optimizer.FairnessWeight = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("fairness weight above 1 should fail validation")
	}

	cfg = base()
	cfg.Optimizer.MinPrice = cfg.Optimizer.MaxPrice
	if err := cfg.Validate(); err == nil {
		t.Fatal("min price equal to max price should fail validation")
	}

	cfg = base()
	cfg.Ingest.Households = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero households should fail validation")
	}

	cfg = base()
	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled telegram without credentials should fail validation")
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}

	if got := cfg.ResolveMaxPoints(0); got != cfg.Export.MaxDataPoints {
		t.Fatalf("zero override should fall back to config: %d", got)
	}
	if got := cfg.ResolveMaxPoints(500); got != 500 {
		t.Fatalf("positive override should win: %d", got)
	}
}
