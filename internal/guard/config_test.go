package guard

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig("992114151279362049")
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing chan id", func(c *Config) { c.ChanID = "" }},
		{"negative lower threshold", func(c *Config) { c.LowerThreshold = -0.1 }},
		{"lower threshold at one", func(c *Config) { c.LowerThreshold = 1.0 }},
		{"upper equals lower", func(c *Config) { c.UpperThreshold = c.LowerThreshold }},
		{"upper below lower", func(c *Config) { c.UpperThreshold = 0.2 }},
		{"upper at one", func(c *Config) { c.UpperThreshold = 1.0 }},
		{"negative floor", func(c *Config) { c.LiquidityFloor = -0.01 }},
		{"floor at one", func(c *Config) { c.LiquidityFloor = 1.0 }},
		{"negative blocker ppm", func(c *Config) { c.BlockerPPM = -1 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"negative poll interval", func(c *Config) { c.PollInterval = -time.Second }},
		{"zero htlc threshold", func(c *Config) { c.HTLCChangeThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("992114151279362049")
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestConfigValidate_BoundaryValues(t *testing.T) {
	cfg := DefaultConfig("992114151279362049")
	cfg.LowerThreshold = 0
	cfg.LiquidityFloor = 0
	cfg.BlockerPPM = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero lower bound values should validate: %v", err)
	}
}
