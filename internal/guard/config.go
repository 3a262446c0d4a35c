// Package guard implements the liquidity guard: the hysteresis decision
// engine, the HTLC cap calculation, and the poll supervisor that drives both
// against a Lightning node.
package guard

import (
	"fmt"
	"time"
)

// Defaults for the guard configuration.
const (
	DefaultLowerThreshold      = 0.30
	DefaultUpperThreshold      = 0.40
	DefaultLiquidityFloor      = 0.35
	DefaultBlockerPPM          = 17000
	DefaultPollInterval        = 2 * time.Second
	DefaultHTLCChangeThreshold = 0.01
)

// Config holds the tunable parameters for one guarded channel.
type Config struct {
	// ChanID is the compact numeric short channel id, decimal encoded.
	ChanID string

	// LowerThreshold arms the fee blocker when the liquidity ratio drops
	// below it. UpperThreshold disarms the blocker when the ratio rises
	// above it. The gap between them is the hysteresis dead band.
	LowerThreshold float64
	UpperThreshold float64

	// LiquidityFloor is the capacity fraction reserved from forwarding
	// when sizing the HTLC cap.
	LiquidityFloor float64

	// BlockerPPM is the prohibitive fee rate applied while blocked.
	BlockerPPM int64

	// PollInterval is the base delay between polls.
	PollInterval time.Duration

	// HTLCChangeThreshold is the minimum liquidity ratio movement since
	// the last applied cap before a new HTLC-only update is pushed.
	HTLCChangeThreshold float64
}

// DefaultConfig returns a Config for chanID with all tunables at their
// defaults.
func DefaultConfig(chanID string) Config {
	return Config{
		ChanID:              chanID,
		LowerThreshold:      DefaultLowerThreshold,
		UpperThreshold:      DefaultUpperThreshold,
		LiquidityFloor:      DefaultLiquidityFloor,
		BlockerPPM:          DefaultBlockerPPM,
		PollInterval:        DefaultPollInterval,
		HTLCChangeThreshold: DefaultHTLCChangeThreshold,
	}
}

// Validate checks the configuration for internal consistency. A config that
// fails validation must not reach the poll loop.
func (c Config) Validate() error {
	if c.ChanID == "" {
		return fmt.Errorf("chan id is required")
	}
	if c.LowerThreshold < 0 || c.LowerThreshold >= 1 {
		return fmt.Errorf("lower threshold %v out of range [0, 1)", c.LowerThreshold)
	}
	if c.UpperThreshold <= c.LowerThreshold || c.UpperThreshold >= 1 {
		return fmt.Errorf("upper threshold %v must be in (%v, 1)", c.UpperThreshold, c.LowerThreshold)
	}
	if c.LiquidityFloor < 0 || c.LiquidityFloor >= 1 {
		return fmt.Errorf("liquidity floor %v out of range [0, 1)", c.LiquidityFloor)
	}
	if c.BlockerPPM < 0 {
		return fmt.Errorf("blocker ppm %d must not be negative", c.BlockerPPM)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval %v must be positive", c.PollInterval)
	}
	if c.HTLCChangeThreshold <= 0 {
		return fmt.Errorf("htlc change threshold %v must be positive", c.HTLCChangeThreshold)
	}
	return nil
}
