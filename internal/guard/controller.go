package guard

import (
	"context"
	"errors"
	"fmt"
	"log"

	"channel-guard/internal/domain"
	"channel-guard/internal/lnd"
	"channel-guard/internal/observability"
	"channel-guard/internal/storage"
)

// Controller is the per-channel decision engine. Given a fresh channel
// snapshot it decides between arming the fee blocker, lifting it, pushing an
// HTLC-cap-only update, or doing nothing, and applies the decision to the
// node. Control state is persisted before the node is touched so a crash
// between the two never loses the original fee.
type Controller struct {
	cfg    Config
	client lnd.Client
	states storage.StateStore
	logger *log.Logger
}

// Result describes what one evaluation did.
type Result struct {
	Action        string  // domain.Action* constant
	Ratio         float64 // liquidity ratio observed
	CapSat        int64   // HTLC cap computed for this snapshot
	FeeRatePPM    int64   // fee rate in effect after the action
	BlockerActive bool
}

// NewController creates a controller for one guarded channel.
func NewController(cfg Config, client lnd.Client, states storage.StateStore, logger *log.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		client: client,
		states: states,
		logger: logger,
	}
}

// Evaluate runs one decision cycle against the given snapshot. Policy
// update failures are returned to the caller after the persisted state has
// already recorded the intent; the next successful cycle converges the node
// to the recorded state.
func (c *Controller) Evaluate(ctx context.Context, snap *domain.ChannelSnapshot) (*Result, error) {
	state, err := c.loadState(ctx)
	if err != nil {
		return nil, err
	}

	ratio := snap.LiquidityRatio()
	capSat := ComputeCap(snap.LocalBalance, snap.Capacity, c.cfg.LiquidityFloor)

	switch {
	case !state.BlockerActive && ratio < c.cfg.LowerThreshold:
		return c.block(ctx, snap, state, ratio, capSat)

	case state.BlockerActive && ratio > c.cfg.UpperThreshold:
		return c.unblock(ctx, snap, state, ratio, capSat)

	case capSat != snap.MaxHTLCSat && c.ratioMoved(state, ratio):
		return c.updateCap(ctx, snap, state, ratio, capSat)
	}

	return &Result{
		Action:        domain.ActionNone,
		Ratio:         ratio,
		CapSat:        capSat,
		FeeRatePPM:    snap.FeeRatePPM,
		BlockerActive: state.BlockerActive,
	}, nil
}

// ratioMoved reports whether the liquidity ratio has moved far enough since
// the last pushed cap to justify another update. A channel that has never
// had a cap pushed always qualifies.
func (c *Controller) ratioMoved(state *domain.ChannelControlState, ratio float64) bool {
	if state.LastHTLCRatio == nil {
		return true
	}
	diff := ratio - *state.LastHTLCRatio
	if diff < 0 {
		diff = -diff
	}
	return diff >= c.cfg.HTLCChangeThreshold
}

// block arms the fee blocker: the pre-block fee is persisted first, then the
// prohibitive rate and a fresh cap are pushed to the node.
func (c *Controller) block(ctx context.Context, snap *domain.ChannelSnapshot, state *domain.ChannelControlState, ratio float64, capSat int64) (*Result, error) {
	originalFee := snap.FeeRatePPM
	state.BlockerActive = true
	state.OriginalFeePPM = &originalFee
	if err := c.states.Put(ctx, c.cfg.ChanID, state); err != nil {
		return nil, fmt.Errorf("persist blocker state: %w", err)
	}

	c.logger.Printf("liquidity %.4f below %.4f, arming fee blocker: fee %d -> %d ppm, max htlc %d sat",
		ratio, c.cfg.LowerThreshold, originalFee, c.cfg.BlockerPPM, capSat)

	if err := c.applyPolicy(ctx, snap, c.cfg.BlockerPPM, capSat); err != nil {
		return nil, err
	}

	state.LastHTLCRatio = &ratio
	if err := c.states.Put(ctx, c.cfg.ChanID, state); err != nil {
		return nil, fmt.Errorf("persist htlc ratio: %w", err)
	}

	return &Result{
		Action:        domain.ActionBlock,
		Ratio:         ratio,
		CapSat:        capSat,
		FeeRatePPM:    c.cfg.BlockerPPM,
		BlockerActive: true,
	}, nil
}

// unblock lifts the fee blocker and restores the stored fee. A missing
// stored fee falls back to the fee currently on the node, which while
// blocked is the blocker rate; that is still better than guessing.
func (c *Controller) unblock(ctx context.Context, snap *domain.ChannelSnapshot, state *domain.ChannelControlState, ratio float64, capSat int64) (*Result, error) {
	restoreFee := snap.FeeRatePPM
	if state.OriginalFeePPM != nil {
		restoreFee = *state.OriginalFeePPM
	} else {
		c.logger.Printf("WARN: no stored fee to restore for %s, keeping current %d ppm", c.cfg.ChanID, restoreFee)
	}

	state.BlockerActive = false
	state.OriginalFeePPM = nil
	if err := c.states.Put(ctx, c.cfg.ChanID, state); err != nil {
		return nil, fmt.Errorf("persist blocker state: %w", err)
	}

	c.logger.Printf("liquidity %.4f above %.4f, lifting fee blocker: restoring fee %d ppm, max htlc %d sat",
		ratio, c.cfg.UpperThreshold, restoreFee, capSat)

	if err := c.applyPolicy(ctx, snap, restoreFee, capSat); err != nil {
		return nil, err
	}

	state.LastHTLCRatio = &ratio
	if err := c.states.Put(ctx, c.cfg.ChanID, state); err != nil {
		return nil, fmt.Errorf("persist htlc ratio: %w", err)
	}

	return &Result{
		Action:        domain.ActionUnblock,
		Ratio:         ratio,
		CapSat:        capSat,
		FeeRatePPM:    restoreFee,
		BlockerActive: false,
	}, nil
}

// updateCap pushes a new HTLC cap while leaving the fee rate as it stands
// on the node.
func (c *Controller) updateCap(ctx context.Context, snap *domain.ChannelSnapshot, state *domain.ChannelControlState, ratio float64, capSat int64) (*Result, error) {
	c.logger.Printf("liquidity %.4f, adjusting max htlc %d -> %d sat (fee unchanged at %d ppm)",
		ratio, snap.MaxHTLCSat, capSat, snap.FeeRatePPM)

	if err := c.applyPolicy(ctx, snap, snap.FeeRatePPM, capSat); err != nil {
		return nil, err
	}

	state.LastHTLCRatio = &ratio
	if err := c.states.Put(ctx, c.cfg.ChanID, state); err != nil {
		return nil, fmt.Errorf("persist htlc ratio: %w", err)
	}

	return &Result{
		Action:        domain.ActionHTLCOnly,
		Ratio:         ratio,
		CapSat:        capSat,
		FeeRatePPM:    snap.FeeRatePPM,
		BlockerActive: state.BlockerActive,
	}, nil
}

// applyPolicy pushes the full policy for the channel, carrying over the
// snapshot's base fee, min HTLC and time lock delta unchanged.
func (c *Controller) applyPolicy(ctx context.Context, snap *domain.ChannelSnapshot, feePPM, capSat int64) error {
	update := &lnd.PolicyUpdate{
		ChannelPoint:  snap.ChannelPoint,
		BaseFeeMsat:   snap.BaseFeeMsat,
		FeeRatePPM:    feePPM,
		TimeLockDelta: snap.TimeLockDelta,
		MaxHTLCMsat:   capSat * 1000,
		MinHTLCMsat:   snap.MinHTLCMsat,
	}

	err := c.client.UpdateChanPolicy(ctx, update)
	observability.RecordPolicyUpdate(err)
	if err != nil {
		c.logger.Printf("WARN: policy update for %s failed: %v", c.cfg.ChanID, err)
		return fmt.Errorf("update policy: %w", err)
	}
	return nil
}

// loadState fetches the persisted control state, starting fresh for a
// channel never seen before.
func (c *Controller) loadState(ctx context.Context) (*domain.ChannelControlState, error) {
	state, err := c.states.Get(ctx, c.cfg.ChanID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &domain.ChannelControlState{}, nil
		}
		return nil, fmt.Errorf("load control state: %w", err)
	}
	return state, nil
}
