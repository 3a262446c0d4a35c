package guard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"channel-guard/internal/domain"
	"channel-guard/internal/lnd"
	"channel-guard/internal/observability"
	"channel-guard/internal/storage"
)

// Supervision limits.
const (
	maxConsecutiveNotFound  = 3
	maxConsecutiveTransient = 5
	maxBackoff              = 60 * time.Second
	statusLogInterval       = 60 * time.Second
)

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Config Config
	Client lnd.Client
	States storage.StateStore

	// Observations, when set, receives one archived record per successful
	// poll. Archive failures are logged and never stop the guard.
	Observations storage.ObservationStore

	// Events, when set, is a nudge channel: a receive cuts the current
	// sleep short so the guard reacts to channel events faster than the
	// poll interval.
	Events <-chan struct{}

	Logger *log.Logger
}

// Supervisor drives the poll loop: snapshot, evaluate, sleep, forever. It
// classifies failures into "channel gone" and "everything else" and gives up
// after a bounded streak of either, leaving restart policy to the process
// manager.
type Supervisor struct {
	cfg          Config
	client       lnd.Client
	controller   *Controller
	observations storage.ObservationStore
	events       <-chan struct{}
	logger       *log.Logger

	ourPubkey string

	// status log throttle
	lastLogTime time.Time
	lastRatio   float64
	loggedOnce  bool
}

// NewSupervisor creates a supervisor for one guarded channel.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	return &Supervisor{
		cfg:          opts.Config,
		client:       opts.Client,
		controller:   NewController(opts.Config, opts.Client, opts.States, opts.Logger),
		observations: opts.Observations,
		events:       opts.Events,
		logger:       opts.Logger,
	}
}

// Run polls until the context is cancelled or a failure streak exhausts the
// retry budget. Cancellation returns nil; exhaustion returns the last error.
func (s *Supervisor) Run(ctx context.Context) error {
	info, err := s.client.GetInfo(ctx)
	if err != nil {
		return fmt.Errorf("get node info: %w", err)
	}
	s.ourPubkey = info.IdentityPubkey

	s.logger.Printf("guarding channel %s on node %s: thresholds %.2f/%.2f, floor %.2f, blocker %d ppm, poll %s",
		s.cfg.ChanID, s.ourPubkey, s.cfg.LowerThreshold, s.cfg.UpperThreshold,
		s.cfg.LiquidityFloor, s.cfg.BlockerPPM, s.cfg.PollInterval)

	var consecutiveNotFound, consecutiveTransient int

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("shutdown requested, guard for %s stopped", s.cfg.ChanID)
			return nil
		default:
		}

		_, err := s.poll(ctx)

		switch {
		case err == nil:
			consecutiveNotFound, consecutiveTransient = 0, 0
			observability.RecordPoll("success")
			observability.UpdateFailureCounts(0, 0)

			if !s.sleep(ctx, s.cfg.PollInterval) {
				s.logger.Printf("shutdown requested, guard for %s stopped", s.cfg.ChanID)
				return nil
			}

		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			s.logger.Printf("shutdown requested, guard for %s stopped", s.cfg.ChanID)
			return nil

		case errors.Is(err, lnd.ErrChannelNotFound):
			consecutiveNotFound++
			observability.RecordPoll("not_found")
			observability.UpdateFailureCounts(consecutiveNotFound, consecutiveTransient)

			if consecutiveNotFound >= maxConsecutiveNotFound {
				s.logger.Printf("channel %s not found %d times in a row, giving up", s.cfg.ChanID, consecutiveNotFound)
				return fmt.Errorf("channel %s vanished: %w", s.cfg.ChanID, err)
			}

			s.logger.Printf("WARN: channel %s not found (%d/%d): %v", s.cfg.ChanID, consecutiveNotFound, maxConsecutiveNotFound, err)
			if !s.sleep(ctx, s.cfg.PollInterval) {
				s.logger.Printf("shutdown requested, guard for %s stopped", s.cfg.ChanID)
				return nil
			}

		default:
			consecutiveTransient++
			observability.RecordPoll("error")
			observability.UpdateFailureCounts(consecutiveNotFound, consecutiveTransient)

			if consecutiveTransient >= maxConsecutiveTransient {
				s.logger.Printf("giving up after %d consecutive errors: %v", consecutiveTransient, err)
				return fmt.Errorf("too many consecutive poll errors: %w", err)
			}

			delay := backoffDelay(s.cfg.PollInterval, consecutiveTransient)
			s.logger.Printf("WARN: poll failed (%d/%d), retrying in %s: %v", consecutiveTransient, maxConsecutiveTransient, delay, err)
			if !s.sleep(ctx, delay) {
				s.logger.Printf("shutdown requested, guard for %s stopped", s.cfg.ChanID)
				return nil
			}
		}
	}
}

// poll runs one snapshot-evaluate-record cycle.
func (s *Supervisor) poll(ctx context.Context) (*Result, error) {
	snap, err := s.observe(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.controller.Evaluate(ctx, snap)
	if err != nil {
		return nil, err
	}

	if result.Action != domain.ActionNone {
		observability.RecordAction(result.Action)
	}
	observability.UpdateChannelState(result.Ratio, result.CapSat, result.FeeRatePPM, result.BlockerActive)

	s.archive(ctx, snap, result)

	if result.Action != domain.ActionNone || s.shouldLogStatus(time.Now(), result.Ratio) {
		s.logger.Printf("channel %s: liquidity %.4f, fee %d ppm, max htlc %d sat, blocker=%v",
			s.cfg.ChanID, result.Ratio, result.FeeRatePPM, result.CapSat, result.BlockerActive)
		s.lastLogTime = time.Now()
		s.lastRatio = result.Ratio
		s.loggedOnce = true
	}

	return result, nil
}

// observe builds a fresh channel snapshot from the channel list and the
// graph edge. The local policy is re-read every cycle so updates carry the
// node's current base fee, min HTLC and time lock delta rather than stale
// copies.
func (s *Supervisor) observe(ctx context.Context) (*domain.ChannelSnapshot, error) {
	channels, err := s.client.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	var channel *lnd.Channel
	for i := range channels {
		if channels[i].ChanID == s.cfg.ChanID {
			channel = &channels[i]
			break
		}
	}
	if channel == nil {
		return nil, fmt.Errorf("%w: %s not in channel list", lnd.ErrChannelNotFound, s.cfg.ChanID)
	}

	edge, err := s.client.GetChanInfo(ctx, s.cfg.ChanID)
	if err != nil {
		return nil, fmt.Errorf("get channel info: %w", err)
	}

	policy := edge.PolicyForNode(s.ourPubkey)
	if policy == nil {
		return nil, fmt.Errorf("no local policy on channel %s", s.cfg.ChanID)
	}

	// The node reports 0 for an uncapped max_htlc; treat that as the
	// full capacity so cap comparisons stay meaningful.
	maxHTLCSat := policy.MaxHTLCMsat / 1000
	if policy.MaxHTLCMsat == 0 {
		maxHTLCSat = channel.Capacity
	}

	return &domain.ChannelSnapshot{
		ChanID:        channel.ChanID,
		ChannelPoint:  channel.ChannelPoint,
		Capacity:      channel.Capacity,
		LocalBalance:  channel.LocalBalance,
		FeeRatePPM:    policy.FeeRatePPM,
		BaseFeeMsat:   policy.BaseFeeMsat,
		MinHTLCMsat:   policy.MinHTLCMsat,
		MaxHTLCSat:    maxHTLCSat,
		TimeLockDelta: policy.TimeLockDelta,
	}, nil
}

// archive records the poll outcome, best effort.
func (s *Supervisor) archive(ctx context.Context, snap *domain.ChannelSnapshot, result *Result) {
	if s.observations == nil {
		return
	}

	o := &domain.Observation{
		ChanID:        snap.ChanID,
		TimestampMs:   time.Now().UnixMilli(),
		Capacity:      snap.Capacity,
		LocalBalance:  snap.LocalBalance,
		Ratio:         result.Ratio,
		FeeRatePPM:    result.FeeRatePPM,
		MaxHTLCSat:    result.CapSat,
		BlockerActive: result.BlockerActive,
		Action:        result.Action,
	}
	if err := s.observations.Insert(ctx, o); err != nil {
		s.logger.Printf("WARN: archive observation: %v", err)
	}
}

// shouldLogStatus throttles no-op status lines: log when the ratio changed
// or once per statusLogInterval, whichever comes first.
func (s *Supervisor) shouldLogStatus(now time.Time, ratio float64) bool {
	if !s.loggedOnce {
		return true
	}
	if ratio != s.lastRatio {
		return true
	}
	return now.Sub(s.lastLogTime) >= statusLogInterval
}

// sleep waits for the delay, an event nudge, or cancellation. Returns false
// on cancellation.
func (s *Supervisor) sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-s.events:
		return true
	}
}

// backoffDelay returns the sleep before retry n (1-based), doubling from the
// poll interval and capped at maxBackoff.
func backoffDelay(interval time.Duration, n int) time.Duration {
	delay := interval
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
