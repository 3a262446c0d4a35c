package domain

// ChannelSnapshot is one poll's view of the guarded channel, combining the
// channel listing entry with the local routing policy. All amounts are in
// satoshis unless the field name says otherwise.
type ChannelSnapshot struct {
	ChanID       string // compact numeric short channel id, decimal
	ChannelPoint string // funding outpoint "txid:index", handle for policy updates
	Capacity     int64
	LocalBalance int64

	// Local routing policy, read fresh each poll so updates can resend
	// unrelated fields unchanged.
	FeeRatePPM    int64
	BaseFeeMsat   int64
	MinHTLCMsat   int64
	MaxHTLCSat    int64 // normalized: "0 = unlimited" upstream becomes Capacity
	TimeLockDelta uint32
}

// LiquidityRatio returns local balance over capacity, 0 for a zero-capacity
// channel.
func (s *ChannelSnapshot) LiquidityRatio() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return float64(s.LocalBalance) / float64(s.Capacity)
}
