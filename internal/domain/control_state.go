package domain

// ChannelControlState is the persisted per-channel state machine record.
// OriginalFeePPM is only meaningful while BlockerActive is true; it holds the
// fee rate to restore when the blocker is lifted. LastHTLCRatio is the
// liquidity ratio at which the HTLC cap was last pushed to the node.
type ChannelControlState struct {
	BlockerActive  bool     `json:"blocker_active"`
	OriginalFeePPM *int64   `json:"original_fee_ppm"`
	LastHTLCRatio  *float64 `json:"last_htlc_ratio"`
}

// Clone returns a deep copy so stores never hand out aliased pointers.
func (s *ChannelControlState) Clone() *ChannelControlState {
	out := &ChannelControlState{BlockerActive: s.BlockerActive}
	if s.OriginalFeePPM != nil {
		fee := *s.OriginalFeePPM
		out.OriginalFeePPM = &fee
	}
	if s.LastHTLCRatio != nil {
		ratio := *s.LastHTLCRatio
		out.LastHTLCRatio = &ratio
	}
	return out
}
