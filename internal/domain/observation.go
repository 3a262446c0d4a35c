package domain

// Guard actions recorded per poll.
const (
	ActionNone     = "NONE"
	ActionBlock    = "BLOCK"
	ActionUnblock  = "UNBLOCK"
	ActionHTLCOnly = "HTLC_ONLY"
)

// Observation is one archived poll outcome.
type Observation struct {
	ChanID        string
	TimestampMs   int64 // Unix timestamp in milliseconds
	Capacity      int64
	LocalBalance  int64
	Ratio         float64
	FeeRatePPM    int64 // fee in effect after the poll's action
	MaxHTLCSat    int64
	BlockerActive bool
	Action        string // NONE | BLOCK | UNBLOCK | HTLC_ONLY
}
