package guard

// ComputeCap returns the maximum HTLC size in satoshis for a channel with
// the given local balance and capacity, reserving floor×capacity from
// forwarding. The result is clamped to [1, localBalance]: the node rejects a
// zero max_htlc, and the cap can never exceed what the channel could actually
// forward.
func ComputeCap(localBalance, capacity int64, floor float64) int64 {
	capSat := localBalance - int64(float64(capacity)*floor)
	if capSat > localBalance {
		capSat = localBalance
	}
	if capSat < 1 {
		capSat = 1
	}
	return capSat
}
