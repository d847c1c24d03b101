package split

import "math"

const (
	// TotalShareBps is the full pie: recipient shares always sum to this.
	TotalShareBps = 10000

	// DefaultFeeBps is the terminal fallback for both platform and partner
	// fees when neither brand config nor environment provides a positive
	// value.
	DefaultFeeBps = 50
)

// ClampBps coerces an arbitrary numeric fee value into [0, TotalShareBps].
// Non-finite values collapse to 0; fractional values are floored.
func ClampBps(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	n := int(math.Floor(v))
	if n < 0 {
		return 0
	}
	if n > TotalShareBps {
		return TotalShareBps
	}
	return n
}
