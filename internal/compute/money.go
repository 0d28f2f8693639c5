package compute

import "math"

// Round2 rounds a monetary value to centavos. math.Round avoids the
// truncation bias of a plain cast.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
