package rebate

import "github.com/shopspring/decimal"

// Round2 rounds a monetary value to two decimal places, half away from
// zero. Applied everywhere money is computed or stored so concurrent awards
// accumulate to deterministic totals.
func Round2(x float64) float64 {
	out, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return out
}
