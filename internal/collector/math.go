package collector

import "math"

// percent calculates the percentage of count over total, rounding half to even and returning 0 if total is 0.
func percent(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(count*MaxPercentage) / float64(total)))
}
