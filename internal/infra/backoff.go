package infra

import "time"

// CalculateBackoff returns base * 2^retry, capped at max.
func CalculateBackoff(retry int, base, max time.Duration) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > 30 {
		return max
	}
	d := base << uint(retry)
	if d <= 0 || d > max {
		return max
	}
	return d
}
