package postscheduler

import "time"

// Backoff returns the delay before retry attempt number attempts
// (1-based): min(max, base * 2^(attempts-1)).
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
