package archive

import "time"

// Backoff returns the delay before retry attempt n, counting from 1.
type Backoff func(attempt int) time.Duration

// LinearBackoff waits attempt*step before each retry: step, 2*step, 3*step...
func LinearBackoff(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			return 0
		}
		return time.Duration(attempt) * step
	}
}
