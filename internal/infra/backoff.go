package infra

import (
	"time"
)

const (
	// Oracle fetches are latency-sensitive: cap retries well below the
	// price staleness window so a recovering feed resumes quickly.
	baseDelay = 500 * time.Millisecond
	maxDelay  = 30 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given
// retry count: baseDelay * 2^retryCount, capped at maxDelay.
// A negative retryCount returns baseDelay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}

	// 2^30 * baseDelay is already far beyond maxDelay; cap early to
	// avoid shift overflow.
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)
	if backoff > maxDelay {
		return maxDelay
	}

	return backoff
}
