package domain

import "time"

type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
)

// BackoffPolicy computes the delay before the next reconciliation attempt.
type BackoffPolicy struct {
	Strategy     BackoffStrategy
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Delay returns min(initial * 2^attempt, max) for exponential backoff or
// min(initial * attempt, max) for linear. attempt is 1-based.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch p.Strategy {
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	default:
		// Guard the shift: past 62 bits the multiplication wraps around.
		if attempt > 62 {
			return p.MaxDelay
		}
		delay = p.InitialDelay * time.Duration(int64(1)<<uint(attempt))
	}

	if delay <= 0 || delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
