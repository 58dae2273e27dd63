package jobs

import "time"

// MaxDelay is the longest delay SQS accepts on a message.
const MaxDelay = 15 * time.Minute

// RetryPolicy bounds attempts for one job kind.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Delay is the wait before the given attempt: base * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= MaxDelay {
			return MaxDelay
		}
	}
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

// Policies maps each kind to its retry policy.
type Policies map[Kind]RetryPolicy

// DefaultPolicies gives webhook-driven processing 3 attempts and transcript polling 6.
func DefaultPolicies() Policies {
	return Policies{
		KindProcessCall:     {MaxAttempts: 3, BaseDelay: 5 * time.Second},
		KindFetchTranscript: {MaxAttempts: 6, BaseDelay: 10 * time.Second},
	}
}

func (p Policies) For(kind Kind) RetryPolicy {
	if policy, ok := p[kind]; ok {
		return policy
	}
	return RetryPolicy{MaxAttempts: 1}
}
