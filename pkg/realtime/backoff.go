package realtime

import "time"

// ReconnectAttempt is the retry bookkeeping of a manager
type ReconnectAttempt struct {
	Count     int    `json:"count"`
	LastError string `json:"lastError,omitempty"`
}

// Backoff computes linear reconnect delays: the n-th consecutive failure
// waits BaseInterval*n. It is not safe for concurrent use; the manager
// guards it with its own lock.
type Backoff struct {
	BaseInterval time.Duration
	MaxAttempts  int
	attempt      ReconnectAttempt
}

// NewBackoff creates a backoff policy
func NewBackoff(base time.Duration, maxAttempts int) *Backoff {
	if base <= 0 {
		base = DefaultBaseInterval * time.Millisecond
	}
	return &Backoff{BaseInterval: base, MaxAttempts: maxAttempts}
}

// WithBaseInterval sets the linear step
func (b *Backoff) WithBaseInterval(base time.Duration) *Backoff {
	b.BaseInterval = base
	return b
}

// WithMaxAttempts sets the retry cap
func (b *Backoff) WithMaxAttempts(maxAttempts int) *Backoff {
	b.MaxAttempts = maxAttempts
	return b
}

// Next records a failure and returns the delay before the next retry. ok is
// false once MaxAttempts retries were spent; the counter then stays put.
func (b *Backoff) Next(reason string) (delay time.Duration, ok bool) {
	b.attempt.LastError = reason
	if b.attempt.Count >= b.MaxAttempts {
		return 0, false
	}
	b.attempt.Count++
	return b.Delay(b.attempt.Count), true
}

// Delay is the wait before retry number attempt
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return b.BaseInterval * time.Duration(attempt)
}

// Reset zeroes the counter after a successful connect or a forced reconnect
func (b *Backoff) Reset() {
	b.attempt = ReconnectAttempt{}
}

// Exhausted reports whether no automatic retry is left
func (b *Backoff) Exhausted() bool {
	return b.attempt.Count >= b.MaxAttempts
}

// Attempt returns a copy of the current bookkeeping
func (b *Backoff) Attempt() ReconnectAttempt {
	return b.attempt
}
