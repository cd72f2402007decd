package events

import (
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// ReconnectBackoff produces the delay before each reconnect attempt:
// exponential from Base, capped at Cap, optional percent jitter. The current
// delay is observable so the reconnect loop can be tested without timers.
type ReconnectBackoff struct {
	base      time.Duration
	cap       time.Duration
	jitterPct uint64

	mu      sync.Mutex
	b       retry.Backoff
	current time.Duration
}

func NewReconnectBackoff(base, cap time.Duration, jitterPct uint64) *ReconnectBackoff {
	rb := &ReconnectBackoff{base: base, cap: cap, jitterPct: jitterPct}
	rb.b = rb.build()
	return rb
}

func (rb *ReconnectBackoff) build() retry.Backoff {
	b := retry.NewExponential(rb.base)
	b = retry.WithCappedDuration(rb.cap, b)
	if rb.jitterPct > 0 {
		b = retry.WithJitterPercent(rb.jitterPct, b)
	}
	return b
}

// Next advances the backoff and returns the delay to wait before the next
// attempt.
func (rb *ReconnectBackoff) Next() time.Duration {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	d, stop := rb.b.Next()
	if stop {
		d = rb.cap
	}
	rb.current = d
	return d
}

// Current returns the delay handed out by the last Next, zero before any
// attempt and after Reset.
func (rb *ReconnectBackoff) Current() time.Duration {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.current
}

// Reset restarts the sequence after a successful connect.
func (rb *ReconnectBackoff) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.b = rb.build()
	rb.current = 0
}
