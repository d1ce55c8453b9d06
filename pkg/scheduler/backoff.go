package scheduler

import "time"

// Backoff produces reconnect delays that grow by Factor from Initial up
// to Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64

	next time.Duration
}

// DefaultBackoff is used for both peripherals.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2}
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.Initial
	}
	d := b.next
	if d > b.Max {
		d = b.Max
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2
	}
	b.next = time.Duration(float64(d) * factor)
	if b.next > b.Max {
		b.next = b.Max
	}
	return d
}

// Reset starts the sequence again from Initial.
func (b *Backoff) Reset() {
	b.next = 0
}
