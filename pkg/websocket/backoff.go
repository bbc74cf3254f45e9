package websocket

import "time"

// Backoff produces reconnect delays that double from the initial value up to
// the cap. Reset returns it to the initial delay; the stream calls it once
// the connection proves healthy by delivering a message.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a backoff starting at initial and capped at max.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{initial: initial, max: max, current: initial}
}

// Next returns the delay to sleep before the next connection attempt and
// advances the sequence.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset returns the sequence to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}
