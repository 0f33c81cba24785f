package supervisor

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultBaseDelay is the delay before the first reconnect attempt.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the un-jittered reconnect delay.
	DefaultMaxDelay = 30 * time.Second

	jitterFactor = 0.2
)

var _ backoff.BackOff = (*Policy)(nil)

// Policy is the reconnect backoff: base * 2^n, capped at max, plus up to 20%
// extra jitter. n advances on every NextBackOff and returns to zero on Reset.
// Policy is not safe for concurrent use; the Supervisor only touches it while
// holding its lock.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64

	attempt int
}

// NewPolicy creates a Policy with the given base and maximum delay.
func NewPolicy(base, maxDelay time.Duration) *Policy {
	return &Policy{BaseDelay: base, MaxDelay: maxDelay}
}

// NextBackOff returns the delay for the current attempt and advances it.
func (p *Policy) NextBackOff() time.Duration {
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	d := Delay(p.BaseDelay, p.MaxDelay, p.attempt, r())
	p.attempt++
	return d
}

// Reset rewinds the policy to the first attempt.
func (p *Policy) Reset() {
	p.attempt = 0
}

// Attempt returns the 0-indexed attempt the next NextBackOff call will use.
func (p *Policy) Attempt() int {
	return p.attempt
}

// Capped returns min(base*2^n, maxDelay), the un-jittered delay for attempt n.
func Capped(base, maxDelay time.Duration, n int) time.Duration {
	if n < 0 {
		n = 0
	}
	exp := float64(base) * math.Pow(2, float64(n))
	if exp >= float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(exp)
}

// Delay returns floor(capped + r*0.2*capped) for attempt n, where r is a
// uniform sample in [0, 1).
func Delay(base, maxDelay time.Duration, n int, r float64) time.Duration {
	c := float64(Capped(base, maxDelay, n))
	return time.Duration(math.Floor(c + r*jitterFactor*c))
}
