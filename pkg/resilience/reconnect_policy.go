package resilience

import (
	"sync"
	"time"
)

//go:generate mockgen -destination=mocks/reconnect_policy_mock.go -package=mocks -source=reconnect_policy.go

// ReconnectPolicy decides how long a dead node waits before the next
// connection attempt. Calls are serialized by the cluster.
type ReconnectPolicy interface {
	// Schedule returns the delay before the next attempt for addr.
	Schedule(addr string) time.Duration

	// Reset is called once addr has reconnected successfully.
	Reset(addr string)
}

// Periodic retries at a fixed interval.
type Periodic struct {
	Interval time.Duration
}

func (p Periodic) Schedule(string) time.Duration { return p.Interval }

func (p Periodic) Reset(string) {}

// Backoff doubles the delay with every consecutive failed attempt for an
// address, starting at Base and capped at Max.
type Backoff struct {
	mu sync.Mutex

	base     time.Duration
	max      time.Duration
	attempts map[string]int
}

func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max < base {
		max = time.Minute
	}
	return &Backoff{
		base:     base,
		max:      max,
		attempts: make(map[string]int),
	}
}

func (b *Backoff) Schedule(addr string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	shift := b.attempts[addr]
	b.attempts[addr]++
	if shift > 6 {
		shift = 6
	}
	delay := b.base * time.Duration(1<<shift)
	if delay > b.max {
		delay = b.max
	}
	return delay
}

func (b *Backoff) Reset(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.attempts, addr)
}
