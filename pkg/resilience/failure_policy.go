package resilience

import (
	"sync"
	"time"
)

//go:generate mockgen -destination=mocks/failure_policy_mock.go -package=mocks -source=failure_policy.go

// FailurePolicy decides whether an I/O failure on a node is fatal. A fatal
// (hard) failure takes the node out of the working set; a soft one only
// forces a reconnect of its socket.
//
// Policies are not required to be safe for concurrent use; each node owns
// its own instance.
type FailurePolicy interface {
	ShouldFail() bool
}

// FailurePolicyFactory creates a policy instance for one node.
type FailurePolicyFactory func() FailurePolicy

// Immediate fails a node on its first error.
type Immediate struct{}

func (Immediate) ShouldFail() bool { return true }

// ImmediateFactory returns the factory for Immediate.
func ImmediateFactory() FailurePolicyFactory {
	return func() FailurePolicy { return Immediate{} }
}

// ThrottlingConfig configures a Throttling policy.
type ThrottlingConfig struct {
	// Threshold is the number of failures within Window that fail the node.
	Threshold int
	// Window is the maximum gap between two failures for them to be counted together.
	Window time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Throttling fails a node only after Threshold failures, each arriving within
// Window of the previous one. A failure after the window has elapsed starts a
// new count at 1, which is only fatal when Threshold is 1.
type Throttling struct {
	mu sync.Mutex

	cfg ThrottlingConfig

	failureCount int
	lastFailure  time.Time
}

func NewThrottling(cfg ThrottlingConfig) *Throttling {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Throttling{cfg: cfg}
}

// ThrottlingFactory returns a factory creating an independent Throttling per node.
func ThrottlingFactory(cfg ThrottlingConfig) FailurePolicyFactory {
	return func() FailurePolicy { return NewThrottling(cfg) }
}

func (p *Throttling) ShouldFail() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.cfg.Now()
	defer func() { p.lastFailure = now }()

	if p.lastFailure.IsZero() || now.Sub(p.lastFailure) > p.cfg.Window {
		p.failureCount = 1
	} else {
		p.failureCount++
	}

	if p.failureCount >= p.cfg.Threshold {
		p.failureCount = 0
		return true
	}
	return false
}

// FailureCount returns the failures counted in the current window.
func (p *Throttling) FailureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failureCount
}
