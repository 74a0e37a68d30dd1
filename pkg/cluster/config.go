package cluster

import (
	"errors"
	"time"

	"github.com/anthanhphan/go-memcached-cluster/pkg/resilience"
	"github.com/anthanhphan/go-memcached-cluster/pkg/shard"
)

// minRetryDelay is the delay between attempts when the reconnect policy
// asks for none and the inline attempt has already failed.
const minRetryDelay = 10 * time.Millisecond

// Config wires a cluster. Endpoints and NewResponse are required.
type Config struct {
	Name      string
	Endpoints []string
	Socket    SocketConfig

	// NewResponse creates an empty response for the node to parse into.
	NewResponse func() Response

	// Locator defaults to a ketama ring.
	Locator shard.Locator[*Node]

	// FailurePolicy defaults to failing a node on its first error.
	FailurePolicy resilience.FailurePolicyFactory

	// ReconnectPolicy defaults to retrying every ten seconds.
	ReconnectPolicy resilience.ReconnectPolicy

	// ReconnectWorkers bounds concurrent reconnect attempts.
	ReconnectWorkers int

	// Metrics may be nil.
	Metrics *Metrics
}

func (c Config) withDefaults() (Config, error) {
	if len(c.Endpoints) == 0 {
		return c, errors.New("cluster: at least one endpoint is required")
	}
	if c.NewResponse == nil {
		return c, errors.New("cluster: NewResponse is required")
	}
	if c.Name == "" {
		c.Name = "default"
	}
	c.Socket = c.Socket.withDefaults()
	if c.Locator == nil {
		c.Locator = shard.NewKetama[*Node](shard.DefaultMutations, nil)
	}
	if c.FailurePolicy == nil {
		c.FailurePolicy = resilience.ImmediateFactory()
	}
	if c.ReconnectPolicy == nil {
		c.ReconnectPolicy = resilience.Periodic{Interval: 10 * time.Second}
	}
	if c.ReconnectWorkers <= 0 {
		c.ReconnectWorkers = 2
	}
	return c, nil
}
