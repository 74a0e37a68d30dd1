// Package cluster is the I/O engine of the memcached client: it keeps one
// pipelined connection per server, routes operations to nodes, and takes
// failing nodes out of rotation until they reconnect.
package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/go-memcached-cluster/pkg/resilience"
	"github.com/anthanhphan/go-memcached-cluster/pkg/shard"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Cluster owns every node, the locator and the single goroutine that
// performs all node I/O.
type Cluster struct {
	cfg Config

	nodes   []*Node
	working atomic.Pointer[[]*Node]
	failed  *Node

	locator    shard.Locator[*Node]
	queue      *scheduleQueue
	reconnects *resilience.WorkerPool
	metrics    *Metrics

	// failMu serializes working-set writers and every policy call.
	failMu sync.Mutex

	timersMu sync.Mutex
	timers   map[*Node]*time.Timer

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// NodeStatus is a point-in-time view of one node.
type NodeStatus struct {
	Addr    string `json:"addr"`
	Alive   bool   `json:"alive"`
	Pending int    `json:"pending"`
}

// New builds a cluster with one node per endpoint. Nothing is dialed until Start.
func New(cfg Config) (*Cluster, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cluster{
		cfg:        cfg,
		failed:     newFailedNode(),
		locator:    cfg.Locator,
		queue:      newScheduleQueue(len(cfg.Endpoints)),
		reconnects: resilience.NewWorkerPool(cfg.Name+"-reconnect", cfg.ReconnectWorkers, len(cfg.Endpoints)),
		metrics:    cfg.Metrics,
		timers:     make(map[*Node]*time.Timer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	ncfg := &nodeConfig{
		socket:      cfg.Socket,
		pool:        NewBufferPool(),
		newResponse: cfg.NewResponse,
		metrics:     cfg.Metrics,
	}
	c.nodes = make([]*Node, len(cfg.Endpoints))
	for i, addr := range cfg.Endpoints {
		c.nodes[i] = newNode(addr, i, ncfg, c, cfg.FailurePolicy())
	}

	empty := []*Node{}
	c.working.Store(&empty)
	c.locator.Initialize(empty)
	return c, nil
}

// Name returns the configured cluster name.
func (c *Cluster) Name() string { return c.cfg.Name }

// Start connects every node and starts the I/O goroutine. Nodes that cannot
// be reached are scheduled for reconnection; Start itself only fails if the
// cluster was closed.
func (c *Cluster) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClusterClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	var g errgroup.Group
	for _, n := range c.nodes {
		g.Go(func() error {
			dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Socket.ConnectTimeout)
			defer cancel()
			if err := n.Connect(dialCtx); err != nil {
				logger.Warnw("Initial connect failed", "cluster", c.cfg.Name, "addr", n.addr, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	alive := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		if n.IsAlive() {
			alive = append(alive, n)
		}
	}
	c.failMu.Lock()
	c.working.Store(&alive)
	c.locator.Initialize(alive)
	c.failMu.Unlock()
	c.metrics.setAlive(len(alive))

	go c.loop()

	for _, n := range c.nodes {
		if !n.IsAlive() {
			c.scheduleReconnect(n)
		}
	}

	logger.Infow("Cluster started", "cluster", c.cfg.Name, "nodes", len(c.nodes), "alive", len(alive))
	return nil
}

// Execute routes op to the node owning its key. The future fails
// immediately if that node is dead.
func (c *Cluster) Execute(op Operation) *Future[Operation] {
	if c.closed.Load() {
		return FailedFuture[Operation](ErrClusterClosed)
	}

	n := c.locate(op.Key())
	if !n.IsAlive() {
		c.metrics.operation("rejected")
		return FailedFuture[Operation](n.notAliveErr())
	}

	f := n.Enqueue(op)
	c.queue.Add(n)
	c.metrics.operation("queued")
	return f
}

// Broadcast runs one operation, built by factory, on every alive node and
// resolves once all of them have. It fails immediately when no node is alive.
func (c *Cluster) Broadcast(factory func(n *Node) Operation) *Future[[]Operation] {
	if c.closed.Load() {
		return FailedFuture[[]Operation](ErrClusterClosed)
	}

	nodes := *c.working.Load()
	if len(nodes) == 0 {
		c.metrics.operation("rejected")
		return FailedFuture[[]Operation](ErrNoAliveNodes)
	}

	futures := make([]*Future[Operation], len(nodes))
	for i, n := range nodes {
		futures[i] = n.Enqueue(factory(n))
		c.queue.Add(n)
		c.metrics.operation("queued")
	}

	result := NewFuture[[]Operation]()
	go func() {
		ops := make([]Operation, len(futures))
		var g errgroup.Group
		for i, f := range futures {
			g.Go(func() error {
				op, err := f.Wait(c.ctx)
				ops[i] = op
				return err
			})
		}
		if err := g.Wait(); err != nil {
			result.Reject(err)
			return
		}
		result.Resolve(ops)
	}()
	return result
}

// Nodes returns the status of every configured node.
func (c *Cluster) Nodes() []NodeStatus {
	out := make([]NodeStatus, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = NodeStatus{Addr: n.addr, Alive: n.IsAlive(), Pending: n.Pending()}
	}
	return out
}

// AliveNodes returns the current working set.
func (c *Cluster) AliveNodes() []*Node {
	return append([]*Node(nil), *c.working.Load()...)
}

// Locate returns the node that would serve key.
func (c *Cluster) Locate(key []byte) *Node {
	return c.locate(key)
}

// Close stops the I/O goroutine and pending reconnects, then shuts every
// node down. Futures still pending are not resolved.
func (c *Cluster) Close() error {
	var result error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.stopTimers()
		if c.started.Load() {
			<-c.done
		}
		c.reconnects.Close()
		c.reconnects.Wait()

		for _, n := range c.nodes {
			if err := n.Shutdown(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		c.metrics.setAlive(0)
		logger.Infow("Cluster closed", "cluster", c.cfg.Name)
	})
	return result
}

func (c *Cluster) loop() {
	defer close(c.done)
	for {
		n, err := c.queue.Take(c.ctx)
		if err != nil {
			return
		}
		if err := n.Run(); err != nil {
			c.failNode(n, err)
		}
	}
}

func (c *Cluster) schedule(n *Node) {
	c.queue.Add(n)
}

func (c *Cluster) locate(key []byte) *Node {
	if n, ok := c.locator.Locate(key); ok {
		return n
	}
	return c.failed
}

// failNode takes a dead node out of the working set and schedules its
// reconnection.
func (c *Cluster) failNode(n *Node, err error) {
	c.failMu.Lock()
	alive := c.removeWorking(n)
	c.locator.Initialize(alive)
	c.failMu.Unlock()

	c.metrics.setAlive(len(alive))
	logger.Warnw("Node removed from working set",
		"cluster", c.cfg.Name, "addr", n.addr, "alive", len(alive), "error", err.Error())

	c.scheduleReconnect(n)
}

func (c *Cluster) scheduleReconnect(n *Node) {
	if c.closed.Load() {
		return
	}

	c.failMu.Lock()
	delay := c.cfg.ReconnectPolicy.Schedule(n.addr)
	c.failMu.Unlock()

	if delay <= 0 {
		c.reconnect(n)
		return
	}
	c.armTimer(n, delay)
}

func (c *Cluster) armTimer(n *Node, delay time.Duration) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if c.closed.Load() {
		return
	}
	if t, ok := c.timers[n]; ok {
		t.Stop()
	}
	c.timers[n] = time.AfterFunc(delay, func() {
		c.timersMu.Lock()
		delete(c.timers, n)
		c.timersMu.Unlock()

		// Blocks while every worker is busy; Close cancels c.ctx to release it.
		err := c.reconnects.Submit(c.ctx, func() { c.reconnect(n) })
		if err != nil && !c.closed.Load() {
			logger.Warnw("Failed to submit reconnect", "cluster", c.cfg.Name, "addr", n.addr, "error", err.Error())
		}
	})
}

func (c *Cluster) stopTimers() {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	for n, t := range c.timers {
		t.Stop()
		delete(c.timers, n)
	}
}

// reconnect makes one connection attempt. On success the node rejoins the
// working set and is rescheduled so buffered writes resume; on failure the
// next attempt is scheduled through the policy, never sooner than
// minRetryDelay.
func (c *Cluster) reconnect(n *Node) {
	if c.closed.Load() || n.IsAlive() {
		return
	}
	c.metrics.reconnect("attempt")

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.Socket.ConnectTimeout)
	defer cancel()
	if err := n.Connect(ctx); err != nil {
		c.metrics.reconnect("failure")
		logger.Debugw("Reconnect failed", "cluster", c.cfg.Name, "addr", n.addr, "error", err.Error())
		c.retryReconnect(n)
		return
	}

	c.failMu.Lock()
	c.cfg.ReconnectPolicy.Reset(n.addr)
	alive := c.addWorking(n)
	c.locator.Initialize(alive)
	c.failMu.Unlock()

	c.metrics.reconnect("success")
	c.metrics.setAlive(len(alive))
	logger.Infow("Node rejoined working set", "cluster", c.cfg.Name, "addr", n.addr, "alive", len(alive))

	c.queue.Add(n)
}

func (c *Cluster) retryReconnect(n *Node) {
	if c.closed.Load() {
		return
	}
	c.failMu.Lock()
	delay := c.cfg.ReconnectPolicy.Schedule(n.addr)
	c.failMu.Unlock()
	c.armTimer(n, max(delay, minRetryDelay))
}

// removeWorking swaps in a working set without n and returns it.
func (c *Cluster) removeWorking(n *Node) []*Node {
	for {
		old := c.working.Load()
		next := make([]*Node, 0, len(*old))
		for _, m := range *old {
			if m != n {
				next = append(next, m)
			}
		}
		if len(next) == len(*old) {
			return *old
		}
		if c.working.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// addWorking swaps in a working set including n and returns it. Nodes keep
// their configuration order so index-based locators stay stable.
func (c *Cluster) addWorking(n *Node) []*Node {
	for {
		old := c.working.Load()
		member := make(map[*Node]bool, len(*old)+1)
		for _, m := range *old {
			member[m] = true
		}
		if member[n] {
			return *old
		}
		member[n] = true

		next := make([]*Node, 0, len(member))
		for _, m := range c.nodes {
			if member[m] {
				next = append(next, m)
			}
		}
		if c.working.CompareAndSwap(old, &next) {
			return next
		}
	}
}
