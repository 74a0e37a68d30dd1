package cluster

import (
	"context"
	"sync/atomic"
)

// scheduleQueue is a blocking queue of distinct nodes that need I/O. A node
// that is already pending is not queued again; its outstanding turn covers
// the new work.
type scheduleQueue struct {
	pending []atomic.Bool // indexed by node index
	ready   chan *Node
}

func newScheduleQueue(nodes int) *scheduleQueue {
	return &scheduleQueue{
		pending: make([]atomic.Bool, nodes),
		// Each node is queued at most once, so sends never block.
		ready: make(chan *Node, nodes),
	}
}

// Add marks n pending and queues it unless it is pending already.
func (q *scheduleQueue) Add(n *Node) {
	if n.index < 0 || n.index >= len(q.pending) {
		return
	}
	if !q.pending[n.index].CompareAndSwap(false, true) {
		return
	}
	q.ready <- n
}

// Take blocks until a node is ready or ctx is done. The pending mark is
// cleared before the node is returned so work arriving during its Run
// queues it again.
func (q *scheduleQueue) Take(ctx context.Context) (*Node, error) {
	select {
	case n := <-q.ready:
		q.pending[n.index].Store(false)
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued nodes.
func (q *scheduleQueue) Len() int {
	return len(q.ready)
}
