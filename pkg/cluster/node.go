package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/anthanhphan/go-memcached-cluster/pkg/resilience"
	"github.com/anthanhphan/go-memcached-cluster/pkg/ringqueue"
	"github.com/anthanhphan/gosdk/logger"
)

var errNoSocket = errors.New("node has no open socket")

// scheduler re-arms a node for another Run on the I/O goroutine.
type scheduler interface {
	schedule(n *Node)
}

type nodeConfig struct {
	socket      SocketConfig
	pool        *BufferPool
	newResponse func() Response
	metrics     *Metrics
}

// Node is the client-side proxy for one server. Enqueue may be called from
// any goroutine; Run, and the queue and partial state it touches, belong to
// the cluster's I/O goroutine.
type Node struct {
	addr    string
	index   int
	cfg     *nodeConfig
	owner   scheduler
	policy  resilience.FailurePolicy
	deadErr error

	alive     atomic.Bool
	reconnect atomic.Bool
	sock      atomic.Pointer[socket]

	mu         sync.Mutex
	writeQueue *ringqueue.Queue[*entry]

	// I/O goroutine state.
	readQueue  *ringqueue.Queue[*entry]
	sent       *ringqueue.Queue[*entry]
	awaiting   int // non-quiet entries in readQueue
	writing    *entry
	writingReq Request
	reading    Response

	writeBusy atomic.Bool
	readBusy  atomic.Bool

	errMu sync.Mutex
	ioErr error
}

func newNode(addr string, index int, cfg *nodeConfig, owner scheduler, policy resilience.FailurePolicy) *Node {
	return &Node{
		addr:       addr,
		index:      index,
		cfg:        cfg,
		owner:      owner,
		policy:     policy,
		writeQueue: ringqueue.New[*entry](64),
		readQueue:  ringqueue.New[*entry](64),
		sent:       ringqueue.New[*entry](64),
	}
}

// newFailedNode returns the sentinel used when no node is alive. Every
// operation enqueued on it fails immediately.
func newFailedNode() *Node {
	return &Node{
		addr:    "",
		index:   -1,
		deadErr: ErrNoAliveNodes,
	}
}

func (n *Node) Addr() string { return n.addr }

func (n *Node) IsAlive() bool { return n.alive.Load() }

func (n *Node) String() string {
	state := "dead"
	if n.IsAlive() {
		state = "alive"
	}
	return fmt.Sprintf("%s[%s]", n.addr, state)
}

// Pending returns the number of operations waiting to be written.
func (n *Node) Pending() int {
	if n.writeQueue == nil {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.writeQueue.Len()
}

// Enqueue queues op for this node. A dead node fails the returned future
// immediately without touching the socket.
func (n *Node) Enqueue(op Operation) *Future[Operation] {
	e := newEntry(op)

	n.mu.Lock()
	if !n.alive.Load() {
		n.mu.Unlock()
		e.fail(n.notAliveErr())
		return e.future
	}
	n.writeQueue.Enqueue(e)
	n.mu.Unlock()

	return e.future
}

// Connect dials the server and marks the node alive.
func (n *Node) Connect(ctx context.Context) error {
	if err := n.connect(ctx); err != nil {
		return err
	}

	n.mu.Lock()
	n.alive.Store(true)
	n.mu.Unlock()
	return nil
}

// Shutdown closes the socket and marks the node dead. Queued operations are
// left unresolved.
func (n *Node) Shutdown() error {
	if n.writeQueue == nil {
		return nil
	}
	n.mu.Lock()
	n.alive.Store(false)
	n.mu.Unlock()

	if s := n.sock.Swap(nil); s != nil {
		return s.Close()
	}
	return nil
}

// Run drives one round of send and receive work and never blocks on the
// network. It returns an error only when the node failed hard and has been
// marked dead; the caller is expected to take it out of rotation.
func (n *Node) Run() error {
	if !n.alive.Load() {
		return nil
	}

	if err := n.takeIOError(); err != nil {
		return n.handleFailure(err)
	}

	if n.reconnect.Load() {
		if err := n.connect(context.Background()); err != nil {
			logger.Warnw("Node reconnect after soft failure failed", "addr", n.addr, "error", err.Error())
			n.failInFlight(err)
			n.markDead(err)
			n.cfg.metrics.nodeFailed("hard")
			return err
		}
		logger.Infow("Node reconnected after soft failure", "addr", n.addr)
	}

	if err := n.writePhase(); err != nil {
		return n.handleFailure(err)
	}
	if err := n.readPhase(); err != nil {
		return n.handleFailure(err)
	}
	return nil
}

func (n *Node) writePhase() error {
	if !n.writeBusy.CompareAndSwap(false, true) {
		return nil
	}

	s := n.sock.Load()
	if s == nil {
		n.writeBusy.Store(false)
		return errNoSocket
	}
	buf := s.send

	// Continue a request that did not fit last round.
	if n.writing != nil && !n.writingReq.WriteTo(buf) {
		n.markSent(n.writing)
		n.writing, n.writingReq = nil, nil
	}

	for n.writing == nil && !buf.Full() {
		e, ok := n.nextWrite()
		if !ok {
			break
		}
		req := e.op.CreateRequest()
		if req.WriteTo(buf) {
			n.writing, n.writingReq = e, req
			break
		}
		n.markSent(e)
	}

	// Responses can only arrive once the bytes are on the wire, so the whole
	// batch moves to the read queue before the send is scheduled.
	n.readQueue.Absorb(n.sent)

	if buf.Len() == 0 {
		n.writeBusy.Store(false)
		return nil
	}

	s.ScheduleSend(func(err error) { n.sendCompleted(s, err) })
	return nil
}

func (n *Node) readPhase() error {
	if !n.readBusy.CompareAndSwap(false, true) {
		return nil
	}

	s := n.sock.Load()
	if s == nil {
		n.readBusy.Store(false)
		return errNoSocket
	}
	buf := s.recv

	for {
		if buf.Empty() {
			if n.reading == nil && n.awaiting == 0 {
				n.readBusy.Store(false)
				return nil
			}
			s.ScheduleReceive(func(err error) { n.receiveCompleted(s, err) })
			return nil
		}

		if n.reading == nil && n.readQueue.Len() == 0 {
			n.readBusy.Store(false)
			return fmt.Errorf("%w: %d unsolicited bytes", ErrProtocol, buf.Remaining())
		}

		resp := n.reading
		if resp == nil {
			resp = n.cfg.newResponse()
		}

		more, err := resp.ReadFrom(buf)
		if err != nil {
			n.readBusy.Store(false)
			return err
		}
		if more {
			if !buf.Empty() {
				n.readBusy.Store(false)
				return fmt.Errorf("%w: response parser stalled with %d bytes left", ErrProtocol, buf.Remaining())
			}
			n.reading = resp
			continue
		}

		n.reading = nil
		n.dispatch(resp)
	}
}

// dispatch matches resp against the read queue. Entries in front of the
// match succeeded silently and get a nil response, unless they declared
// that they expect a reply.
func (n *Node) dispatch(resp Response) {
	match := -1
	for i := 0; i < n.readQueue.Len(); i++ {
		e, _ := n.readQueue.At(i)
		if e.op.Handles(resp) {
			match = i
			break
		}
	}
	if match < 0 {
		logger.Warnw("Dropping response with no matching operation", "addr", n.addr, "status", resp.Status())
		return
	}

	for i := 0; i < match; i++ {
		e := n.dequeueRead()
		if e.owesReply {
			e.fail(fmt.Errorf("%w: no reply for operation ahead of a later response", ErrProtocol))
			continue
		}
		e.op.ProcessResponse(nil)
		e.succeed()
	}

	e := n.dequeueRead()
	if e.op.ProcessResponse(resp) {
		// Multi-part reply; keep the operation at the front.
		n.readQueue.InsertHead(e)
		if !e.quiet {
			n.awaiting++
		}
		return
	}
	e.succeed()
}

func (n *Node) sendCompleted(s *socket, err error) {
	if n.sock.Load() != s {
		return
	}
	if err != nil {
		n.setIOError(err)
	}
	n.writeBusy.Store(false)
	n.owner.schedule(n)
}

func (n *Node) receiveCompleted(s *socket, err error) {
	if n.sock.Load() != s {
		return
	}
	if err != nil {
		n.setIOError(err)
	}
	n.readBusy.Store(false)
	n.owner.schedule(n)
}

// handleFailure fails in-flight work and consults the failure policy. A hard
// failure marks the node dead and returns the error; a soft one keeps the
// node alive and reconnects it on its next turn.
func (n *Node) handleFailure(cause error) error {
	err := newIOError(n.addr, cause)
	hard := n.policy.ShouldFail()

	n.dropSocket()
	n.failInFlight(err)

	if hard {
		n.markDead(err)
		n.cfg.metrics.nodeFailed("hard")
		logger.Warnw("Node failed", "addr", n.addr, "error", err.Error())
		return err
	}

	n.reconnect.Store(true)
	n.cfg.metrics.nodeFailed("soft")
	logger.Infow("Node soft failure, reconnecting on next turn", "addr", n.addr, "error", err.Error())
	n.owner.schedule(n)
	return nil
}

func (n *Node) connect(ctx context.Context) error {
	n.dropSocket()

	s, err := dialSocket(ctx, n.addr, n.cfg.socket, n.cfg.pool)
	if err != nil {
		return err
	}

	n.reading = nil
	n.sock.Store(s)
	n.reconnect.Store(false)
	return nil
}

// dropSocket detaches and closes the current socket. Completions of the old
// socket are ignored from here on; once Close returns none is still running,
// so the busy flags and pending error can be reset safely.
func (n *Node) dropSocket() {
	if s := n.sock.Swap(nil); s != nil {
		_ = s.Close()
	}
	n.writeBusy.Store(false)
	n.readBusy.Store(false)
	n.takeIOError()
}

// failInFlight fails everything already handed to the socket: the partial
// write, sent entries and entries awaiting a response.
func (n *Node) failInFlight(err error) {
	if n.writing != nil {
		n.writing.fail(err)
		n.writing, n.writingReq = nil, nil
	}
	n.reading = nil
	n.sent.Drain(func(e *entry) { e.fail(err) })
	n.readQueue.Drain(func(e *entry) { e.fail(err) })
	n.awaiting = 0
}

// markDead takes the node out of service and fails every queued operation.
func (n *Node) markDead(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.alive.Store(false)
	n.reconnect.Store(false)
	n.writeQueue.Drain(func(e *entry) { e.fail(err) })
}

func (n *Node) nextWrite() (*entry, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.writeQueue.Dequeue()
}

func (n *Node) markSent(e *entry) {
	n.sent.Enqueue(e)
	if !e.quiet {
		n.awaiting++
	}
}

func (n *Node) dequeueRead() *entry {
	e, _ := n.readQueue.Dequeue()
	if !e.quiet {
		n.awaiting--
	}
	return e
}

func (n *Node) setIOError(err error) {
	n.errMu.Lock()
	defer n.errMu.Unlock()
	if n.ioErr == nil {
		n.ioErr = err
	}
}

func (n *Node) takeIOError() error {
	n.errMu.Lock()
	defer n.errMu.Unlock()
	err := n.ioErr
	n.ioErr = nil
	return err
}

func (n *Node) notAliveErr() error {
	if n.deadErr != nil {
		return n.deadErr
	}
	return newIOError(n.addr, ErrNotAlive)
}
