package cluster

// Request serializes an operation onto the wire. WriteTo may be called many
// times for one request when it does not fit in the remaining buffer space.
type Request interface {
	// WriteTo copies as much of the request as fits into buf and reports
	// whether more remains to be written.
	WriteTo(buf *WriteBuffer) (more bool)
}

// Response parses one server reply, possibly across several buffer fills.
type Response interface {
	// ReadFrom consumes bytes from buf and reports whether the response
	// needs more data.
	ReadFrom(buf *ReadBuffer) (more bool, err error)

	// Status is the server status of the parsed response.
	Status() uint16
}

// Operation is the unit of work routed to a node.
type Operation interface {
	// Key selects the node for Execute. Broadcast operations may return nil.
	Key() []byte

	CreateRequest() Request

	// Handles reports whether resp answers this operation.
	Handles(resp Response) bool

	// ProcessResponse feeds a reply to the operation. resp is nil for quiet
	// operations whose success is implied by a later reply. It returns true
	// while the operation expects further responses.
	ProcessResponse(resp Response) (more bool)
}

// QuietOperation is implemented by operations that know whether they were
// sent without asking for a reply. A node never waits on the socket for quiet
// operations alone, and an operation reporting Quiet() == false that is
// skipped by a later reply fails instead of succeeding silently.
type QuietOperation interface {
	Quiet() bool
}

// entry pairs a queued operation with the future its caller waits on.
type entry struct {
	op     Operation
	future *Future[Operation]
	quiet  bool
	// owesReply is set for operations that declared themselves non-quiet.
	owesReply bool
}

func newEntry(op Operation) *entry {
	e := &entry{
		op:     op,
		future: NewFuture[Operation](),
	}
	if q, ok := op.(QuietOperation); ok {
		e.quiet = q.Quiet()
		e.owesReply = !e.quiet
	}
	return e
}

func (e *entry) succeed() {
	e.future.Resolve(e.op)
}

func (e *entry) fail(err error) {
	e.future.Reject(err)
}
