package protocol

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
)

var opaqueSeq atomic.Uint32

func nextOpaque() uint32 {
	return opaqueSeq.Add(1)
}

// base carries the opaque token every operation is matched by, and the
// outcome of its last response.
type base struct {
	opaque uint32
	status Status
	err    error
}

func newBase() base {
	return base{opaque: nextOpaque()}
}

func (b *base) Opaque() uint32 { return b.opaque }

// Err is the server-side outcome once the operation has completed.
func (b *base) Err() error { return b.err }

func (b *base) Handles(resp cluster.Response) bool {
	r, ok := resp.(*Response)
	return ok && r.Opaque == b.opaque
}

func (b *base) finish(r *Response) {
	b.status = r.Header.Status
	b.err = StatusErr(r.Header.Status)
}

// Get fetches one key. In quiet mode the server stays silent on a miss.
type Get struct {
	base
	key   []byte
	quiet bool

	Value []byte
	Flags uint32
	CAS   uint64
	Found bool
}

func NewGet(key []byte) *Get {
	return &Get{base: newBase(), key: key}
}

// NewGetQ builds a quiet get, meant to be followed by a NoOp or another
// non-quiet operation on the same node.
func NewGetQ(key []byte) *Get {
	return &Get{base: newBase(), key: key, quiet: true}
}

func (g *Get) Key() []byte { return g.key }

func (g *Get) Quiet() bool { return g.quiet }

func (g *Get) CreateRequest() cluster.Request {
	op := OpGet
	if g.quiet {
		op = OpGetQ
	}
	return NewRequest(op, nil, g.key, nil, g.opaque, 0)
}

func (g *Get) ProcessResponse(resp cluster.Response) bool {
	if resp == nil {
		g.status, g.err = StatusKeyNotFound, ErrKeyNotFound
		return false
	}
	r := resp.(*Response)
	g.finish(r)
	if g.err != nil {
		return false
	}
	g.Found = true
	g.Value = r.Value
	g.CAS = r.Header.CAS
	if len(r.Extras) >= 4 {
		g.Flags = binary.BigEndian.Uint32(r.Extras)
	}
	return false
}

type StoreMode uint8

const (
	ModeSet StoreMode = iota
	ModeAdd
	ModeReplace
)

func (m StoreMode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeReplace:
		return "replace"
	default:
		return "set"
	}
}

func (m StoreMode) opcode(quiet bool) Opcode {
	switch m {
	case ModeAdd:
		if quiet {
			return OpAddQ
		}
		return OpAdd
	case ModeReplace:
		if quiet {
			return OpReplaceQ
		}
		return OpReplace
	default:
		if quiet {
			return OpSetQ
		}
		return OpSet
	}
}

// Store writes a value with set, add or replace semantics. A non-zero CAS
// makes the write conditional on the item not having changed.
type Store struct {
	base
	mode  StoreMode
	key   []byte
	value []byte
	quiet bool

	Flags      uint32
	Expiration uint32
	CAS        uint64

	// StoredCAS is the item version after a successful non-quiet store.
	StoredCAS uint64
}

func NewStore(mode StoreMode, key, value []byte, flags, expiration uint32) *Store {
	return &Store{
		base:       newBase(),
		mode:       mode,
		key:        key,
		value:      value,
		Flags:      flags,
		Expiration: expiration,
	}
}

func NewSet(key, value []byte, expiration uint32) *Store {
	return NewStore(ModeSet, key, value, 0, expiration)
}

// WithCAS makes the store conditional on cas.
func (s *Store) WithCAS(cas uint64) *Store {
	s.CAS = cas
	return s
}

// Silent switches to the quiet opcode; the server only answers on failure.
func (s *Store) Silent() *Store {
	s.quiet = true
	return s
}

func (s *Store) Mode() StoreMode { return s.mode }

func (s *Store) Key() []byte { return s.key }

func (s *Store) Quiet() bool { return s.quiet }

func (s *Store) CreateRequest() cluster.Request {
	extras := make([]byte, 8)
	binary.BigEndian.PutUint32(extras[0:4], s.Flags)
	binary.BigEndian.PutUint32(extras[4:8], s.Expiration)
	return NewRequest(s.mode.opcode(s.quiet), extras, s.key, s.value, s.opaque, s.CAS)
}

func (s *Store) ProcessResponse(resp cluster.Response) bool {
	if resp == nil {
		return false
	}
	r := resp.(*Response)
	s.finish(r)
	if s.err == nil {
		s.StoredCAS = r.Header.CAS
	}
	return false
}

// Delete removes one key.
type Delete struct {
	base
	key   []byte
	quiet bool
}

func NewDelete(key []byte) *Delete {
	return &Delete{base: newBase(), key: key}
}

func NewDeleteQ(key []byte) *Delete {
	return &Delete{base: newBase(), key: key, quiet: true}
}

func (d *Delete) Key() []byte { return d.key }

func (d *Delete) Quiet() bool { return d.quiet }

func (d *Delete) CreateRequest() cluster.Request {
	op := OpDelete
	if d.quiet {
		op = OpDeleteQ
	}
	return NewRequest(op, nil, d.key, nil, d.opaque, 0)
}

func (d *Delete) ProcessResponse(resp cluster.Response) bool {
	if resp != nil {
		d.finish(resp.(*Response))
	}
	return false
}

// NoCreate as a Mutate expiration makes a missing key fail instead of being
// created with the initial value.
const NoCreate uint32 = 0xffffffff

// Mutate increments or decrements a counter.
type Mutate struct {
	base
	key       []byte
	decrement bool

	Delta      uint64
	Initial    uint64
	Expiration uint32

	Value uint64
}

func NewIncrement(key []byte, delta, initial uint64, expiration uint32) *Mutate {
	return &Mutate{base: newBase(), key: key, Delta: delta, Initial: initial, Expiration: expiration}
}

func NewDecrement(key []byte, delta, initial uint64, expiration uint32) *Mutate {
	m := NewIncrement(key, delta, initial, expiration)
	m.decrement = true
	return m
}

func (m *Mutate) Key() []byte { return m.key }

func (m *Mutate) CreateRequest() cluster.Request {
	extras := make([]byte, 20)
	binary.BigEndian.PutUint64(extras[0:8], m.Delta)
	binary.BigEndian.PutUint64(extras[8:16], m.Initial)
	binary.BigEndian.PutUint32(extras[16:20], m.Expiration)
	op := OpIncrement
	if m.decrement {
		op = OpDecrement
	}
	return NewRequest(op, extras, m.key, nil, m.opaque, 0)
}

func (m *Mutate) ProcessResponse(resp cluster.Response) bool {
	if resp == nil {
		return false
	}
	r := resp.(*Response)
	m.finish(r)
	if m.err == nil && len(r.Value) >= 8 {
		m.Value = binary.BigEndian.Uint64(r.Value)
	}
	return false
}

// NoOp asks the server for an empty reply. Behind a run of quiet operations
// it confirms that all of them succeeded.
type NoOp struct {
	base
	key []byte
}

// NewNoOp builds a no-op routed like key; pass nil when sending to a node
// directly.
func NewNoOp(key []byte) *NoOp {
	return &NoOp{base: newBase(), key: key}
}

func (n *NoOp) Key() []byte { return n.key }

func (n *NoOp) CreateRequest() cluster.Request {
	return NewRequest(OpNoOp, nil, nil, nil, n.opaque, 0)
}

func (n *NoOp) ProcessResponse(resp cluster.Response) bool {
	if resp != nil {
		n.finish(resp.(*Response))
	}
	return false
}

// Flush invalidates every item on a node, optionally after a delay in seconds.
type Flush struct {
	base
	Delay uint32
}

func NewFlush(delay uint32) *Flush {
	return &Flush{base: newBase(), Delay: delay}
}

func (f *Flush) Key() []byte { return nil }

func (f *Flush) CreateRequest() cluster.Request {
	var extras []byte
	if f.Delay > 0 {
		extras = make([]byte, 4)
		binary.BigEndian.PutUint32(extras, f.Delay)
	}
	return NewRequest(OpFlush, extras, nil, nil, f.opaque, 0)
}

func (f *Flush) ProcessResponse(resp cluster.Response) bool {
	if resp != nil {
		f.finish(resp.(*Response))
	}
	return false
}

// Stats collects server statistics. The server answers with one packet per
// statistic and ends the run with an empty key.
type Stats struct {
	base
	group []byte

	Values map[string]string
}

// NewStats requests the statistics of group, or the general set when empty.
func NewStats(group string) *Stats {
	s := &Stats{base: newBase(), Values: make(map[string]string)}
	if group != "" {
		s.group = []byte(group)
	}
	return s
}

func (s *Stats) Key() []byte { return nil }

func (s *Stats) CreateRequest() cluster.Request {
	return NewRequest(OpStat, nil, s.group, nil, s.opaque, 0)
}

func (s *Stats) ProcessResponse(resp cluster.Response) bool {
	if resp == nil {
		return false
	}
	r := resp.(*Response)
	s.finish(r)
	if s.err != nil || len(r.Key) == 0 {
		return false
	}
	s.Values[string(r.Key)] = string(r.Value)
	return true
}

// Version asks the server for its version string.
type Version struct {
	base

	Version string
}

func NewVersion() *Version {
	return &Version{base: newBase()}
}

func (v *Version) Key() []byte { return nil }

func (v *Version) CreateRequest() cluster.Request {
	return NewRequest(OpVersion, nil, nil, nil, v.opaque, 0)
}

func (v *Version) ProcessResponse(resp cluster.Response) bool {
	if resp == nil {
		return false
	}
	r := resp.(*Response)
	v.finish(r)
	if v.err == nil {
		v.Version = string(r.Value)
	}
	return false
}
