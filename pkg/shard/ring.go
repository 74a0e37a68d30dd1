package shard

import (
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/anthanhphan/go-memcached-cluster/pkg/hashing"
)

const (
	// DefaultMutations is the number of virtual points per member.
	// A higher number improves distribution balance but increases ring size.
	DefaultMutations = 160

	// deadOwnerRetries bounds how many alternate points are tried when the
	// owner of a key is dead but the ring has not been rebuilt yet.
	deadOwnerRetries = 7
)

type ringSnapshot[M Member] struct {
	vnodes  []VNode // sorted by token
	members []M
}

// Ketama is a consistent hashing ring. Each member is hashed under a fixed set
// of mutations ("addr-0" .. "addr-N") and keys go to the first point
// clockwise from their own hash.
type Ketama[M Member] struct {
	snap      atomic.Pointer[ringSnapshot[M]]
	mutations int
	hash      hashing.Hash32
}

// NewKetama creates an empty ring. A nil hash defaults to Murmur3.
func NewKetama[M Member](mutations int, hash hashing.Hash32) *Ketama[M] {
	if mutations <= 0 {
		mutations = DefaultMutations
	}
	if hash == nil {
		hash = hashing.Murmur32
	}
	r := &Ketama[M]{mutations: mutations, hash: hash}
	r.snap.Store(&ringSnapshot[M]{})
	return r
}

// Initialize rebuilds the ring over members.
func (r *Ketama[M]) Initialize(members []M) {
	snap := &ringSnapshot[M]{
		vnodes:  make([]VNode, 0, len(members)*r.mutations),
		members: append([]M(nil), members...),
	}

	for i, m := range snap.members {
		for j := 0; j < r.mutations; j++ {
			token := r.hash([]byte(m.Addr() + "-" + strconv.Itoa(j)))
			snap.vnodes = append(snap.vnodes, VNode{Token: token, Owner: i})
		}
	}

	sort.Slice(snap.vnodes, func(i, j int) bool {
		if snap.vnodes[i].Token == snap.vnodes[j].Token {
			return snap.vnodes[i].Owner < snap.vnodes[j].Owner
		}
		return snap.vnodes[i].Token < snap.vnodes[j].Token
	})

	r.snap.Store(snap)
}

// Locate finds the member owning key. If that member is dead the key is
// rehashed with small numeric prefixes to try alternate members.
func (r *Ketama[M]) Locate(key []byte) (M, bool) {
	var zero M
	snap := r.snap.Load()
	if len(snap.vnodes) == 0 {
		return zero, false
	}

	owner := snap.members[r.locateToken(snap, r.hash(key))]
	if owner.IsAlive() {
		return owner, true
	}

	alt := make([]byte, 0, len(key)+2)
	for i := 0; i < deadOwnerRetries; i++ {
		alt = strconv.AppendInt(alt[:0], int64(i), 10)
		alt = append(alt, key...)
		m := snap.members[r.locateToken(snap, r.hash(alt))]
		if m.IsAlive() {
			return m, true
		}
	}

	return zero, false
}


func (r *Ketama[M]) locateToken(snap *ringSnapshot[M], token uint32) int {
	// Binary search for the first vnode with token >= target token
	idx := sort.Search(len(snap.vnodes), func(i int) bool {
		return snap.vnodes[i].Token >= token
	})

	// Wrap around to the first vnode if we reached the end
	if idx == len(snap.vnodes) {
		idx = 0
	}
	return snap.vnodes[idx].Owner
}
