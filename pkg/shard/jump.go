package shard

import (
	"sync/atomic"

	"github.com/anthanhphan/go-memcached-cluster/pkg/hashing"
)

// JumpLocator spreads keys over a flat bucket table with jump consistent
// hashing. It allocates nothing per lookup, but a change in member count moves
// more keys than the ketama ring does.
type JumpLocator[M Member] struct {
	members atomic.Pointer[[]M]
	hash    hashing.Hash64
}

// NewJumpLocator creates an empty locator. A nil hash defaults to Murmur3.
func NewJumpLocator[M Member](hash hashing.Hash64) *JumpLocator[M] {
	if hash == nil {
		hash = hashing.Murmur64
	}
	l := &JumpLocator[M]{hash: hash}
	empty := []M{}
	l.members.Store(&empty)
	return l
}

// Initialize replaces the bucket table.
func (l *JumpLocator[M]) Initialize(members []M) {
	table := append([]M(nil), members...)
	l.members.Store(&table)
}

// Locate returns the member whose bucket the key hashes to.
func (l *JumpLocator[M]) Locate(key []byte) (M, bool) {
	var zero M
	table := *l.members.Load()
	idx := hashing.Jump(l.hash(key), len(table))
	if idx < 0 {
		return zero, false
	}
	return table[idx], true
}
