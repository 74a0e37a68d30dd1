package shard

import (
	"fmt"
)

// Member is a locatable cluster member.
type Member interface {
	Addr() string
	IsAlive() bool
}

// Locator maps keys to members. Only Initialize mutates state and callers must
// serialize calls to it; Locate is safe to call concurrently with Initialize.
type Locator[M Member] interface {
	// Initialize replaces the member set the locator routes to.
	Initialize(members []M)

	// Locate returns the member owning key, or false if no member is usable.
	Locate(key []byte) (M, bool)
}

// VNode is a virtual point on the ring owned by a member.
type VNode struct {
	Token uint32
	Owner int // index into the snapshot's member slice
}

func (v VNode) String() string {
	return fmt.Sprintf("vnode[%d->%d]", v.Token, v.Owner)
}
