// Package node implements the local Chord node: its routing table,
// join/lookup operations, and the maintenance daemons that keep the
// ring stable under churn.
package node

import (
	"sync"

	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
)

// Peer is everything a routing table entry needs to be addressable and
// comparable on the ring. *transport.RemotePeer satisfies this, as does
// the local node's own self-handle.
type Peer interface {
	Addr() string
}

// simplePeer is a Peer backed by nothing but an address string, used
// for self-handles and for table entries before a live RemotePeer is
// dialed.
type simplePeer string

func (s simplePeer) Addr() string { return string(s) }

// NewPeer wraps an address as a Peer.
func NewPeer(addr string) Peer { return simplePeer(addr) }

// RoutingTable holds one node's finger table (whose entry 0 is the
// immediate successor) and predecessor pointer behind a single mutex,
// per the shared-resource policy: no network I/O is ever performed while
// this lock is held. It keeps no successor list beyond finger[0].
type RoutingTable struct {
	mu sync.Mutex

	self  Peer
	space ring.Space
	id    ring.ID

	fingers     []Peer // length m; fingers[0] is the immediate successor
	predecessor Peer   // nil when unknown
}

// NewRoutingTable builds a table for self, initially pointing every
// finger at self (the singleton-ring state).
func NewRoutingTable(self Peer, space ring.Space) *RoutingTable {
	m := space.Bits()
	fingers := make([]Peer, m)
	for i := range fingers {
		fingers[i] = self
	}
	return &RoutingTable{
		self:    self,
		space:   space,
		id:      selfID(self, space),
		fingers: fingers,
	}
}

func selfID(p Peer, space ring.Space) ring.ID {
	addr, err := ring.ParseAddress(p.Addr())
	if err != nil {
		return 0
	}
	return addr.ID(space)
}

// Self returns the node's own peer handle.
func (rt *RoutingTable) Self() Peer { return rt.self }

// SelfID returns the node's own ring identifier.
func (rt *RoutingTable) SelfID() ring.ID { return rt.id }

// Space returns the identifier space this table operates in.
func (rt *RoutingTable) Space() ring.Space { return rt.space }

// Successor returns the immediate successor (finger[0]).
func (rt *RoutingTable) Successor() Peer {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.fingers[0]
}

// SetSuccessor sets finger[0], the immediate successor.
func (rt *RoutingTable) SetSuccessor(p Peer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.fingers[0] = p
}

// Predecessor returns the current predecessor, or nil if unknown.
func (rt *RoutingTable) Predecessor() Peer {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.predecessor
}

// SetPredecessor replaces the predecessor pointer.
func (rt *RoutingTable) SetPredecessor(p Peer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.predecessor = p
}

// ClearPredecessor marks the predecessor unknown, e.g. after a failed
// liveness check.
func (rt *RoutingTable) ClearPredecessor() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.predecessor = nil
}

// Finger returns table entry i.
func (rt *RoutingTable) Finger(i uint) Peer {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.fingers[i]
}

// SetFinger replaces table entry i. Setting index 0 also updates the
// successor, since they are the same slot.
func (rt *RoutingTable) SetFinger(i uint, p Peer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.fingers[i] = p
}

// FingerList returns a copy of the finger table's non-nil entries for
// diagnostics.
func (rt *RoutingTable) FingerList() []Peer {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]Peer, 0, len(rt.fingers))
	for _, f := range rt.fingers {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// peerID computes the ring identifier for a peer's address. The zero
// space default never occurs in practice since Space is always set.
func (rt *RoutingTable) peerID(p Peer) ring.ID {
	if p == nil {
		return 0
	}
	if p.Addr() == rt.self.Addr() {
		return rt.id
	}
	return selfID(p, rt.space)
}

// ClosestPrecedingFinger scans fingers from the widest span down to the
// narrowest and returns the first entry whose identifier lies strictly
// between self and id. If none qualifies, returns self.
func (rt *RoutingTable) ClosestPrecedingFinger(id ring.ID) Peer {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for i := len(rt.fingers) - 1; i >= 0; i-- {
		f := rt.fingers[i]
		if f == nil {
			continue
		}
		fid := rt.peerID(f)
		if rt.space.InRangeOpen(fid, rt.id, id) {
			return f
		}
	}
	return rt.self
}
