package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kunwarpradip/distributedchord-dht/internal/logger"
	"github.com/kunwarpradip/distributedchord-dht/internal/metrics"
	"github.com/kunwarpradip/distributedchord-dht/internal/netsim"
	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
	"github.com/kunwarpradip/distributedchord-dht/internal/transport"
)

// RoutingError is returned by FindSuccessor when the depth-limited
// recursion runs out of hops; the caller still gets the best candidate
// found so far, not a hard failure.
type RoutingError struct {
	ID   ring.ID
	Hops uint
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("node: find_successor(%d) exceeded %d hop limit", e.ID, e.Hops)
}

// Node is one Chord participant: a routing table plus the join, lookup,
// and stabilization logic that keeps it correct under churn. It knows
// nothing about key/value storage — that lives one layer up, in the
// DHT facade, which composes a Node with a storage shard.
type Node struct {
	rt  *RoutingTable
	lgr logger.Logger

	metrics *metrics.Registry
	netsim  *netsim.Profile
	tracer  trace.Tracer

	rpcTimeout time.Duration
}

// Option configures optional Node collaborators.
type Option func(*Node)

func WithLogger(l logger.Logger) Option {
	return func(n *Node) { n.lgr = l }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(n *Node) { n.metrics = m }
}

func WithNetsim(p *netsim.Profile) Option {
	return func(n *Node) { n.netsim = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(n *Node) { n.tracer = t }
}

func WithRPCTimeout(d time.Duration) Option {
	return func(n *Node) { n.rpcTimeout = d }
}

// New builds a node listening (logically) at selfAddr, starting as a
// singleton ring: no predecessor, every finger pointing at self.
func New(selfAddr string, space ring.Space, opts ...Option) *Node {
	self := NewPeer(selfAddr)
	n := &Node{
		rt:         NewRoutingTable(self, space),
		lgr:        logger.NopLogger{},
		netsim:     netsim.NewProfile(),
		rpcTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RoutingTable exposes the node's table to collaborators that need to
// read it directly (daemons, diagnostics, the DHT facade).
func (n *Node) RoutingTable() *RoutingTable { return n.rt }

// Space returns the identifier space this node operates in.
func (n *Node) Space() ring.Space { return n.rt.Space() }

// SelfID returns this node's own ring identifier.
func (n *Node) SelfID() ring.ID { return n.rt.SelfID() }

// SelfAddr returns this node's own address.
func (n *Node) SelfAddr() string { return n.rt.Self().Addr() }

// peer builds an outbound RPC proxy to addr, wired to this node's
// shared collaborators.
func (n *Node) peer(addr string) *transport.RemotePeer {
	return transport.NewRemotePeer(addr,
		transport.WithPeerTimeout(n.rpcTimeout),
		transport.WithPeerNetsim(n.netsim),
		transport.WithPeerMetrics(n.metrics),
		transport.WithPeerTracer(n.tracer))
}

// isSelf reports whether addr names this node, short-circuiting RPCs
// per the remote-peer-handle contract in the spec.
func (n *Node) isSelf(addr string) bool {
	return addr == n.SelfAddr()
}

// Join makes this node part of the ring rooted at bootstrapAddr. An
// empty bootstrapAddr creates a fresh singleton ring instead.
func (n *Node) Join(ctx context.Context, bootstrapAddr string) error {
	if bootstrapAddr == "" {
		n.CreateNewDHT()
		return nil
	}
	successorAddr, err := n.peer(bootstrapAddr).FindSuccessor(ctx, n.SelfID(), uint64(n.Space().Bits()))
	if err != nil {
		return fmt.Errorf("node: join via %s: %w", bootstrapAddr, err)
	}
	n.rt.SetSuccessor(NewPeer(successorAddr))
	n.rt.ClearPredecessor()
	n.lgr.Info("joined ring", logger.F("bootstrap", bootstrapAddr), logger.F("successor", successorAddr))
	return nil
}

// CreateNewDHT resets this node to a fresh singleton ring: its own
// successor, no predecessor.
func (n *Node) CreateNewDHT() {
	n.rt.SetSuccessor(n.rt.Self())
	n.rt.ClearPredecessor()
}

// Successor returns the immediate successor's address.
func (n *Node) Successor(ctx context.Context) (string, error) {
	return n.rt.Successor().Addr(), nil
}

// Predecessor returns the predecessor's address and whether one is
// known.
func (n *Node) Predecessor(ctx context.Context) (string, bool, error) {
	p := n.rt.Predecessor()
	if p == nil {
		return "", false, nil
	}
	return p.Addr(), true, nil
}

// ID computes (self.id + offset) mod M, per the remote peer handle's
// id(offset) RPC.
func (n *Node) ID(ctx context.Context, offset uint64) (ring.ID, error) {
	return n.Space().Add(n.SelfID(), offset), nil
}

// Ping is a liveness check; reaching this method at all is success.
func (n *Node) Ping(ctx context.Context) error { return nil }

// PredecessorID reports the predecessor's ring identifier, for callers
// (the migration sweep) that need the ownership boundary without an
// address round trip. ok is false when no predecessor is known yet.
func (n *Node) PredecessorID() (id ring.ID, ok bool) {
	pred := n.rt.Predecessor()
	if pred == nil {
		return 0, false
	}
	return n.rt.peerID(pred), true
}

// RemoteSet performs the remote half of a migration handoff: store
// key/value on the node at addr. A handoff to this node itself is
// refused with an error, so the sweep keeps the key rather than deleting
// it after a transfer that stored nothing.
func (n *Node) RemoteSet(ctx context.Context, addr, key, value string) error {
	if n.isSelf(addr) {
		return fmt.Errorf("node: handoff target %s is this node", addr)
	}
	return n.peer(addr).Set(ctx, key, value)
}

// RemoteGet fetches key from the node at addr, the remote half of the
// DHT facade's Get routing.
func (n *Node) RemoteGet(ctx context.Context, addr, key string) (string, bool, error) {
	if n.isSelf(addr) {
		return "", false, nil
	}
	return n.peer(addr).Get(ctx, key)
}

// ResolveOwner resolves id's owner using a fresh, full hop budget. It is
// the entry point for in-process callers (the DHT facade, the migration
// sweep) that don't already have a budget to thread through; the
// budget-carrying FindSuccessor below is what crosses the wire.
func (n *Node) ResolveOwner(ctx context.Context, id ring.ID) (string, error) {
	return n.FindSuccessor(ctx, id, n.Space().Bits())
}

// HopLimitExceeded satisfies transport.HopLimitExceeded, letting the
// server dispatch recognize a degraded success without importing this
// package.
func (e *RoutingError) HopLimitExceeded() bool { return true }

// FindSuccessor resolves the owner of id: return the immediate
// successor if id falls in (self.id, successor.id], otherwise forward
// to the closest preceding finger and recurse by RPC. hopsLeft is the
// remaining recursion budget; it is decremented and carried over the
// wire on every forward, so the depth limit bounds the whole lookup
// chain rather than resetting at each node it passes through. A
// top-level caller starting a fresh lookup should pass
// n.Space().Bits(). Exceeding the budget returns the best candidate
// found so far alongside a *RoutingError, rather than failing outright.
func (n *Node) FindSuccessor(ctx context.Context, id ring.ID, hopsLeft uint) (string, error) {
	succ := n.rt.Successor()
	succID := n.rt.peerID(succ)

	if n.Space().InRangeIncl(id, n.SelfID(), succID) {
		return succ.Addr(), nil
	}

	closest := n.rt.ClosestPrecedingFinger(id)
	if closest.Addr() == n.SelfAddr() {
		// No finger precedes id more closely than we do, so our own
		// successor is the best answer known.
		return succ.Addr(), nil
	}
	if hopsLeft == 0 {
		n.lgr.Warn("find_successor hop limit reached", logger.F("id", id))
		return closest.Addr(), &RoutingError{ID: id, Hops: n.Space().Bits()}
	}

	nextAddr, err := n.peer(closest.Addr()).FindSuccessor(ctx, id, uint64(hopsLeft-1))
	if err != nil {
		var hopErr *transport.HopLimitError
		if errors.As(err, &hopErr) {
			return hopErr.Addr, &RoutingError{ID: id, Hops: n.Space().Bits()}
		}
		// Dead or unreachable finger: fall back to our own successor
		// rather than propagating a hard failure.
		n.lgr.Debug("find_successor forward failed", logger.F("peer", closest.Addr()), logger.F("error", err.Error()))
		return succ.Addr(), nil
	}
	return nextAddr, nil
}

// ClosestPrecedingFinger answers the inbound RPC of the same name by
// delegating to the routing table.
func (n *Node) ClosestPrecedingFinger(ctx context.Context, id ring.ID) (string, error) {
	return n.rt.ClosestPrecedingFinger(id).Addr(), nil
}

// Notify handles a candidate announcing itself as our possible
// predecessor: adopt it if we have none, or if it falls strictly
// between our current predecessor and ourselves. A singleton ring's
// finger[0] is also closed over to the candidate, since in a two-node
// ring the only way to learn of the peer is through notify.
func (n *Node) Notify(ctx context.Context, candidateAddr string) error {
	candidate := NewPeer(candidateAddr)
	candidateID := n.rt.peerID(candidate)

	pred := n.rt.Predecessor()
	adopt := pred == nil
	if !adopt {
		predID := n.rt.peerID(pred)
		adopt = n.Space().InRange(candidateID, n.Space().Add(predID, 1), n.SelfID())
	}
	if adopt {
		n.rt.SetPredecessor(candidate)
	}

	if n.rt.Successor().Addr() == n.SelfAddr() {
		n.rt.SetSuccessor(candidate)
	}
	return nil
}
