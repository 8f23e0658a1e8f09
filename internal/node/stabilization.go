package node

import (
	"context"
	"time"

	"github.com/kunwarpradip/distributedchord-dht/internal/daemon"
	"github.com/kunwarpradip/distributedchord-dht/internal/logger"
	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
)

const (
	taskStabilize        = "stabilize"
	taskFixFingers       = "fix_fingers"
	taskCheckPredecessor = "check_predecessor"
)

// fingerCursor tracks the rotating finger index fix_fingers maintains
// across ticks, per §4.5: next cycles over [1, m-1], skipping 0 since
// stabilize owns that slot.
type fingerCursor struct {
	next uint
	m    uint
}

func newFingerCursor(m uint) *fingerCursor {
	return &fingerCursor{next: 1, m: m}
}

func (c *fingerCursor) advance() uint {
	if c.m <= 1 {
		return 0
	}
	cur := c.next
	c.next++
	if c.next >= c.m {
		c.next = 1
	}
	return cur
}

// RegisterDaemons wires this node's three routing maintenance tasks
// (stabilize, fix_fingers, check_predecessor) into sched, each on its
// own cadence. Migration is a storage-shard concern registered
// separately by the DHT facade.
func (n *Node) RegisterDaemons(sched *daemon.Scheduler, stabilizeEvery, fixFingersEvery, checkPredecessorEvery time.Duration) {
	cursor := newFingerCursor(n.Space().Bits())
	sched.Add(taskStabilize, stabilizeEvery, n.stabilize)
	sched.Add(taskFixFingers, fixFingersEvery, func(ctx context.Context) error {
		return n.fixFinger(ctx, cursor.advance())
	})
	sched.Add(taskCheckPredecessor, checkPredecessorEvery, n.checkPredecessor)
}

// addrID computes the ring identifier of an address without going
// through a live RemotePeer, mirroring RoutingTable.peerID.
func addrID(addr string, space ring.Space) ring.ID {
	parsed, err := ring.ParseAddress(addr)
	if err != nil {
		return 0
	}
	return parsed.ID(space)
}

// stabilize asks the current successor for its predecessor x; if x
// falls strictly between self and the successor, it has joined more
// recently than our view knows about, so we adopt it as our new
// successor. Either way we then notify the (possibly updated)
// successor that we might be its predecessor — this is the sole
// mechanism by which a newly joined node becomes visible.
func (n *Node) stabilize(ctx context.Context) error {
	succAddr := n.rt.Successor().Addr()
	if n.isSelf(succAddr) {
		// Singleton ring: nothing to stabilize against yet. A future
		// notify() will close the ring to two nodes.
		return nil
	}

	x, hasX, err := n.peer(succAddr).Predecessor(ctx)
	if err != nil {
		n.lgr.Debug("stabilize: predecessor query failed",
			logger.F("successor", succAddr), logger.F("error", err.Error()))
		return nil
	}

	newSucc := succAddr
	if hasX && x != "" {
		xID := addrID(x, n.Space())
		succID := addrID(succAddr, n.Space())
		if n.Space().InRangeOpen(xID, n.SelfID(), succID) {
			newSucc = x
			n.rt.SetSuccessor(NewPeer(newSucc))
		}
	}

	if err := n.peer(newSucc).Notify(ctx, n.SelfAddr()); err != nil {
		n.lgr.Debug("stabilize: notify failed",
			logger.F("successor", newSucc), logger.F("error", err.Error()))
	}
	return nil
}

// fixFinger recomputes finger[i] by looking up the owner of
// (self.id + 2^i) mod M.
func (n *Node) fixFinger(ctx context.Context, i uint) error {
	if i == 0 {
		return nil
	}
	target := n.Space().Offset(n.SelfID(), i)
	addr, err := n.FindSuccessor(ctx, target, n.Space().Bits())
	if err != nil {
		// A depth-limited RoutingError still carries a usable
		// candidate; anything else just retries next tick.
		var routingErr *RoutingError
		if !asRoutingError(err, &routingErr) {
			n.lgr.Debug("fix_fingers: lookup failed", logger.F("index", i), logger.F("error", err.Error()))
			return nil
		}
	}
	if addr != "" {
		n.rt.SetFinger(i, NewPeer(addr))
	}
	return nil
}

func asRoutingError(err error, target **RoutingError) bool {
	re, ok := err.(*RoutingError)
	if ok {
		*target = re
	}
	return ok
}

// checkPredecessor pings the predecessor and clears it on failure; a
// subsequent inbound notify repopulates it.
func (n *Node) checkPredecessor(ctx context.Context) error {
	pred := n.rt.Predecessor()
	if pred == nil {
		return nil
	}
	if err := n.peer(pred.Addr()).Ping(ctx); err != nil {
		n.lgr.Debug("check_predecessor: ping failed, clearing predecessor",
			logger.F("predecessor", pred.Addr()), logger.F("error", err.Error()))
		n.rt.ClearPredecessor()
	}
	return nil
}
