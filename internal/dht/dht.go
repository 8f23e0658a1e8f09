// Package dht is the top-level facade: it binds a local node to a
// storage shard, exposes the get/set data-plane API, and implements
// transport.Handler so a single listener can serve both routing RPCs
// and data-plane RPCs on the same wire protocol.
package dht

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/kunwarpradip/distributedchord-dht/internal/daemon"
	"github.com/kunwarpradip/distributedchord-dht/internal/logger"
	"github.com/kunwarpradip/distributedchord-dht/internal/metrics"
	"github.com/kunwarpradip/distributedchord-dht/internal/node"
	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
	"github.com/kunwarpradip/distributedchord-dht/internal/storage"
)

const taskMigrate = "migrate_keys"

// DHT composes a routing node with a storage shard. It is the only
// type that implements transport.Handler: routing RPCs delegate to the
// node, get/set delegate to the shard (with the routing logic spec'd
// for the data plane layered on top).
type DHT struct {
	node    *node.Node
	storage *storage.Shard
	lgr     logger.Logger
	metrics *metrics.Registry
}

// New binds node and storage into a single facade.
func New(n *node.Node, shard *storage.Shard, lgr logger.Logger, m *metrics.Registry) *DHT {
	if lgr == nil {
		lgr = logger.NopLogger{}
	}
	return &DHT{node: n, storage: shard, lgr: lgr, metrics: m}
}

// Node returns the underlying routing node.
func (d *DHT) Node() *node.Node { return d.node }

// Storage returns the underlying storage shard.
func (d *DHT) Storage() *storage.Shard { return d.storage }

// HashKey reduces an arbitrary key string into the ring, the same way
// an address is reduced to an identifier.
func HashKey(key string, space ring.Space) ring.ID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return space.Mod(h.Sum64())
}

// Get looks up key: a local hit is returned immediately; a local miss
// is routed via find_successor(hash(key)) and fetched with a remote
// get. Any error along the way — routing failure, remote miss, network
// error — surfaces as a plain miss, never an exception, since a DHT
// under churn cannot distinguish a lost key from an unreachable peer
// within one round trip. The error return always comes back nil; it
// exists only so DHT satisfies transport.Handler.
func (d *DHT) Get(ctx context.Context, key string) (string, bool, error) {
	if value, ok := d.storage.Get(key); ok {
		if d.metrics != nil {
			d.metrics.IncrementOne(metrics.GetLocalHits)
		}
		return value, true, nil
	}

	if d.metrics != nil {
		d.metrics.IncrementOne(metrics.GetRemoteLookup)
	}

	id := HashKey(key, d.node.Space())
	ownerAddr, err := d.node.ResolveOwner(ctx, id)
	var routingErr *node.RoutingError
	if err != nil && !errors.As(err, &routingErr) {
		// Any error other than a degraded best-effort candidate leaves
		// nothing usable to try.
		if d.metrics != nil {
			d.metrics.IncrementOne(metrics.GetMiss)
		}
		return "", false, nil
	}
	// routingErr set means the hop budget ran out, but ownerAddr is
	// still the best candidate found along the way; try it rather than
	// failing outright, per the same contract fix_fingers honors.
	if ownerAddr == d.node.SelfAddr() {
		// find_successor says we own it, yet the local shard just
		// missed: the key genuinely does not exist anywhere.
		if d.metrics != nil {
			d.metrics.IncrementOne(metrics.GetMiss)
		}
		return "", false, nil
	}

	value, found, err := d.node.RemoteGet(ctx, ownerAddr, key)
	if err != nil || !found {
		if d.metrics != nil {
			d.metrics.IncrementOne(metrics.GetMiss)
		}
		return "", false, nil
	}
	return value, true, nil
}

// Set stores key/value locally unconditionally, per the deliberate
// eventual-consistency design: it does not route. A key landing on the
// wrong node is relocated by the next migration sweep. The error
// return always comes back nil under the current local-storage
// implementation; it exists so DHT satisfies transport.Handler, and so
// a future storage backend with a fallible Set has somewhere to report
// it.
func (d *DHT) Set(ctx context.Context, key, value string) error {
	d.storage.Set(key, value)
	return nil
}

// RegisterDaemons wires the node's routing daemons and the storage
// shard's migration sweep into sched.
func (d *DHT) RegisterDaemons(sched *daemon.Scheduler, stabilize, fixFingers, checkPredecessor, migrate time.Duration) {
	d.node.RegisterDaemons(sched, stabilize, fixFingers, checkPredecessor)
	sched.Add(taskMigrate, migrate, func(ctx context.Context) error {
		return d.storage.Migrate(ctx, func(key string) ring.ID {
			return HashKey(key, d.node.Space())
		}, d.node)
	})
}

// --- transport.Handler ---

func (d *DHT) Successor(ctx context.Context) (string, error) {
	return d.node.Successor(ctx)
}

func (d *DHT) Predecessor(ctx context.Context) (string, bool, error) {
	return d.node.Predecessor(ctx)
}

func (d *DHT) FindSuccessor(ctx context.Context, id ring.ID, hopsLeft uint) (string, error) {
	return d.node.FindSuccessor(ctx, id, hopsLeft)
}

func (d *DHT) ClosestPrecedingFinger(ctx context.Context, id ring.ID) (string, error) {
	return d.node.ClosestPrecedingFinger(ctx, id)
}

func (d *DHT) Notify(ctx context.Context, addr string) error {
	return d.node.Notify(ctx, addr)
}

func (d *DHT) Ping(ctx context.Context) error {
	return d.node.Ping(ctx)
}

func (d *DHT) ID(ctx context.Context, offset uint64) (ring.ID, error) {
	return d.node.ID(ctx, offset)
}

