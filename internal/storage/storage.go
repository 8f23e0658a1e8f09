// Package storage implements the key/value shard each node holds and
// the migration daemon that keeps keys converging onto their rightful
// owner as the ring's membership changes.
package storage

import (
	"context"
	"sync"

	"github.com/kunwarpradip/distributedchord-dht/internal/logger"
	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
)

// Lookup is the subset of node behavior migration needs: the node's own
// identifier, its predecessor (if any), a way to resolve the owner of
// an arbitrary identifier, and a way to store a value on a remote peer.
// The storage package depends on this narrow interface rather than the
// node package directly, avoiding an import cycle between them.
type Lookup interface {
	SelfID() ring.ID
	Space() ring.Space
	PredecessorID() (ring.ID, bool)
	ResolveOwner(ctx context.Context, id ring.ID) (string, error)
	RemoteSet(ctx context.Context, addr, key, value string) error
}

// Shard is one node's local key/value store: a mutex-guarded map plus
// the migration sweep that relocates keys that no longer belong here.
type Shard struct {
	mu   sync.Mutex
	data map[string]string

	lgr logger.Logger
}

// NewShard returns an empty shard.
func NewShard(lgr logger.Logger) *Shard {
	if lgr == nil {
		lgr = logger.NopLogger{}
	}
	return &Shard{data: make(map[string]string), lgr: lgr}
}

// Set stores unconditionally — it never routes. A key landing on the
// wrong node is relocated by the next migration sweep.
func (s *Shard) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get returns the locally stored value for key, if any.
func (s *Shard) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Delete removes a key.
func (s *Shard) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns a snapshot of the current key set, safe to iterate
// without holding the shard's lock.
func (s *Shard) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Len reports the number of locally stored keys.
func (s *Shard) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Migrate runs one migration sweep: for each locally held key, decide
// whether it still belongs here; if not, hand it off to its new owner
// and mark it for deletion. Deletion happens in one final pass after
// the sweep, never while iterating.
func (s *Shard) Migrate(ctx context.Context, hash func(key string) ring.ID, lookup Lookup) error {
	predID, hasPred := lookup.PredecessorID()
	if !hasPred {
		// We cannot know our lower ownership boundary yet.
		return nil
	}

	space := lookup.Space()
	lo := space.Add(predID, 1)
	hi := space.Add(lookup.SelfID(), 1)

	keys := s.Keys()
	toDelete := make([]string, 0)

	for _, key := range keys {
		id := hash(key)
		if space.InRange(id, lo, hi) {
			continue // still ours
		}

		value, ok := s.Get(key)
		if !ok {
			continue // concurrently deleted
		}

		ownerAddr, err := lookup.ResolveOwner(ctx, id)
		if err != nil {
			s.lgr.Debug("migrate: lookup failed, retrying next sweep", logger.F("key", key), logger.F("error", err.Error()))
			continue
		}

		if err := lookup.RemoteSet(ctx, ownerAddr, key, value); err != nil {
			s.lgr.Debug("migrate: handoff failed, retrying next sweep", logger.F("key", key), logger.F("owner", ownerAddr), logger.F("error", err.Error()))
			continue
		}

		toDelete = append(toDelete, key)
	}

	for _, key := range toDelete {
		s.Delete(key)
	}
	return nil
}
