package storage

import (
	"context"
	"testing"

	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
)

func mustSpace(t *testing.T, bits uint) ring.Space {
	t.Helper()
	space, err := ring.NewSpace(bits)
	if err != nil {
		t.Fatalf("ring.NewSpace(%d): %v", bits, err)
	}
	return space
}

// fakeLookup is a minimal Lookup for exercising Migrate without a real
// node or network.
type fakeLookup struct {
	space    ring.Space
	selfID   ring.ID
	predID   ring.ID
	hasPred  bool
	owner    map[ring.ID]string
	received map[string]string
	failSet  bool
}

func newFakeLookup(space ring.Space, selfID, predID ring.ID, hasPred bool) *fakeLookup {
	return &fakeLookup{
		space:    space,
		selfID:   selfID,
		predID:   predID,
		hasPred:  hasPred,
		owner:    make(map[ring.ID]string),
		received: make(map[string]string),
	}
}

func (f *fakeLookup) SelfID() ring.ID      { return f.selfID }
func (f *fakeLookup) Space() ring.Space    { return f.space }
func (f *fakeLookup) PredecessorID() (ring.ID, bool) {
	return f.predID, f.hasPred
}
func (f *fakeLookup) ResolveOwner(ctx context.Context, id ring.ID) (string, error) {
	return f.owner[id], nil
}
func (f *fakeLookup) RemoteSet(ctx context.Context, addr, key, value string) error {
	if f.failSet {
		return context.Canceled
	}
	f.received[key] = value
	return nil
}

func TestMigrateSkipsWhenPredecessorUnknown(t *testing.T) {
	space := mustSpace(t, 8)
	shard := NewShard(nil)
	shard.Set("k", "v")
	lookup := newFakeLookup(space, 10, 0, false)

	if err := shard.Migrate(context.Background(), func(string) ring.ID { return 200 }, lookup); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if shard.Len() != 1 {
		t.Error("expected key to remain when predecessor is unknown")
	}
}

func TestMigrateKeepsOwnedKeys(t *testing.T) {
	space := mustSpace(t, 8) // M = 256
	shard := NewShard(nil)
	shard.Set("mine", "v")
	lookup := newFakeLookup(space, 100, 50, true) // owns (50, 100]

	if err := shard.Migrate(context.Background(), func(string) ring.ID { return 75 }, lookup); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if shard.Len() != 1 {
		t.Error("expected owned key to stay")
	}
}

func TestMigrateHandsOffUnownedKeys(t *testing.T) {
	space := mustSpace(t, 8)
	shard := NewShard(nil)
	shard.Set("theirs", "v")
	lookup := newFakeLookup(space, 100, 50, true) // owns (50, 100]
	lookup.owner[200] = "127.0.0.1:6000"

	if err := shard.Migrate(context.Background(), func(string) ring.ID { return 200 }, lookup); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if shard.Len() != 0 {
		t.Error("expected unowned key to be deleted after handoff")
	}
	if lookup.received["theirs"] != "v" {
		t.Error("expected handed-off key to reach the new owner")
	}
}

func TestMigrateRetainsKeyWhenHandoffFails(t *testing.T) {
	space := mustSpace(t, 8)
	shard := NewShard(nil)
	shard.Set("theirs", "v")
	lookup := newFakeLookup(space, 100, 50, true)
	lookup.owner[200] = "127.0.0.1:6000"
	lookup.failSet = true

	if err := shard.Migrate(context.Background(), func(string) ring.ID { return 200 }, lookup); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if shard.Len() != 1 {
		t.Error("expected key to remain for retry after a failed handoff")
	}
}

func TestSetGetDelete(t *testing.T) {
	shard := NewShard(nil)
	if _, ok := shard.Get("x"); ok {
		t.Fatal("expected miss before Set")
	}
	shard.Set("x", "1")
	if v, ok := shard.Get("x"); !ok || v != "1" {
		t.Errorf("Get = (%q, %v), want (1, true)", v, ok)
	}
	shard.Delete("x")
	if _, ok := shard.Get("x"); ok {
		t.Error("expected miss after Delete")
	}
}
