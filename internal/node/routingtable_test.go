package node

import (
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

func TestNewRoutingTableStartsAsSingleton(t *testing.T) {
	space := mustSpace(t, 8)
	self := NewPeer("127.0.0.1:5000")
	rt := NewRoutingTable(self, space)

	if rt.Successor().Addr() != self.Addr() {
		t.Errorf("Successor() = %v, want self", rt.Successor())
	}
	if rt.Predecessor() != nil {
		t.Errorf("Predecessor() = %v, want nil", rt.Predecessor())
	}
	for i := uint(0); i < space.Bits(); i++ {
		if rt.Finger(i).Addr() != self.Addr() {
			t.Errorf("Finger(%d) = %v, want self", i, rt.Finger(i))
		}
	}
}

func TestSetAndGetSuccessor(t *testing.T) {
	space := mustSpace(t, 8)
	self := NewPeer("127.0.0.1:5000")
	rt := NewRoutingTable(self, space)

	other := NewPeer("127.0.0.1:5001")
	rt.SetSuccessor(other)
	if rt.Successor().Addr() != other.Addr() {
		t.Errorf("Successor() = %v, want %v", rt.Successor(), other)
	}
	if rt.Finger(0).Addr() != other.Addr() {
		t.Errorf("Finger(0) should mirror SetSuccessor, got %v", rt.Finger(0))
	}
}

func TestSetAndGetPredecessor(t *testing.T) {
	space := mustSpace(t, 8)
	self := NewPeer("127.0.0.1:5000")
	rt := NewRoutingTable(self, space)

	if rt.Predecessor() != nil {
		t.Fatal("expected nil predecessor initially")
	}
	other := NewPeer("127.0.0.1:5002")
	rt.SetPredecessor(other)
	if rt.Predecessor().Addr() != other.Addr() {
		t.Errorf("Predecessor() = %v, want %v", rt.Predecessor(), other)
	}
	rt.ClearPredecessor()
	if rt.Predecessor() != nil {
		t.Error("expected nil predecessor after Clear")
	}
}

func TestFingerListOmitsNilEntries(t *testing.T) {
	space := mustSpace(t, 8)
	self := NewPeer("127.0.0.1:6000")
	rt := NewRoutingTable(self, space)
	rt.SetFinger(1, nil)

	list := rt.FingerList()
	if len(list) != int(space.Bits())-1 {
		t.Errorf("FingerList length = %d, want %d", len(list), space.Bits()-1)
	}
}

func TestClosestPrecedingFingerFallsBackToSelf(t *testing.T) {
	space := mustSpace(t, 8)
	self := NewPeer("127.0.0.1:5000")
	rt := NewRoutingTable(self, space)

	// All fingers still point at self; nothing can be strictly between
	// self and any id, so the table must fall back to self.
	got := rt.ClosestPrecedingFinger(ring.ID(42))
	if got.Addr() != self.Addr() {
		t.Errorf("ClosestPrecedingFinger = %v, want self", got)
	}
}
