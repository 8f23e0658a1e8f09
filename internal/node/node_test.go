package node

import (
	"context"
	"testing"
)

func TestJoinWithNoBootstrapCreatesSingletonRing(t *testing.T) {
	space := mustSpace(t, 8)
	n := New("127.0.0.1:5000", space)

	if err := n.Join(context.Background(), ""); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if n.RoutingTable().Successor().Addr() != n.SelfAddr() {
		t.Errorf("Successor = %v, want self", n.RoutingTable().Successor())
	}
	if n.RoutingTable().Predecessor() != nil {
		t.Error("expected nil predecessor on a fresh singleton ring")
	}
}

func TestFindSuccessorOnSingletonReturnsSelf(t *testing.T) {
	space := mustSpace(t, 8)
	n := New("127.0.0.1:5000", space)
	n.CreateNewDHT()

	addr, err := n.FindSuccessor(context.Background(), 17, space.Bits())
	if err != nil {
		t.Fatalf("FindSuccessor: %v", err)
	}
	if addr != n.SelfAddr() {
		t.Errorf("FindSuccessor = %v, want self", addr)
	}
}

func TestIDAppliesOffsetModuloSpace(t *testing.T) {
	space := mustSpace(t, 8) // M = 256
	n := New("127.0.0.1:5000", space)

	id, err := n.ID(context.Background(), uint64(space.Bits()))
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	want := space.Add(n.SelfID(), uint64(space.Bits()))
	if id != want {
		t.Errorf("ID() = %v, want %v", id, want)
	}
}

func TestNotifyAdoptsFirstPredecessorAndClosesSingletonRing(t *testing.T) {
	space := mustSpace(t, 16)
	n := New("127.0.0.1:5000", space)
	n.CreateNewDHT()

	candidate := "127.0.0.1:5001"
	if err := n.Notify(context.Background(), candidate); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	pred := n.RoutingTable().Predecessor()
	if pred == nil || pred.Addr() != candidate {
		t.Errorf("Predecessor = %v, want %v", pred, candidate)
	}
	// A singleton ring's finger[0] (== successor) must close over to
	// the candidate too, per the two-node-ring bootstrap rule.
	if n.RoutingTable().Successor().Addr() != candidate {
		t.Errorf("Successor = %v, want %v", n.RoutingTable().Successor(), candidate)
	}
}

func TestPredecessorIDReportsUnknownInitially(t *testing.T) {
	space := mustSpace(t, 8)
	n := New("127.0.0.1:5000", space)

	if _, ok := n.PredecessorID(); ok {
		t.Error("expected no predecessor id on a fresh node")
	}
}
