// Package bootstrap resolves the set of peer addresses a node should
// try to join through, and optionally registers/deregisters this node
// with a discovery backend so later joiners can find it.
package bootstrap

import "context"

// Bootstrap discovers candidate peers to join a ring through, and
// advertises this node's own address for future discovery.
type Bootstrap interface {
	// Discover returns addresses to try, in order, as join targets. An
	// empty slice means: create a fresh ring.
	Discover(ctx context.Context) ([]string, error)
	// Register advertises selfAddr so later joiners can discover it.
	Register(ctx context.Context, selfAddr string) error
	// Deregister removes a prior Register.
	Deregister(ctx context.Context, selfAddr string) error
}

// StaticBootstrap resolves a fixed, operator-supplied peer list. Its
// Register/Deregister are no-ops since there is no backend to update.
type StaticBootstrap struct {
	peers []string
}

// NewStaticBootstrap returns a Bootstrap backed by a fixed peer list.
func NewStaticBootstrap(peers []string) *StaticBootstrap {
	cp := make([]string, len(peers))
	copy(cp, peers)
	return &StaticBootstrap{peers: cp}
}

func (s *StaticBootstrap) Discover(ctx context.Context) ([]string, error) {
	return s.peers, nil
}

func (s *StaticBootstrap) Register(ctx context.Context, selfAddr string) error   { return nil }
func (s *StaticBootstrap) Deregister(ctx context.Context, selfAddr string) error { return nil }
