package ring

import (
	"fmt"
	"hash/fnv"
	"net"
)

// Address is a network endpoint hashed into the ring to produce a node's
// identifier. Two distinct endpoints that happen to collide on the same
// identifier are tolerated: the ring is first-come-first-serve, so the
// earlier bootstrap arrival owns the slot.
type Address struct {
	Host string
	Port int
}

// ParseAddress splits a "host:port" string into an Address.
func ParseAddress(hostport string) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Address{}, fmt.Errorf("ring: invalid address %q: %w", hostport, err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return Address{}, fmt.Errorf("ring: invalid port in %q: %w", hostport, err)
	}
	return Address{Host: host, Port: port}, nil
}

// String renders the address in "host:port" form.
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Equal compares two addresses by their ring identifier, not by their
// literal host/port — this matches the ring's first-come-first-serve
// collision rule.
func (a Address) Equal(o Address, space Space) bool {
	return a.ID(space) == o.ID(space)
}

// ID computes the stable ring identifier for this address: an FNV-1a
// hash of "host:port" reduced modulo M.
func (a Address) ID(space Space) ID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(a.String()))
	return space.Mod(h.Sum64())
}
