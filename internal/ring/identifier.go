// Package ring implements the Chord identifier space: a modular ring of
// size M = 2^m with a total order and the half-open interval predicate
// that the rest of the DHT uses to decide key and finger ownership.
package ring

import "fmt"

// ID is an element of the modular ring [0, M).
type ID uint64

// Space is the process-wide identifier space configuration. m is fixed
// at start-up; all arithmetic on identifiers is modulo M = 2^m.
type Space struct {
	m uint
	M uint64
}

// DefaultBits matches the bit width used by the original implementation
// this core was distilled from.
const DefaultBits = 24

// NewSpace builds an identifier space of 2^bits identifiers. bits must be
// at least 8 and no larger than 63 (so M fits in a uint64 with room for
// arithmetic without overflow).
func NewSpace(bits uint) (Space, error) {
	if bits < 8 || bits > 63 {
		return Space{}, fmt.Errorf("ring: invalid bit width %d (want 8..63)", bits)
	}
	return Space{m: bits, M: uint64(1) << bits}, nil
}

// Bits reports the configured width m.
func (s Space) Bits() uint { return s.m }

// Mod reduces an arbitrary integer into the ring.
func (s Space) Mod(x uint64) ID { return ID(x % s.M) }

// Add computes (id + delta) mod M.
func (s Space) Add(id ID, delta uint64) ID {
	return ID((uint64(id) + delta) % s.M)
}

// Offset returns (id + 2^i) mod M, the target identifier for finger
// table entry i.
func (s Space) Offset(id ID, i uint) ID {
	return s.Add(id, uint64(1)<<i)
}

// InRange reports whether c lies in the half-open arc [a, b) walking
// clockwise around the ring. When a == b the arc covers the whole ring,
// so the predicate is always true. All three operands are first reduced
// modulo M.
//
// This is the single arbiter of key ownership and finger placement used
// throughout the rest of the package.
func (s Space) InRange(c, a, b ID) bool {
	a = s.Mod(uint64(a))
	b = s.Mod(uint64(b))
	c = s.Mod(uint64(c))
	if a == b {
		return true
	}
	if a < b {
		return a <= c && c < b
	}
	return a <= c || c < b
}

// InRangeIncl reports whether c lies in the half-open-then-inclusive arc
// (a, b], i.e. InRange(c, a+1, b+1). find_successor uses this form.
func (s Space) InRangeIncl(c, a, b ID) bool {
	return s.InRange(c, s.Add(a, 1), s.Add(b, 1))
}

// InRangeOpen reports whether c lies in the strictly open arc (a, b).
// closest_preceding_finger uses this form.
func (s Space) InRangeOpen(c, a, b ID) bool {
	if a == b {
		return c != a
	}
	if s.Add(a, 1) == s.Mod(uint64(b)) {
		// b directly follows a: no identifier lies strictly between.
		return false
	}
	return s.InRange(c, s.Add(a, 1), b)
}
