package ring

import "testing"

func testSpace(t *testing.T, bits uint) Space {
	t.Helper()
	sp, err := NewSpace(bits)
	if err != nil {
		t.Fatalf("NewSpace(%d) failed: %v", bits, err)
	}
	return sp
}

func TestInRangeFullCircleWhenEqual(t *testing.T) {
	sp := testSpace(t, 8)
	for _, a := range []ID{0, 1, 100, 255} {
		for _, c := range []ID{0, 1, 100, 255} {
			if !sp.InRange(c, a, a) {
				t.Errorf("InRange(%d, %d, %d) = false, want true (full circle)", c, a, a)
			}
		}
	}
}

func TestInRangeExactlyOneDirection(t *testing.T) {
	sp := testSpace(t, 8)
	a, b := ID(10), ID(200)
	for c := ID(0); c < 256; c++ {
		if c == a || c == b {
			continue
		}
		fwd := sp.InRange(c, a, b)
		bwd := sp.InRange(c, b, a)
		if fwd == bwd {
			t.Fatalf("InRange(%d,%d,%d)=%v and InRange(%d,%d,%d)=%v, want exactly one true", c, a, b, fwd, c, b, a, bwd)
		}
	}
}

func TestInRangeWrapAround(t *testing.T) {
	sp := testSpace(t, 8)
	if !sp.InRange(5, 250, 10) {
		t.Error("expected 5 to be in wrapping range [250, 10)")
	}
	if sp.InRange(200, 250, 10) {
		t.Error("expected 200 to not be in wrapping range [250, 10)")
	}
}

func TestInRangeInclLeftExcludedRightIncluded(t *testing.T) {
	sp := testSpace(t, 8)
	a, b := ID(10), ID(20)
	if sp.InRangeIncl(a, a, b) {
		t.Error("(a, b] should exclude a")
	}
	if !sp.InRangeIncl(b, a, b) {
		t.Error("(a, b] should include b")
	}
}

func TestInRangeOpenExcludesBothEndpoints(t *testing.T) {
	sp := testSpace(t, 8)
	a, b := ID(10), ID(20)
	if sp.InRangeOpen(a, a, b) || sp.InRangeOpen(b, a, b) {
		t.Error("(a, b) should exclude both endpoints")
	}
	if !sp.InRangeOpen(15, a, b) {
		t.Error("(a, b) should include 15")
	}
}

func TestOffsetWraps(t *testing.T) {
	sp := testSpace(t, 8) // M = 256
	if got := sp.Offset(255, 0); got != 0 {
		t.Errorf("Offset(255, 2^0) = %d, want 0 (wrap)", got)
	}
	if got := sp.Offset(1, 2); got != 5 {
		t.Errorf("Offset(1, 2^2) = %d, want 5", got)
	}
}

func TestNewSpaceRejectsOutOfRangeBits(t *testing.T) {
	if _, err := NewSpace(4); err == nil {
		t.Error("expected error for bits < 8")
	}
	if _, err := NewSpace(64); err == nil {
		t.Error("expected error for bits > 63")
	}
}
