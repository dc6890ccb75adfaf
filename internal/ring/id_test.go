package ring

import "testing"

func TestHashIDDeterministic(t *testing.T) {
	a := HashID("127.0.0.1:5000", 16)
	b := HashID("127.0.0.1:5000", 16)
	if a.Hex != b.Hex || a.Numeric != b.Numeric {
		t.Fatalf("hash not deterministic: %+v vs %+v", a, b)
	}
	if len(a.Hex) != 4 {
		t.Fatalf("expected 4 hex digits for 16 bits, got %d (%q)", len(a.Hex), a.Hex)
	}
	if a.Numeric >= Modulus(16) {
		t.Fatalf("numeric id %d out of range for 16 bits", a.Numeric)
	}
}

func TestHashIDDiffers(t *testing.T) {
	a := HashID("node-a", 16)
	b := HashID("node-b", 16)
	if a.Hex == b.Hex {
		t.Fatalf("expected different hashes for different inputs")
	}
}

func TestBetweenEqualEndpoints(t *testing.T) {
	mod := Modulus(8)
	if Between(5, 10, 10, mod, false, false) {
		t.Fatalf("equal exclusive endpoints must be the empty arc")
	}
	for x := uint64(0); x < mod; x++ {
		if !Between(x, 10, 10, mod, true, true) {
			t.Fatalf("equal inclusive endpoints must cover the whole ring, missed %d", x)
		}
	}
}

func TestBetweenEqualEndpointsMixedInclusivity(t *testing.T) {
	mod := Modulus(8)
	if Between(10, 10, 10, mod, false, true) {
		t.Fatalf("the shared endpoint itself must not qualify under mixed inclusivity")
	}
	for _, x := range []uint64{0, 9, 11, 200} {
		if !Between(x, 10, 10, mod, false, true) {
			t.Fatalf("expected %d to qualify on a ring of one (every point but the node itself)", x)
		}
	}
}

func TestBetweenNoWrap(t *testing.T) {
	mod := Modulus(8)
	// (2, 10) exclusive-exclusive: 3..9
	for x := uint64(3); x < 10; x++ {
		if !Between(x, 2, 10, mod, false, false) {
			t.Fatalf("expected %d in (2,10)", x)
		}
	}
	if Between(2, 2, 10, mod, false, false) || Between(10, 2, 10, mod, false, false) {
		t.Fatalf("endpoints must be excluded")
	}
	if !Between(2, 2, 10, mod, true, false) {
		t.Fatalf("left endpoint should be included with inclLeft=true")
	}
	if !Between(10, 2, 10, mod, false, true) {
		t.Fatalf("right endpoint should be included with inclRight=true")
	}
}

func TestBetweenWrap(t *testing.T) {
	mod := Modulus(8)
	// (250, 5) wraps around 0: values > 250 or < 5
	if !Between(253, 250, 5, mod, false, false) {
		t.Fatalf("expected wrap-arc to include 253")
	}
	if !Between(3, 250, 5, mod, false, false) {
		t.Fatalf("expected wrap-arc to include 3")
	}
	if Between(100, 250, 5, mod, false, false) {
		t.Fatalf("100 should not be inside the wrap arc")
	}
}

func TestBetweenSymmetryCoversRingExactlyOnce(t *testing.T) {
	mod := Modulus(6)
	left, right := uint64(12), uint64(40)
	for x := uint64(0); x < mod; x++ {
		a := Between(x, left, right, mod, false, true) // (left, right]
		b := Between(x, right, left, mod, false, true) // (right, left]
		if a == b {
			t.Fatalf("x=%d: exactly one of (left,right] / (right,left] must hold, got a=%v b=%v", x, a, b)
		}
	}
}
