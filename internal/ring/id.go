// Package ring implements the identifier algebra of the Chord overlay:
// hashing addresses/keys onto an m-bit ring and testing arc membership.
package ring

import (
	"crypto/sha1"
	"encoding/hex"
	"math/big"
)

// ID is a point on the ring, carrying both representations so callers
// never have to re-derive one from the other.
//
// Numeric is a uint64, and Modulus computes 2^bits in a uint64, so
// finger_table_sz must be below 64: at 64 the modulus wraps to zero.
type ID struct {
	Hex     string
	Numeric uint64
}

// HashID hashes key (treated as a UTF-8 string) with SHA-1 and retains
// the leading bits bits of the digest. bits must be a multiple of 4.
func HashID(key string, bits int) ID {
	sum := sha1.Sum([]byte(key))
	full := hex.EncodeToString(sum[:])
	hexDigits := bits / 4
	h := full[:hexDigits]

	n := new(big.Int)
	n.SetString(h, 16)
	return ID{Hex: h, Numeric: n.Uint64()}
}

// Modulus returns 2^bits, the size of the ring's identifier space.
func Modulus(bits int) uint64 {
	return uint64(1) << uint(bits)
}

// Between answers whether x lies on the arc that starts at left (going
// clockwise) and ends at right, per spec: endpoints adjust inward by one
// position when exclusive, the arc wraps when left >= right, and the
// empty/full special case applies when left == right.
func Between(x, left, right uint64, mod uint64, inclLeft, inclRight bool) bool {
	if left == right {
		switch {
		case inclLeft && inclRight:
			// Every point on the ring qualifies — the sole-node case.
			return true
		case !inclLeft && !inclRight:
			// Empty arc.
			return false
		default:
			// Mixed inclusivity with a single ring point as both
			// endpoints: everything except that point qualifies. This is
			// what lets find_successor's (self, successor] check resolve
			// correctly on a ring of one, where self == successor.
			return x != left
		}
	}

	if inclLeft {
		left = (left - 1 + mod) % mod
	}
	if inclRight {
		right = (right + 1) % mod
	}

	if left < right {
		return x > left && x < right
	}
	// Wrap-around arc.
	return x > left || x < right
}
