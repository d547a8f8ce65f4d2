// Package chord implements the ring membership model and key-lookup
// routing layer of a fixed-membership Chord key-value store.
package chord

import (
	"crypto/sha1"
	"math/big"
)

// idBits is the width of the ring identifier space: 160 bits, the
// output size of SHA-1.
const idBits = 160

// ringSize is 2^160, the total number of ring positions.
var ringSize = new(big.Int).Lsh(big.NewInt(1), idBits)

// HashID hashes the UTF-8 bytes of text with SHA-1 and returns the
// digest as a big-endian unsigned 160-bit integer. It is the sole
// source of ring identifiers for both node addresses and keys, and is
// deterministic across processes.
func HashID(text string) *big.Int {
	sum := sha1.Sum([]byte(text))
	return new(big.Int).SetBytes(sum[:])
}

// addMod2 computes (base + 2^i) mod 2^160.
func addMod2(base *big.Int, i int) *big.Int {
	offset := new(big.Int).Lsh(big.NewInt(1), uint(i))
	sum := new(big.Int).Add(base, offset)
	return sum.Mod(sum, ringSize)
}

// InArcOC reports whether x lies in the half-open-closed ring arc
// (low, high]: low excluded, high included, wrapping through 0 when
// low > high. When low == high the arc covers the whole ring (the
// degenerate one-node case), so every x is in range.
func InArcOC(x, low, high *big.Int) bool {
	switch low.Cmp(high) {
	case 0:
		return true
	case -1:
		return x.Cmp(low) > 0 && x.Cmp(high) <= 0
	default:
		return x.Cmp(low) > 0 || x.Cmp(high) <= 0
	}
}

// InArcOO reports whether x lies in the open ring arc (low, high),
// excluding both endpoints, wrapping through 0 when low > high. When
// low == high the arc is empty.
func InArcOO(x, low, high *big.Int) bool {
	switch low.Cmp(high) {
	case 0:
		return false
	case -1:
		return x.Cmp(low) > 0 && x.Cmp(high) < 0
	default:
		return x.Cmp(low) > 0 || x.Cmp(high) < 0
	}
}
