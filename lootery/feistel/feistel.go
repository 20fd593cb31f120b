// Package feistel draws N distinct balls out of [1, M] from a single
// uniform random seed, using a 4-round Feistel network as a
// format-preserving permutation over [0, M). Because a Feistel network with
// enough rounds is a bijection on its domain, distinct inputs always map to
// distinct outputs: no rejection sampling is needed to get N distinct balls.
package feistel

import (
	"encoding/binary"
	"math/big"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Rounds is the number of Feistel rounds used to permute the ball domain.
const Rounds = 4

// roundFunction computes H(right || round || seed || domain) and reduces it
// modulo half, the same H used elsewhere in the system for identifier
// commitments (Keccak256, via go-ethereum/crypto).
func roundFunction(right uint64, round uint8, seed *big.Int, domain uint64, half uint64) uint64 {
	buf := make([]byte, 8+1+8)
	binary.BigEndian.PutUint64(buf[0:8], right)
	buf[8] = round
	binary.BigEndian.PutUint64(buf[9:17], domain)
	h := ethcrypto.Keccak256(buf[0:9], seed.Bytes(), buf[9:17])
	v := new(big.Int).SetBytes(h)
	if half == 0 {
		return 0
	}
	return new(big.Int).Mod(v, new(big.Int).SetUint64(half)).Uint64()
}

// halfBits returns the common bit-width of both halves of a balanced
// Feistel network wide enough to hold a domain of size n: the smallest
// value such that 2^(2*halfBits) >= n. Keeping both halves the same width
// avoids the asymmetric masking a true unbalanced Feistel network would
// otherwise need.
func halfBits(n uint64) uint {
	half := uint(0)
	for (uint64(1) << (2 * half)) < n {
		half++
	}
	if half == 0 {
		half = 1
	}
	return half
}

// shuffle computes the Feistel permutation of x over [0, domain) keyed by
// seed. x must be in [0, domain).
func shuffle(x uint64, domain uint64, seed *big.Int) uint64 {
	if domain <= 1 {
		return 0
	}
	half := halfBits(domain)
	mask := (uint64(1) << half) - 1

	// Cycle-walking: repeatedly re-run the permutation on any output that
	// lands outside [0, domain) until it falls back inside it. A balanced
	// Feistel network over a power-of-two superset domain is a bijection,
	// so this loop always terminates.
	cur := x
	for {
		l := cur >> half
		r := cur & mask
		for round := uint8(0); round < Rounds; round++ {
			f := roundFunction(r, round, seed, domain, mask+1)
			l, r = r, (l^f)&mask
		}
		out := (l << half) | r
		if out < domain {
			return out
		}
		cur = out
	}
}

// DrawBalls deterministically draws numPicks distinct balls from [1,
// maxBallValue] using seed as the source of randomness. The result is
// sorted ascending. It is deterministic in (seed, numPicks, maxBallValue):
// identical inputs always produce identical output.
func DrawBalls(seed *big.Int, numPicks int, maxBallValue uint8) []uint8 {
	domain := uint64(maxBallValue)
	balls := make([]uint8, numPicks)
	for i := 0; i < numPicks; i++ {
		balls[i] = uint8(1 + shuffle(uint64(i), domain, seed))
	}
	sort.Slice(balls, func(i, j int) bool { return balls[i] < balls[j] })
	return balls
}
