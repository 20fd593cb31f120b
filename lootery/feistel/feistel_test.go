package feistel

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestDrawBallsDeterministic(t *testing.T) {
	c := qt.New(t)
	seed := big.NewInt(6942069420)
	a := DrawBalls(seed, 5, 69)
	b := DrawBalls(seed, 5, 69)
	c.Assert(a, qt.DeepEquals, b)
}

func TestDrawBallsDistinctAndInRange(t *testing.T) {
	c := qt.New(t)
	seed := big.NewInt(123456789)
	balls := DrawBalls(seed, 7, 69)
	c.Assert(balls, qt.HasLen, 7)
	seen := map[uint8]bool{}
	for i, b := range balls {
		c.Assert(b >= 1 && b <= 69, qt.IsTrue)
		c.Assert(seen[b], qt.IsFalse)
		seen[b] = true
		if i > 0 {
			c.Assert(balls[i] > balls[i-1], qt.IsTrue)
		}
	}
}

func TestDrawBallsDifferentSeedsDiffer(t *testing.T) {
	c := qt.New(t)
	a := DrawBalls(big.NewInt(6942069420), 5, 69)
	b := DrawBalls(big.NewInt(6942069421), 5, 69)
	c.Assert(a, qt.Not(qt.DeepEquals), b)
}

func TestDrawBallsEdgeCases(t *testing.T) {
	c := qt.New(t)
	// N=1
	one := DrawBalls(big.NewInt(1), 1, 69)
	c.Assert(one, qt.HasLen, 1)

	// N=M: must succeed and draw the entire domain
	all := DrawBalls(big.NewInt(42), 69, 69)
	c.Assert(all, qt.HasLen, 69)
	for i, b := range all {
		c.Assert(b, qt.Equals, uint8(i+1))
	}

	// M at the upper bound
	up := DrawBalls(big.NewInt(7), 5, 255)
	c.Assert(up, qt.HasLen, 5)
	for _, b := range up {
		c.Assert(b >= 1 && b <= 255, qt.IsTrue)
	}
}
