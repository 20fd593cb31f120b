// Package pickset implements the canonical identifier for an ordered set of
// lottery ball picks: an N-tuple of distinct ball values in [1, M] collapses
// to a single big-integer bitset, making winner lookups an O(1) map access.
package pickset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/lootery-node/types"
)

// Sentinel errors Validate wraps its diagnostic message around, so callers
// can classify a validation failure with errors.Is without re-deriving it
// from the picks themselves.
var (
	ErrWrongCount   = errors.New("wrong number of picks")
	ErrOutOfRange   = errors.New("pick outside the ball domain")
	ErrNotAscending = errors.New("picks are not strictly ascending")
)

// MaxBallValue is the upper bound of the ball domain; bit positions 1..255
// fit in a 256-bit identifier.
const MaxBallValue = 255

// Encode converts a strictly ascending, distinct, in-range pick slice into
// its canonical identifier: the bitwise OR of (1 << ball) for every ball.
// picks must already be validated by the caller (see Validate).
func Encode(picks []uint8) *types.BigInt {
	id := new(big.Int)
	bit := new(big.Int)
	for _, b := range picks {
		bit.SetUint64(0)
		bit.SetBit(bit, int(b), 1)
		id.Or(id, bit)
	}
	return (*types.BigInt)(id)
}

// Decode recovers the ascending sequence of set bit positions from an
// identifier. numPicks limits the result to the lowest numPicks set bits,
// which for a well-formed identifier are all the bits there are.
func Decode(id *types.BigInt, numPicks int) []uint8 {
	bi := id.MathBigInt()
	picks := make([]uint8, 0, numPicks)
	for bitPos := 1; bitPos <= MaxBallValue && len(picks) < numPicks; bitPos++ {
		if bi.Bit(bitPos) == 1 {
			picks = append(picks, uint8(bitPos))
		}
	}
	return picks
}

// Validate checks that picks has exactly numPicks entries, strictly
// ascending, each in [1, maxBallValue]. Strict ascendancy rules out
// duplicates, so distinctness is implied rather than checked separately.
// The returned error wraps one of ErrWrongCount, ErrOutOfRange or
// ErrNotAscending, so callers can classify the failure with errors.Is.
func Validate(picks []uint8, numPicks int, maxBallValue uint8) error {
	if len(picks) != numPicks {
		return fmt.Errorf("%w: expected %d picks, got %d", ErrWrongCount, numPicks, len(picks))
	}
	var prev uint8
	for i, b := range picks {
		if b == 0 || b > maxBallValue {
			return fmt.Errorf("%w: pick %d (value %d) outside [1, %d]", ErrOutOfRange, i, b, maxBallValue)
		}
		if i > 0 && b <= prev {
			return fmt.Errorf("%w: at index %d", ErrNotAscending, i)
		}
		prev = b
	}
	return nil
}
