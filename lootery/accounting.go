package lootery

import (
	"math/big"

	"github.com/vocdoni/lootery-node/types"
)

// Accounting holds the three named balances that partition every prize-token
// amount the engine has ever been credited with. Invariant I1 requires the
// value ledger's balance held for this lottery to be at least the sum of
// the three.
type Accounting struct {
	Jackpot              *types.BigInt
	UnclaimedPayouts     *types.BigInt
	AccruedCommunityFees *types.BigInt
}

// newAccounting returns a zeroed Accounting.
func newAccounting() *Accounting {
	return &Accounting{
		Jackpot:              new(types.BigInt).SetInt(0),
		UnclaimedPayouts:     new(types.BigInt).SetInt(0),
		AccruedCommunityFees: new(types.BigInt).SetInt(0),
	}
}

// splitPurchase divides total between the community fee share (feeBps out
// of 10000, truncating) and the remainder, which goes to the jackpot.
func splitPurchase(total *types.BigInt, feeBps uint32) (fee, jackpotShare *types.BigInt) {
	f := new(types.BigInt).SetUint64(uint64(feeBps))
	fee = new(types.BigInt).Mul(total, f)
	fee.MathBigInt().Div(fee.MathBigInt(), big.NewInt(10000))
	jackpotShare = new(types.BigInt).Sub(total, fee)
	return fee, jackpotShare
}

// rollover applies the finalisation routine (spec §4.8) to the accounting
// scalars given the previous jackpot/unclaimedPayouts and whether the
// closing round had at least one winner.
func rollover(a *Accounting, hadWinner bool) {
	if !hadWinner {
		combined := new(types.BigInt).Add(a.UnclaimedPayouts, a.Jackpot)
		a.Jackpot = combined
		a.UnclaimedPayouts = new(types.BigInt).SetInt(0)
		return
	}
	a.UnclaimedPayouts = a.Jackpot
	a.Jackpot = new(types.BigInt).SetInt(0)
}
