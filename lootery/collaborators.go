package lootery

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vocdoni/lootery-node/types"
)

// TicketRegistry is the external ticket-NFT surface: ownership tracking and
// burn-on-claim. The engine only ever mints (purchase, ownerPick) and burns
// (claim); it never transfers or queries metadata.
type TicketRegistry interface {
	MintTo(ctx context.Context, recipient common.Address, ticketID uint64) error
	Burn(ctx context.Context, ticketID uint64) error
	OwnerOf(ctx context.Context, ticketID uint64) (common.Address, error)
}

// ValueLedger is the external prize-token custody surface. Transfer*
// mutates custody; BalanceOf is read-only.
type ValueLedger interface {
	// TransferFrom pulls amount from from's approved allowance into the
	// engine's custody.
	TransferFrom(ctx context.Context, from common.Address, amount *types.BigInt) error
	// Transfer pushes amount out of the engine's custody to to.
	Transfer(ctx context.Context, to common.Address, amount *types.BigInt) error
	// BalanceOf returns the balance the engine holds.
	BalanceOf(ctx context.Context) (*types.BigInt, error)
}

// RandomnessOracle is the external randomness beacon. RequestRandomness is
// payable in the chain's native coin; the oracle later invokes the engine's
// OnRandomness callback out-of-band.
type RandomnessOracle interface {
	GetRequestPrice(ctx context.Context, callbackGas uint64) (*types.BigInt, error)
	RequestRandomness(ctx context.Context, deadline int64, callbackGas uint64) ([32]byte, error)
	Address() common.Address
}

// NativeBalance reports the engine's native-coin balance, used to fund
// randomness requests. It is a narrow slice of ValueLedger-like behaviour
// kept separate because native coin is never part of the prize-token
// accounting invariants.
type NativeBalance interface {
	NativeBalanceOf(ctx context.Context) (*types.BigInt, error)
}
