package lootery

import "github.com/vocdoni/lootery-node/types"

// State is one of the two states of the round state machine.
type State uint8

const (
	// StatePurchase is the default state: tickets may be sold, a draw may
	// be requested once the game period has elapsed.
	StatePurchase State = iota
	// StateDrawPending holds while a randomness request is in flight for
	// the current round; no purchase, seed or claim is accepted, and draw
	// only re-issues the request once it has timed out.
	StateDrawPending
)

func (s State) String() string {
	if s == StateDrawPending {
		return "DrawPending"
	}
	return "Purchase"
}

// Ticket is a single minted ticket: the round it was sold in and the
// canonical identifier of the picks it holds.
type Ticket struct {
	GameID uint64
	PickID *types.BigInt
}

// Round is the per-round ledger record. WinningPickID is zero until the
// round is finalised; thereafter it never changes.
type Round struct {
	TicketsSold   uint64
	StartedAt     int64 // unix seconds
	WinningPickID *types.BigInt
}

// IsFinalized reports whether the round has been finalised with a
// well-formed winning pick identifier.
func (r *Round) IsFinalized() bool {
	return r.WinningPickID != nil && r.WinningPickID.Sign() != 0
}

// CurrentGame is the single pointer to the active round and its state.
type CurrentGame struct {
	State State
	ID    uint64
}

// RandomnessRequest is the single in-flight-request slot. A zero RequestID
// means no request is outstanding.
type RandomnessRequest struct {
	RequestID [32]byte
	IssuedAt  int64 // unix seconds
}

func (r RandomnessRequest) isZero() bool {
	return r.RequestID == [32]byte{}
}
