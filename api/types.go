package api

import (
	"github.com/vocdoni/lootery-node/types"
)

// GameResponse describes a round: its state (only meaningful for the
// current game), when it started, how many tickets it sold, and its
// winning pick once known.
type GameResponse struct {
	ID            uint64   `json:"id"`
	State         string   `json:"state,omitempty"`
	StartedAt     int64    `json:"startedAt"`
	TicketsSold   uint64   `json:"ticketsSold"`
	WinningPicks  []uint8  `json:"winningPicks,omitempty"`
}

// TicketResponse describes a single ticket.
type TicketResponse struct {
	ID     uint64  `json:"id"`
	GameID uint64  `json:"gameId"`
	Picks  []uint8 `json:"picks"`
}

// AccountingResponse is a snapshot of the three accounting scalars.
type AccountingResponse struct {
	Jackpot              *types.BigInt `json:"jackpot"`
	UnclaimedPayouts     *types.BigInt `json:"unclaimedPayouts"`
	AccruedCommunityFees *types.BigInt `json:"accruedCommunityFees"`
}

// TicketInputRequest is one (recipient, picks) pair in a purchase/owner-pick
// request body.
type TicketInputRequest struct {
	Recipient string  `json:"recipient"`
	Picks     []uint8 `json:"picks"`
}

// PurchaseRequest is the body of POST /tickets/purchase and
// POST /tickets/owner-pick. Caller is the address the engine checks
// payment/authorisation against; it must match the signature below.
type PurchaseRequest struct {
	Caller    string                `json:"caller"`
	Tickets   []TicketInputRequest  `json:"tickets"`
	Signature types.HexBytes        `json:"signature"`
}

// PurchaseResponse returns the ids minted by a purchase or owner-pick call.
type PurchaseResponse struct {
	TicketIDs []uint64 `json:"ticketIds"`
}

// SeedJackpotRequest is the body of POST /jackpot/seed.
type SeedJackpotRequest struct {
	Caller    string         `json:"caller"`
	Value     *types.BigInt  `json:"value"`
	Signature types.HexBytes `json:"signature"`
}

// RandomnessCallbackRequest is the body of the oracle's POST
// /draw/randomness callback.
type RandomnessCallbackRequest struct {
	Caller    string          `json:"caller"`
	RequestID types.HexBytes  `json:"requestId"`
	Words     []*types.BigInt `json:"words"`
	Signature types.HexBytes  `json:"signature"`
}

// ClaimRequest is the body of POST /tickets/{ticketId}/claim.
type ClaimRequest struct {
	Caller    string         `json:"caller"`
	Signature types.HexBytes `json:"signature"`
}

// ClaimResponse reports the payout of a successful claim.
type ClaimResponse struct {
	Payout      *types.BigInt `json:"payout"`
	Consolation bool          `json:"consolation"`
}

// AdminRequest is the body shared by every admin-only POST endpoint that
// just needs a caller signature and, where relevant, a destination
// address.
type AdminRequest struct {
	Caller    string         `json:"caller"`
	To        string         `json:"to,omitempty"`
	Signature types.HexBytes `json:"signature"`
}

// AmountResponse reports a single transferred amount, used by the
// withdraw-fees and rescue endpoints.
type AmountResponse struct {
	Amount *types.BigInt `json:"amount"`
}
