package lootery

import "github.com/vocdoni/lootery-node/types"

// Store is the persistence seam the engine reads and writes through. The
// engine holds its own mutex and calls Store only after an operation has
// fully validated, so Store implementations do not need their own
// transactions to preserve the "run to completion or do nothing visible"
// guarantee described in spec §5; the storage package's KV-backed
// implementation still persists each mutation durably.
type Store interface {
	CurrentGame() (CurrentGame, error)
	SetCurrentGame(CurrentGame) error

	Round(gameID uint64) (*Round, error)
	SetRound(gameID uint64, r *Round) error

	Ticket(ticketID uint64) (*Ticket, error)
	SetTicket(ticketID uint64, t *Ticket) error
	DeleteTicket(ticketID uint64) error

	// NextTicketIDs allocates n consecutive, previously-unused ticket ids
	// and returns the first one.
	NextTicketIDs(n uint64) (uint64, error)

	// IndexAppend records ticketID as holding pickID in round gameID.
	IndexAppend(gameID uint64, pickID *types.BigInt, ticketID uint64) error
	// IndexCount returns the number of tickets recorded against
	// (gameID, pickID).
	IndexCount(gameID uint64, pickID *types.BigInt) (uint64, error)

	Accounting() (*Accounting, error)
	SetAccounting(*Accounting) error

	RandomnessRequest() (RandomnessRequest, error)
	SetRandomnessRequest(RandomnessRequest) error

	ApocalypseGameID() (uint64, error)
	SetApocalypseGameID(uint64) error

	LastSeededAt() (int64, error)
	SetLastSeededAt(int64) error
}
