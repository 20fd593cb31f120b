// Package lootery implements the permissionless pick-N-of-M lottery core: a
// round state machine that coordinates ticket sales, externally-sourced
// randomness, prize computation, and claim accounting over discrete,
// time-bounded rounds. The package performs no I/O itself; it is driven
// through the Store and collaborator interfaces injected at construction.
package lootery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vocdoni/lootery-node/log"
	"github.com/vocdoni/lootery-node/lootery/feistel"
	"github.com/vocdoni/lootery-node/lootery/pickset"
	"github.com/vocdoni/lootery-node/types"
)

const (
	// RandomnessRequestTimeout is how long a randomness request may sit
	// unanswered before draw() is allowed to re-issue it.
	RandomnessRequestTimeout = time.Hour
	// RandomnessRequestDeadline is the deadline handed to the oracle when
	// requesting randomness.
	RandomnessRequestDeadline = 30 * time.Second
	// MinGamePeriod is the minimum allowed value of Config.GamePeriod.
	MinGamePeriod = 10 * time.Minute
)

// Config holds the lottery's immutable-after-init parameters and its
// external collaborator handles.
type Config struct {
	NumPicks     uint8 // N: balls drawn and balls per ticket
	MaxBallValue uint8 // M: ball domain is [1, M]

	GamePeriod time.Duration // must be >= MinGamePeriod

	TicketPrice     *types.BigInt
	CommunityFeeBps uint32 // 0-10000

	SeedJackpotDelay    time.Duration
	SeedJackpotMinValue *types.BigInt

	// CallbackGasLimit is the fixed callback gas budget quoted to the
	// oracle's GetRequestPrice and RequestRandomness calls.
	CallbackGasLimit uint64

	Oracle         RandomnessOracle
	Ledger         ValueLedger
	TicketRegistry TicketRegistry
	Native         NativeBalance

	Owner common.Address
}

// Validate checks the configuration invariants from spec §3.
func (c *Config) Validate() error {
	if c.NumPicks < 1 {
		return NewError(KindInvalidNumPicks, "numPicks must be >= 1")
	}
	if c.MaxBallValue > pickset.MaxBallValue {
		return NewError(KindInvalidNumPicks, "maxBallValue must be <= %d", pickset.MaxBallValue)
	}
	if c.NumPicks > c.MaxBallValue {
		return NewError(KindInvalidNumPicks, "numPicks must be <= maxBallValue")
	}
	if c.GamePeriod < MinGamePeriod {
		return NewError(KindInvalidGamePeriod, "gamePeriod must be >= %s", MinGamePeriod)
	}
	if c.TicketPrice == nil || c.TicketPrice.Sign() <= 0 {
		return NewError(KindInvalidTicketPrice, "ticketPrice must be positive")
	}
	if c.CommunityFeeBps > 10000 {
		return NewError(KindInvalidNumPicks, "communityFeeBps must be <= 10000")
	}
	if c.SeedJackpotDelay <= 0 {
		return NewError(KindInvalidGamePeriod, "seedJackpotDelay must be positive")
	}
	if c.SeedJackpotMinValue == nil || c.SeedJackpotMinValue.Sign() <= 0 {
		return NewError(KindInvalidTicketPrice, "seedJackpotMinValue must be positive")
	}
	return nil
}

// Engine is the round state machine and the orchestrator of every public
// operation. All state mutation happens under Engine.mu, which stands in
// for the single-threaded transactional host described in spec §5. Every
// public method validates before it writes to the Store, so a rejected
// call leaves the Store untouched; WithdrawAccruedFees zeroes the fee
// balance before its transfer runs and keeps it zeroed if that fails.
type Engine struct {
	cfg   Config
	store Store
	mu    sync.Mutex
	now   func() time.Time
}

// New creates a new Engine, validates cfg, and opens round 0 if the Store
// has no current game yet (the one-shot init operation from spec §6).
func New(cfg Config, store Store) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	e := &Engine{cfg: cfg, store: store, now: time.Now}

	if _, err := store.CurrentGame(); err != nil {
		if err := store.SetCurrentGame(CurrentGame{State: StatePurchase, ID: 0}); err != nil {
			return nil, fmt.Errorf("init current game: %w", err)
		}
		if err := store.SetRound(0, &Round{StartedAt: e.now().Unix()}); err != nil {
			return nil, fmt.Errorf("init round 0: %w", err)
		}
		if err := store.SetAccounting(newAccounting()); err != nil {
			return nil, fmt.Errorf("init accounting: %w", err)
		}
	}
	return e, nil
}

// active reports whether the lottery has not reached its apocalypse round.
func (e *Engine) active(currentGameID uint64) (bool, error) {
	apocID, err := e.store.ApocalypseGameID()
	if err != nil {
		return false, err
	}
	if apocID == 0 {
		return true, nil
	}
	return currentGameID < apocID, nil
}

// TicketInput is one (recipient, picks) pair supplied to Purchase/OwnerPick.
type TicketInput struct {
	Recipient common.Address
	Picks     []uint8
}

func (e *Engine) validatePicks(picks []uint8) *Error {
	err := pickset.Validate(picks, int(e.cfg.NumPicks), e.cfg.MaxBallValue)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, pickset.ErrWrongCount):
		return NewError(KindInvalidNumPicks, "expected %d picks, got %d", e.cfg.NumPicks, len(picks))
	case errors.Is(err, pickset.ErrOutOfRange):
		return NewError(KindInvalidBallValue, "%v", err)
	default:
		return NewError(KindUnsortedPicks, "picks must be strictly ascending")
	}
}

// Purchase sells tickets (spec §4.4). Payment is pulled via the value
// ledger, fees and jackpot share are credited, tickets are minted. The
// entire call is atomic: any validation failure leaves no trace.
func (e *Engine) Purchase(ctx context.Context, buyer common.Address, tickets []TicketInput) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.purchase(ctx, buyer, tickets, true)
}

// OwnerPick mints tickets without payment (spec §4.4, "identical except it
// skips payment and fee accounting").
func (e *Engine) OwnerPick(ctx context.Context, caller common.Address, tickets []TicketInput) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.cfg.Owner {
		return nil, NewError(KindUnauthorized, "caller is not the owner")
	}
	return e.purchase(ctx, caller, tickets, false)
}

func (e *Engine) purchase(ctx context.Context, buyer common.Address, tickets []TicketInput, paid bool) ([]uint64, error) {
	if len(tickets) == 0 {
		return nil, NewError(KindInvalidNumPicks, "no tickets supplied")
	}
	game, err := e.store.CurrentGame()
	if err != nil {
		return nil, err
	}
	if ok, err := e.active(game.ID); err != nil {
		return nil, err
	} else if !ok {
		return nil, NewError(KindGameInactive, "lottery is inactive")
	}
	if game.State != StatePurchase {
		return nil, NewError(KindUnexpectedState, "expected Purchase, got %s", game.State)
	}

	for _, t := range tickets {
		if verr := e.validatePicks(t.Picks); verr != nil {
			return nil, verr
		}
	}
	pickIDs := types.SliceOf(tickets, func(t TicketInput) *types.BigInt {
		return pickset.Encode(t.Picks)
	})

	round, err := e.store.Round(game.ID)
	if err != nil {
		return nil, err
	}
	newSold := round.TicketsSold + uint64(len(tickets))
	if newSold < round.TicketsSold {
		return nil, NewError(KindTicketsSoldOverflow, "ticketsSold would overflow")
	}

	// Every fallible collaborator call for this batch, the payment pull
	// and every mint, runs before any ticket, index or accounting record
	// is persisted. That way a mint failure partway through the batch
	// never leaves a store-visible ticket with no minted token, and never
	// leaves accounting credited for tickets that were never minted.
	var acct *Accounting
	var total *types.BigInt
	if paid {
		total = new(types.BigInt).Mul(e.cfg.TicketPrice, types.NewInt(len(tickets)))
		if err := e.cfg.Ledger.TransferFrom(ctx, buyer, total); err != nil {
			return nil, wrapError(KindInsufficientOperationalFunds, err, "pulling ticket payment failed")
		}
		a, err := e.store.Accounting()
		if err != nil {
			return nil, err
		}
		fee, jackpotShare := splitPurchase(total, e.cfg.CommunityFeeBps)
		a.AccruedCommunityFees = new(types.BigInt).Add(a.AccruedCommunityFees, fee)
		a.Jackpot = new(types.BigInt).Add(a.Jackpot, jackpotShare)
		acct = a
	}

	firstID, err := e.store.NextTicketIDs(uint64(len(tickets)))
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(tickets))
	for i := range tickets {
		ids[i] = firstID + uint64(i)
	}
	if err := e.mintTickets(ctx, tickets, ids); err != nil {
		if paid {
			if rerr := e.cfg.Ledger.Transfer(ctx, buyer, total); rerr != nil {
				log.Errorw(rerr, "failed to refund buyer after a mid-batch mint failure",
					"buyer", buyer)
			}
		}
		return nil, wrapError(KindInsufficientOperationalFunds, err, "minting ticket failed")
	}

	for i, id := range ids {
		if err := e.store.SetTicket(id, &Ticket{GameID: game.ID, PickID: pickIDs[i]}); err != nil {
			return nil, err
		}
		if err := e.store.IndexAppend(game.ID, pickIDs[i], id); err != nil {
			return nil, err
		}
	}
	if paid {
		if err := e.store.SetAccounting(acct); err != nil {
			return nil, err
		}
	}
	round.TicketsSold = newSold
	if err := e.store.SetRound(game.ID, round); err != nil {
		return nil, err
	}
	log.Infow("TicketPurchased", "gameId", game.ID, "buyer", buyer, "count", len(tickets), "firstTicketId", firstID, "paid", paid)
	return ids, nil
}

// mintTickets mints every ticket in tickets to its recipient using the
// pre-allocated ids. If a mint fails partway through, every ticket
// already minted in this call is burned back out before the error is
// returned, so a failed Purchase never leaves a minted registry token
// with no corresponding store record.
func (e *Engine) mintTickets(ctx context.Context, tickets []TicketInput, ids []uint64) error {
	minted := make([]uint64, 0, len(tickets))
	for i, t := range tickets {
		if err := e.cfg.TicketRegistry.MintTo(ctx, t.Recipient, ids[i]); err != nil {
			for _, id := range minted {
				if berr := e.cfg.TicketRegistry.Burn(ctx, id); berr != nil {
					log.Errorw(berr, "failed to burn ticket minted earlier in a failed purchase batch",
						"ticketID", id)
				}
			}
			return err
		}
		minted = append(minted, ids[i])
	}
	return nil
}

// SeedJackpot credits value directly to the jackpot, rate-limited (spec
// §4.5).
func (e *Engine) SeedJackpot(ctx context.Context, caller common.Address, value *types.BigInt) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	game, err := e.store.CurrentGame()
	if err != nil {
		return err
	}
	if ok, err := e.active(game.ID); err != nil {
		return err
	} else if !ok {
		return NewError(KindGameInactive, "lottery is inactive")
	}
	if game.State != StatePurchase {
		return NewError(KindUnexpectedState, "expected Purchase, got %s", game.State)
	}
	if value == nil || value.Cmp(e.cfg.SeedJackpotMinValue) < 0 {
		return NewError(KindInsufficientJackpotSeed, "value below seedJackpotMinValue")
	}
	lastSeededAt, err := e.store.LastSeededAt()
	if err != nil {
		return err
	}
	now := e.now().Unix()
	if now < lastSeededAt+int64(e.cfg.SeedJackpotDelay/time.Second) {
		return NewError(KindRateLimited, "seedJackpotDelay has not elapsed")
	}

	if err := e.cfg.Ledger.TransferFrom(ctx, caller, value); err != nil {
		return wrapError(KindInsufficientOperationalFunds, err, "pulling jackpot seed failed")
	}
	acct, err := e.store.Accounting()
	if err != nil {
		return err
	}
	acct.Jackpot = new(types.BigInt).Add(acct.Jackpot, value)
	if err := e.store.SetAccounting(acct); err != nil {
		return err
	}
	if err := e.store.SetLastSeededAt(now); err != nil {
		return err
	}
	log.Infow("JackpotSeeded", "gameId", game.ID, "caller", caller, "value", value.String())
	return nil
}

// Draw advances the round (spec §4.6): either it skips straight to
// finalisation when no tickets were sold, or it requests randomness from
// the oracle and transitions to DrawPending.
func (e *Engine) Draw(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	game, err := e.store.CurrentGame()
	if err != nil {
		return err
	}
	if ok, err := e.active(game.ID); err != nil {
		return err
	} else if !ok {
		return NewError(KindGameInactive, "lottery is inactive")
	}

	round, err := e.store.Round(game.ID)
	if err != nil {
		return err
	}
	now := e.now().Unix()

	if game.State == StateDrawPending {
		req, err := e.store.RandomnessRequest()
		if err != nil {
			return err
		}
		if !req.isZero() && now < req.IssuedAt+int64(RandomnessRequestTimeout/time.Second) {
			return NewError(KindRequestAlreadyInFlight, "randomness request still within timeout")
		}
		return e.requestRandomness(ctx, game.ID)
	}

	if now < round.StartedAt+int64(e.cfg.GamePeriod/time.Second) {
		return NewError(KindWaitLonger, "game period has not elapsed")
	}

	if round.TicketsSold == 0 {
		return e.finaliseNoTickets(game.ID)
	}
	return e.requestRandomness(ctx, game.ID)
}

func (e *Engine) requestRandomness(ctx context.Context, gameID uint64) error {
	price, err := e.cfg.Oracle.GetRequestPrice(ctx, e.cfg.CallbackGasLimit)
	if err != nil {
		return wrapError(KindInsufficientOperationalFunds, err, "could not fetch oracle request price")
	}
	balance, err := e.cfg.Native.NativeBalanceOf(ctx)
	if err != nil {
		return err
	}
	if balance.Cmp(price) < 0 {
		return NewError(KindInsufficientOperationalFunds, "native balance below oracle request price")
	}
	deadline := e.now().Add(RandomnessRequestDeadline).Unix()
	requestID, err := e.cfg.Oracle.RequestRandomness(ctx, deadline, e.cfg.CallbackGasLimit)
	if err != nil {
		return wrapError(KindInsufficientOperationalFunds, err, "oracle request failed")
	}
	if err := e.store.SetRandomnessRequest(RandomnessRequest{RequestID: requestID, IssuedAt: e.now().Unix()}); err != nil {
		return err
	}
	return e.store.SetCurrentGame(CurrentGame{State: StateDrawPending, ID: gameID})
}

// finaliseNoTickets implements the "no tickets sold" branch of draw()
// directly, without requesting randomness (spec §4.6).
func (e *Engine) finaliseNoTickets(gameID uint64) error {
	acct, err := e.store.Accounting()
	if err != nil {
		return err
	}
	log.Infow("DrawSkipped", "gameId", gameID)
	rollover(acct, false)
	if err := e.store.SetAccounting(acct); err != nil {
		return err
	}
	log.Infow("JackpotRollover", "gameId", gameID, "jackpot", acct.Jackpot.String(), "unclaimedPayouts", acct.UnclaimedPayouts.String())
	return e.openNextRound(gameID)
}

func (e *Engine) openNextRound(closingGameID uint64) error {
	nextID := closingGameID + 1
	if err := e.store.SetRound(nextID, &Round{StartedAt: e.now().Unix()}); err != nil {
		return err
	}
	return e.store.SetCurrentGame(CurrentGame{State: StatePurchase, ID: nextID})
}

// OnRandomness is the randomness oracle's callback (spec §4.7): it records
// the winning pick identifier and runs the finalisation routine.
func (e *Engine) OnRandomness(ctx context.Context, caller common.Address, requestID [32]byte, words []*types.BigInt) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Oracle.Address() {
		return NewError(KindCallerNotRandomiser, "caller is not the configured oracle")
	}
	game, err := e.store.CurrentGame()
	if err != nil {
		return err
	}
	if game.State != StateDrawPending {
		return NewError(KindUnexpectedState, "expected DrawPending, got %s", game.State)
	}
	req, err := e.store.RandomnessRequest()
	if err != nil {
		return err
	}
	if req.isZero() || req.RequestID != requestID {
		return NewError(KindRequestIdMismatch, "requestID does not match the in-flight request")
	}
	if len(words) == 0 {
		return NewError(KindInsufficientRandomWords, "no random words supplied")
	}

	balls := feistel.DrawBalls(words[0].MathBigInt(), int(e.cfg.NumPicks), e.cfg.MaxBallValue)
	winningPickID := pickset.Encode(balls)

	round, err := e.store.Round(game.ID)
	if err != nil {
		return err
	}
	round.WinningPickID = winningPickID
	if err := e.store.SetRound(game.ID, round); err != nil {
		return err
	}
	if err := e.store.SetRandomnessRequest(RandomnessRequest{}); err != nil {
		return err
	}
	log.Infow("GameFinalised", "gameId", game.ID, "balls", fmt.Sprint(balls), "winningPickId", winningPickID.String())

	winners, err := e.store.IndexCount(game.ID, winningPickID)
	if err != nil {
		return err
	}
	acct, err := e.store.Accounting()
	if err != nil {
		return err
	}

	// A round that is about to become the terminal (apocalypse) round has
	// no next round to roll an unclaimed jackpot into, so its pot becomes
	// claimable as an equal-share consolation even without a winner.
	apocID, err := e.store.ApocalypseGameID()
	if err != nil {
		return err
	}
	terminal := apocID != 0 && game.ID+1 == apocID
	rollover(acct, winners > 0 || terminal)
	if err := e.store.SetAccounting(acct); err != nil {
		return err
	}
	log.Infow("JackpotRollover", "gameId", game.ID, "winners", winners, "jackpot", acct.Jackpot.String(), "unclaimedPayouts", acct.UnclaimedPayouts.String())
	return e.openNextRound(game.ID)
}

// ClaimResult describes the outcome of a successful claim.
type ClaimResult struct {
	Payout      *types.BigInt
	Consolation bool
}

// divEqualShare divides total by n, truncating, as math/big division does.
func divEqualShare(total *types.BigInt, n uint64) *types.BigInt {
	q := new(big.Int).Div(total.MathBigInt(), new(big.Int).SetUint64(n))
	return new(types.BigInt).SetBigInt(q)
}

// Claim pays out a ticket (spec §4.9). The ticket is burned, and its record
// deleted, only once the payout has been transferred; a claim that fails
// before that point leaves the ticket in place.
func (e *Engine) Claim(ctx context.Context, caller common.Address, ticketID uint64) (*ClaimResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	game, err := e.store.CurrentGame()
	if err != nil {
		return nil, err
	}
	if game.State != StatePurchase {
		return nil, NewError(KindUnexpectedState, "expected Purchase, got %s", game.State)
	}
	ticket, err := e.store.Ticket(ticketID)
	if err != nil {
		return nil, NewError(KindNotFound, "ticket %d not found", ticketID)
	}
	if game.ID == 0 || ticket.GameID != game.ID-1 {
		return nil, NewError(KindClaimWindowMissed, "ticket's round is not the one that just closed")
	}
	owner, err := e.cfg.TicketRegistry.OwnerOf(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, NewError(KindUnauthorized, "caller does not own this ticket")
	}

	round, err := e.store.Round(ticket.GameID)
	if err != nil {
		return nil, err
	}
	winners, err := e.store.IndexCount(ticket.GameID, round.WinningPickID)
	if err != nil {
		return nil, err
	}

	active, err := e.active(game.ID)
	if err != nil {
		return nil, err
	}

	acct, err := e.store.Accounting()
	if err != nil {
		return nil, err
	}

	var result *ClaimResult
	decrementAccounting := false
	switch {
	case winners == 0 && !active:
		// Apocalypse consolation: every ticket of the terminal round gets
		// an equal share; unclaimedPayouts is not decremented, so rounding
		// dust is retained by the contract (documented, not a bug).
		if round.TicketsSold == 0 {
			return nil, NewError(KindNoWin, "round had no tickets")
		}
		payout := divEqualShare(acct.UnclaimedPayouts, round.TicketsSold)
		result = &ClaimResult{Payout: payout, Consolation: true}
	case ticket.PickID.Equal(round.WinningPickID) && winners > 0:
		payout := divEqualShare(acct.UnclaimedPayouts, winners)
		acct.UnclaimedPayouts = new(types.BigInt).Sub(acct.UnclaimedPayouts, payout)
		decrementAccounting = true
		result = &ClaimResult{Payout: payout, Consolation: false}
	default:
		return nil, NewError(KindNoWin, "ticket did not win")
	}

	// The payout leaves the ledger before anything about the ticket is
	// touched: if Transfer fails, the ticket is untouched and the claim
	// can simply be retried. Once Transfer has succeeded the claim is
	// committed, so a failure to burn the registry token is logged
	// rather than returned; returning it here would make the caller
	// retry a claim whose prize has already been paid out.
	if err := e.cfg.Ledger.Transfer(ctx, caller, result.Payout); err != nil {
		return nil, err
	}
	if err := e.cfg.TicketRegistry.Burn(ctx, ticketID); err != nil {
		log.Errorw(err, "failed to burn ticket registry token after its payout was transferred",
			"ticketID", ticketID)
	}
	if err := e.store.DeleteTicket(ticketID); err != nil {
		return nil, err
	}
	if decrementAccounting {
		if err := e.store.SetAccounting(acct); err != nil {
			return nil, err
		}
	}
	if result.Consolation {
		log.Infow("ConsolationClaimed", "gameId", ticket.GameID, "ticketId", ticketID, "caller", caller, "payout", result.Payout.String())
	} else {
		log.Infow("WinningsClaimed", "gameId", ticket.GameID, "ticketId", ticketID, "caller", caller, "payout", result.Payout.String())
	}
	return result, nil
}

// WithdrawAccruedFees transfers the community-fee balance out and zeroes
// it (spec §4.10).
func (e *Engine) WithdrawAccruedFees(ctx context.Context, caller, to common.Address) (*types.BigInt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.cfg.Owner {
		return nil, NewError(KindUnauthorized, "caller is not the owner")
	}
	acct, err := e.store.Accounting()
	if err != nil {
		return nil, err
	}
	amount := acct.AccruedCommunityFees
	acct.AccruedCommunityFees = new(types.BigInt).SetInt(0)
	// The balance is zeroed before the transfer runs, not after: if the
	// transfer below fails, the balance stays at zero instead of leaving
	// a non-zero AccruedCommunityFees that a retried withdrawal would pay
	// out a second time. A transfer failure here must be recovered
	// through RescueToken/RescueNative, not by retrying the withdrawal.
	if err := e.store.SetAccounting(acct); err != nil {
		return nil, err
	}
	if err := e.cfg.Ledger.Transfer(ctx, to, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// Kill declares the current round the terminal (apocalypse) round (spec
// §4.10).
func (e *Engine) Kill(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.cfg.Owner {
		return NewError(KindUnauthorized, "caller is not the owner")
	}
	game, err := e.store.CurrentGame()
	if err != nil {
		return err
	}
	if ok, err := e.active(game.ID); err != nil {
		return err
	} else if !ok {
		return NewError(KindGameInactive, "lottery is already inactive")
	}
	if game.State != StatePurchase {
		return NewError(KindUnexpectedState, "expected Purchase, got %s", game.State)
	}
	apocID, err := e.store.ApocalypseGameID()
	if err != nil {
		return err
	}
	if apocID != 0 {
		return NewError(KindUnexpectedState, "apocalypse already declared")
	}
	return e.store.SetApocalypseGameID(game.ID + 1)
}

// RescueToken transfers the non-accounted portion of the value ledger's
// balance out to `to` (spec §4.10). Only the owner may call it; the
// destination is the address the caller passes, not fixed to the owner.
func (e *Engine) RescueToken(ctx context.Context, caller, to common.Address) (*types.BigInt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.cfg.Owner {
		return nil, NewError(KindUnauthorized, "caller is not the owner")
	}
	balance, err := e.cfg.Ledger.BalanceOf(ctx)
	if err != nil {
		return nil, err
	}
	acct, err := e.store.Accounting()
	if err != nil {
		return nil, err
	}
	accounted := new(types.BigInt).Add(acct.AccruedCommunityFees, acct.UnclaimedPayouts)
	accounted = new(types.BigInt).Add(accounted, acct.Jackpot)
	rescuable := new(types.BigInt).Sub(balance, accounted)
	if rescuable.Sign() <= 0 {
		return new(types.BigInt).SetInt(0), nil
	}
	if err := e.cfg.Ledger.Transfer(ctx, to, rescuable); err != nil {
		return nil, err
	}
	return rescuable, nil
}

// RescueNative transfers the engine's entire native-coin balance to `to`:
// none of it is ever accounted for in prize-token invariants. Only the
// owner may call it; the destination is the address the caller passes,
// not fixed to the owner.
func (e *Engine) RescueNative(ctx context.Context, caller, to common.Address, transfer func(context.Context, common.Address, *types.BigInt) error) (*types.BigInt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.cfg.Owner {
		return nil, NewError(KindUnauthorized, "caller is not the owner")
	}
	balance, err := e.cfg.Native.NativeBalanceOf(ctx)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return new(types.BigInt).SetInt(0), nil
	}
	if err := transfer(ctx, to, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// CurrentGame returns the current game pointer (read-only query).
func (e *Engine) CurrentGame() (CurrentGame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.CurrentGame()
}

// Round returns the round record for gameID (read-only query).
func (e *Engine) Round(gameID uint64) (*Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Round(gameID)
}

// Ticket returns the ticket record for ticketID (read-only query).
func (e *Engine) Ticket(ticketID uint64) (*Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Ticket(ticketID)
}

// Accounting returns a snapshot of the accounting scalars (read-only
// query).
func (e *Engine) Accounting() (*Accounting, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Accounting()
}

// PendingRandomnessRequest returns the in-flight randomness request slot
// (read-only query). A zero RequestID means no request is in flight.
func (e *Engine) PendingRandomnessRequest() (RandomnessRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.RandomnessRequest()
}
