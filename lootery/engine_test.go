package lootery

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/lootery-node/lootery/feistel"
	"github.com/vocdoni/lootery-node/types"
)

// memStore is a minimal in-memory Store used only to exercise Engine; the
// real KV-backed implementation lives in the storage package.
type memStore struct {
	hasGame bool
	game    CurrentGame

	rounds map[uint64]*Round
	index  map[string][]uint64

	tickets      map[uint64]*Ticket
	nextTicketID uint64

	acct *Accounting

	req RandomnessRequest

	apocalypseGameID uint64
	lastSeededAt     int64
}

func newMemStore() *memStore {
	return &memStore{
		rounds:       map[uint64]*Round{},
		index:        map[string][]uint64{},
		tickets:      map[uint64]*Ticket{},
		nextTicketID: 1,
	}
}

func (s *memStore) CurrentGame() (CurrentGame, error) {
	if !s.hasGame {
		return CurrentGame{}, fmt.Errorf("no current game")
	}
	return s.game, nil
}

func (s *memStore) SetCurrentGame(g CurrentGame) error {
	s.hasGame = true
	s.game = g
	return nil
}

func (s *memStore) Round(gameID uint64) (*Round, error) {
	r, ok := s.rounds[gameID]
	if !ok {
		return nil, fmt.Errorf("round %d not found", gameID)
	}
	return r, nil
}

func (s *memStore) SetRound(gameID uint64, r *Round) error {
	s.rounds[gameID] = r
	return nil
}

func (s *memStore) Ticket(ticketID uint64) (*Ticket, error) {
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("ticket %d not found", ticketID)
	}
	return t, nil
}

func (s *memStore) SetTicket(ticketID uint64, t *Ticket) error {
	s.tickets[ticketID] = t
	return nil
}

func (s *memStore) DeleteTicket(ticketID uint64) error {
	delete(s.tickets, ticketID)
	return nil
}

func (s *memStore) NextTicketIDs(n uint64) (uint64, error) {
	first := s.nextTicketID
	s.nextTicketID += n
	return first, nil
}

func indexKey(gameID uint64, pickID *types.BigInt) string {
	if pickID == nil {
		return fmt.Sprintf("%d:nil", gameID)
	}
	return fmt.Sprintf("%d:%s", gameID, pickID.String())
}

func (s *memStore) IndexAppend(gameID uint64, pickID *types.BigInt, ticketID uint64) error {
	key := indexKey(gameID, pickID)
	s.index[key] = append(s.index[key], ticketID)
	return nil
}

func (s *memStore) IndexCount(gameID uint64, pickID *types.BigInt) (uint64, error) {
	return uint64(len(s.index[indexKey(gameID, pickID)])), nil
}

func (s *memStore) Accounting() (*Accounting, error) {
	if s.acct == nil {
		return nil, fmt.Errorf("accounting not initialised")
	}
	cp := *s.acct
	return &cp, nil
}

func (s *memStore) SetAccounting(a *Accounting) error {
	cp := *a
	s.acct = &cp
	return nil
}

func (s *memStore) RandomnessRequest() (RandomnessRequest, error) { return s.req, nil }

func (s *memStore) SetRandomnessRequest(r RandomnessRequest) error {
	s.req = r
	return nil
}

func (s *memStore) ApocalypseGameID() (uint64, error) { return s.apocalypseGameID, nil }

func (s *memStore) SetApocalypseGameID(id uint64) error {
	s.apocalypseGameID = id
	return nil
}

func (s *memStore) LastSeededAt() (int64, error) { return s.lastSeededAt, nil }

func (s *memStore) SetLastSeededAt(t int64) error {
	s.lastSeededAt = t
	return nil
}

// fakeLedger is a trivial custody-tracking ValueLedger double.
type fakeLedger struct {
	custody *types.BigInt
}

func newFakeLedger() *fakeLedger { return &fakeLedger{custody: types.NewInt(0)} }

func (l *fakeLedger) TransferFrom(ctx context.Context, from common.Address, amount *types.BigInt) error {
	l.custody = new(types.BigInt).Add(l.custody, amount)
	return nil
}

func (l *fakeLedger) Transfer(ctx context.Context, to common.Address, amount *types.BigInt) error {
	l.custody = new(types.BigInt).Sub(l.custody, amount)
	return nil
}

func (l *fakeLedger) BalanceOf(ctx context.Context) (*types.BigInt, error) { return l.custody, nil }

// fakeRegistry is a trivial ownership-tracking TicketRegistry double.
type fakeRegistry struct {
	owners map[uint64]common.Address
}

func newFakeRegistry() *fakeRegistry { return &fakeRegistry{owners: map[uint64]common.Address{}} }

func (r *fakeRegistry) MintTo(ctx context.Context, recipient common.Address, ticketID uint64) error {
	r.owners[ticketID] = recipient
	return nil
}

func (r *fakeRegistry) Burn(ctx context.Context, ticketID uint64) error {
	delete(r.owners, ticketID)
	return nil
}

func (r *fakeRegistry) OwnerOf(ctx context.Context, ticketID uint64) (common.Address, error) {
	owner, ok := r.owners[ticketID]
	if !ok {
		return common.Address{}, fmt.Errorf("ticket %d has no owner", ticketID)
	}
	return owner, nil
}

// fakeOracle is a scripted RandomnessOracle double: tests drive its
// callback manually via Engine.OnRandomness.
type fakeOracle struct {
	addr      common.Address
	price     *types.BigInt
	requests  int
	nextReqID [32]byte
}

func (o *fakeOracle) GetRequestPrice(ctx context.Context, callbackGas uint64) (*types.BigInt, error) {
	return o.price, nil
}

func (o *fakeOracle) RequestRandomness(ctx context.Context, deadline int64, callbackGas uint64) ([32]byte, error) {
	o.requests++
	id := o.nextReqID
	id[0]++ // vary each issuance so re-issue scenarios are distinguishable
	o.nextReqID = id
	return id, nil
}

func (o *fakeOracle) Address() common.Address { return o.addr }

type fakeNative struct {
	balance *types.BigInt
}

func (n *fakeNative) NativeBalanceOf(ctx context.Context) (*types.BigInt, error) {
	return n.balance, nil
}

// failingLedger wraps fakeLedger, failing the Nth Transfer or TransferFrom
// call, to exercise how the engine handles a collaborator that fails
// partway through an operation.
type failingLedger struct {
	*fakeLedger
	failTransferAfter     int // fail the call of this ordinal (1-indexed); 0 = never fail
	failTransferFromAfter int
	transferCalls         int
	transferFromCalls     int
}

func newFailingLedger() *failingLedger { return &failingLedger{fakeLedger: newFakeLedger()} }

func (l *failingLedger) Transfer(ctx context.Context, to common.Address, amount *types.BigInt) error {
	l.transferCalls++
	if l.failTransferAfter != 0 && l.transferCalls >= l.failTransferAfter {
		return fmt.Errorf("simulated transfer failure")
	}
	return l.fakeLedger.Transfer(ctx, to, amount)
}

func (l *failingLedger) TransferFrom(ctx context.Context, from common.Address, amount *types.BigInt) error {
	l.transferFromCalls++
	if l.failTransferFromAfter != 0 && l.transferFromCalls >= l.failTransferFromAfter {
		return fmt.Errorf("simulated transferFrom failure")
	}
	return l.fakeLedger.TransferFrom(ctx, from, amount)
}

// failingRegistry wraps fakeRegistry, failing the Nth MintTo call, to
// exercise mid-batch Purchase failures.
type failingRegistry struct {
	*fakeRegistry
	failMintAfter int // fail the call of this ordinal (1-indexed); 0 = never fail
	mintCalls     int
	burnCalls     int
}

func newFailingRegistry() *failingRegistry { return &failingRegistry{fakeRegistry: newFakeRegistry()} }

func (r *failingRegistry) MintTo(ctx context.Context, recipient common.Address, ticketID uint64) error {
	r.mintCalls++
	if r.failMintAfter != 0 && r.mintCalls >= r.failMintAfter {
		return fmt.Errorf("simulated mint failure")
	}
	return r.fakeRegistry.MintTo(ctx, recipient, ticketID)
}

func (r *failingRegistry) Burn(ctx context.Context, ticketID uint64) error {
	r.burnCalls++
	return r.fakeRegistry.Burn(ctx, ticketID)
}

// newAtomicityHarness builds an Engine around caller-supplied collaborator
// doubles, so tests can swap in ones that fail partway through an
// operation. The returned clock pointer lets a test advance time the way
// testHarness.advance does.
func newAtomicityHarness(t *testing.T, ledger ValueLedger, registry TicketRegistry) (e *Engine, store *memStore, owner, oracleAddr common.Address, clock *time.Time) {
	store = newMemStore()
	owner = common.HexToAddress("0x4444444444444444444444444444444444444444")
	oracleAddr = common.HexToAddress("0x5555555555555555555555555555555555555555")
	now := time.Unix(1_700_000_000, 0)
	cfg := Config{
		NumPicks:            5,
		MaxBallValue:        69,
		GamePeriod:          time.Hour,
		TicketPrice:         types.NewInt(10),
		CommunityFeeBps:     5000,
		SeedJackpotDelay:    time.Hour,
		SeedJackpotMinValue: types.NewInt(1),
		CallbackGasLimit:    500_000,
		Oracle:              &fakeOracle{addr: oracleAddr, price: types.NewInt(1)},
		Ledger:              ledger,
		TicketRegistry:      registry,
		Native:              &fakeNative{balance: types.NewInt(1_000_000)},
		Owner:               owner,
	}
	qt.Assert(t, cfg.Validate(), qt.IsNil)
	qt.Assert(t, store.SetCurrentGame(CurrentGame{State: StatePurchase, ID: 0}), qt.IsNil)
	qt.Assert(t, store.SetRound(0, &Round{StartedAt: now.Unix()}), qt.IsNil)
	qt.Assert(t, store.SetAccounting(newAccounting()), qt.IsNil)
	e = &Engine{cfg: cfg, store: store, now: func() time.Time { return now }}
	return e, store, owner, oracleAddr, &now
}

type testHarness struct {
	engine   *Engine
	store    *memStore
	ledger   *fakeLedger
	registry *fakeRegistry
	oracle   *fakeOracle
	native   *fakeNative
	owner    common.Address
	clock    time.Time
}

func newHarness(t *testing.T, cfgMut func(*Config)) *testHarness {
	store := newMemStore()
	ledger := newFakeLedger()
	registry := newFakeRegistry()
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	oracle := &fakeOracle{addr: common.HexToAddress("0x2222222222222222222222222222222222222222"), price: types.NewInt(1)}
	native := &fakeNative{balance: types.NewInt(1_000_000)}

	cfg := Config{
		NumPicks:            5,
		MaxBallValue:        69,
		GamePeriod:          time.Hour,
		TicketPrice:         types.NewInt(10), // 0.10 in cents
		CommunityFeeBps:     5000,
		SeedJackpotDelay:    time.Hour,
		SeedJackpotMinValue: types.NewInt(1),
		CallbackGasLimit:    500_000,
		Oracle:              oracle,
		Ledger:              ledger,
		TicketRegistry:      registry,
		Native:              native,
		Owner:               owner,
	}
	if cfgMut != nil {
		cfgMut(&cfg)
	}
	qt.Assert(t, cfg.Validate(), qt.IsNil)

	h := &testHarness{store: store, ledger: ledger, registry: registry, oracle: oracle, native: native, owner: owner, clock: time.Unix(1_700_000_000, 0)}

	// Initialise round 0 directly against the controlled clock; New()'s
	// own init path is exercised separately by TestNewOpensRoundZero.
	qt.Assert(t, store.SetCurrentGame(CurrentGame{State: StatePurchase, ID: 0}), qt.IsNil)
	qt.Assert(t, store.SetRound(0, &Round{StartedAt: h.clock.Unix()}), qt.IsNil)
	qt.Assert(t, store.SetAccounting(newAccounting()), qt.IsNil)

	e := &Engine{cfg: cfg, store: store, now: func() time.Time { return h.clock }}
	h.engine = e
	return h
}

func (h *testHarness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func buyer(n byte) common.Address {
	var addr common.Address
	addr[19] = n
	return addr
}

func TestNewOpensRoundZero(t *testing.T) {
	c := qt.New(t)
	store := newMemStore()
	owner := common.HexToAddress("0x3333333333333333333333333333333333333333")
	cfg := Config{
		NumPicks:            5,
		MaxBallValue:        69,
		GamePeriod:          time.Hour,
		TicketPrice:         types.NewInt(10),
		CommunityFeeBps:     5000,
		SeedJackpotDelay:    time.Hour,
		SeedJackpotMinValue: types.NewInt(1),
		CallbackGasLimit:    500_000,
		Oracle:              &fakeOracle{price: types.NewInt(1)},
		Ledger:              newFakeLedger(),
		TicketRegistry:      newFakeRegistry(),
		Native:              &fakeNative{balance: types.NewInt(1)},
		Owner:               owner,
	}

	e, err := New(cfg, store)
	c.Assert(err, qt.IsNil)

	game, err := e.CurrentGame()
	c.Assert(err, qt.IsNil)
	c.Assert(game, qt.Equals, CurrentGame{State: StatePurchase, ID: 0})

	round, err := e.Round(0)
	c.Assert(err, qt.IsNil)
	c.Assert(round.TicketsSold, qt.Equals, uint64(0))

	acct, err := e.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acct.Jackpot.Sign(), qt.Equals, 0)
}

func TestConfigValidation(t *testing.T) {
	c := qt.New(t)
	base := Config{
		NumPicks:            5,
		MaxBallValue:        69,
		GamePeriod:          time.Hour,
		TicketPrice:         types.NewInt(10),
		CommunityFeeBps:     5000,
		SeedJackpotDelay:    time.Hour,
		SeedJackpotMinValue: types.NewInt(1),
	}
	c.Assert(base.Validate(), qt.IsNil)

	withZeroPicks := base
	withZeroPicks.NumPicks = 0
	c.Assert(withZeroPicks.Validate().(*Error).Kind, qt.Equals, KindInvalidNumPicks)

	withShortPeriod := base
	withShortPeriod.GamePeriod = time.Minute
	c.Assert(withShortPeriod.Validate().(*Error).Kind, qt.Equals, KindInvalidGamePeriod)

	withBadPrice := base
	withBadPrice.TicketPrice = types.NewInt(0)
	c.Assert(withBadPrice.Validate().(*Error).Kind, qt.Equals, KindInvalidTicketPrice)
}

func TestHappyWin(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()

	c.Assert(h.engine.SeedJackpot(ctx, buyer(1), types.NewInt(1000)), qt.IsNil)

	seed := big.NewInt(6942069420)
	winningBalls := feistel.DrawBalls(seed, 5, 69)

	buyerAddr := buyer(2)
	ids, err := h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: winningBalls}})
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 1)

	h.advance(time.Hour)
	c.Assert(h.engine.Draw(ctx), qt.IsNil)

	game, err := h.engine.CurrentGame()
	c.Assert(err, qt.IsNil)
	c.Assert(game.State, qt.Equals, StateDrawPending)

	word := new(types.BigInt).SetBigInt(seed)
	req, err := h.store.RandomnessRequest()
	c.Assert(err, qt.IsNil)
	c.Assert(h.engine.OnRandomness(ctx, h.oracle.addr, req.RequestID, []*types.BigInt{word}), qt.IsNil)

	acct, err := h.engine.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acct.UnclaimedPayouts.String(), qt.Equals, "1005")
	c.Assert(acct.Jackpot.String(), qt.Equals, "0")

	result, err := h.engine.Claim(ctx, buyerAddr, ids[0])
	c.Assert(err, qt.IsNil)
	c.Assert(result.Payout.String(), qt.Equals, "1005")
	c.Assert(result.Consolation, qt.IsFalse)

	acct, err = h.engine.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acct.UnclaimedPayouts.String(), qt.Equals, "0")
	c.Assert(acct.AccruedCommunityFees.String(), qt.Equals, "5")
}

func TestNoWinnerRollover(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()

	c.Assert(h.engine.SeedJackpot(ctx, buyer(1), types.NewInt(1000)), qt.IsNil)

	seed := big.NewInt(6942069421)
	winningBalls := feistel.DrawBalls(seed, 5, 69)
	losingPicks := []uint8{1, 2, 3, 4, 5}
	c.Assert(pickEqual(losingPicks, winningBalls), qt.IsFalse)

	buyerAddr := buyer(3)
	_, err := h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: losingPicks}})
	c.Assert(err, qt.IsNil)

	h.advance(time.Hour)
	c.Assert(h.engine.Draw(ctx), qt.IsNil)
	req, _ := h.store.RandomnessRequest()
	word := new(types.BigInt).SetBigInt(seed)
	c.Assert(h.engine.OnRandomness(ctx, h.oracle.addr, req.RequestID, []*types.BigInt{word}), qt.IsNil)

	acct, err := h.engine.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acct.Jackpot.String(), qt.Equals, "1005")
	c.Assert(acct.UnclaimedPayouts.String(), qt.Equals, "0")

	game, err := h.engine.CurrentGame()
	c.Assert(err, qt.IsNil)
	c.Assert(game.ID, qt.Equals, uint64(1))
	c.Assert(game.State, qt.Equals, StatePurchase)
}

func pickEqual(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEqualShareApocalypse(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()

	// Two empty rounds skip without requesting randomness.
	for i := 0; i < 2; i++ {
		h.advance(time.Hour)
		c.Assert(h.engine.Draw(ctx), qt.IsNil)
	}
	c.Assert(h.oracle.requests, qt.Equals, 0)

	game, err := h.engine.CurrentGame()
	c.Assert(err, qt.IsNil)
	c.Assert(game.ID, qt.Equals, uint64(2))

	c.Assert(h.engine.Kill(h.owner), qt.IsNil)

	seed := big.NewInt(987654321)
	winningBalls := feistel.DrawBalls(seed, 5, 69)
	losingPicks := []uint8{1, 2, 3, 4, 5}
	c.Assert(pickEqual(losingPicks, winningBalls), qt.IsFalse)

	buyers := make([]common.Address, 4)
	ticketIDs := make([]uint64, 4)
	for i := range buyers {
		buyers[i] = buyer(byte(10 + i))
		ids, err := h.engine.Purchase(ctx, buyers[i], []TicketInput{{Recipient: buyers[i], Picks: losingPicks}})
		c.Assert(err, qt.IsNil)
		ticketIDs[i] = ids[0]
	}

	h.advance(time.Hour)
	c.Assert(h.engine.Draw(ctx), qt.IsNil)
	req, _ := h.store.RandomnessRequest()
	word := new(types.BigInt).SetBigInt(seed)
	c.Assert(h.engine.OnRandomness(ctx, h.oracle.addr, req.RequestID, []*types.BigInt{word}), qt.IsNil)

	acct, err := h.engine.Accounting()
	c.Assert(err, qt.IsNil)
	expectedShare := new(big.Int).Div(acct.UnclaimedPayouts.MathBigInt(), big.NewInt(4))

	for i, id := range ticketIDs {
		result, err := h.engine.Claim(ctx, buyers[i], id)
		c.Assert(err, qt.IsNil)
		c.Assert(result.Consolation, qt.IsTrue)
		c.Assert(result.Payout.MathBigInt().Cmp(expectedShare), qt.Equals, 0)
	}

	c.Assert(h.engine.Draw(ctx).(*Error).Kind, qt.Equals, KindGameInactive)
	_, perr := h.engine.Purchase(ctx, buyers[0], []TicketInput{{Recipient: buyers[0], Picks: losingPicks}})
	c.Assert(perr.(*Error).Kind, qt.Equals, KindGameInactive)
	c.Assert(h.engine.Kill(h.owner).(*Error).Kind, qt.Equals, KindGameInactive)
}

func TestRateLimitedSeeding(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.SeedJackpotDelay = time.Hour
		cfg.SeedJackpotMinValue = types.NewInt(10)
	})
	ctx := context.Background()

	c.Assert(h.engine.SeedJackpot(ctx, buyer(1), types.NewInt(100)), qt.IsNil)
	err := h.engine.SeedJackpot(ctx, buyer(1), types.NewInt(100))
	c.Assert(err.(*Error).Kind, qt.Equals, KindRateLimited)

	h.advance(time.Hour)
	c.Assert(h.engine.SeedJackpot(ctx, buyer(1), types.NewInt(100)), qt.IsNil)

	h.advance(time.Hour)
	err = h.engine.SeedJackpot(ctx, buyer(1), types.NewInt(9))
	c.Assert(err.(*Error).Kind, qt.Equals, KindInsufficientJackpotSeed)
}

func TestEmptyRoundSkip(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()

	c.Assert(h.engine.SeedJackpot(ctx, buyer(1), types.NewInt(1000)), qt.IsNil)

	h.advance(time.Hour)
	c.Assert(h.engine.Draw(ctx), qt.IsNil)
	c.Assert(h.oracle.requests, qt.Equals, 0)

	acct, err := h.engine.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acct.Jackpot.String(), qt.Equals, "1000")
	c.Assert(acct.UnclaimedPayouts.String(), qt.Equals, "0")

	game, err := h.engine.CurrentGame()
	c.Assert(err, qt.IsNil)
	c.Assert(game.ID, qt.Equals, uint64(1))
	c.Assert(game.State, qt.Equals, StatePurchase)
}

func TestBatchMintingDistinctRecipients(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()

	tickets := make([]TicketInput, 10)
	recipients := make([]common.Address, 10)
	for i := range tickets {
		recipients[i] = buyer(byte(20 + i))
		tickets[i] = TicketInput{Recipient: recipients[i], Picks: []uint8{1, 2, 3, uint8(4 + i), uint8(50 + i)}}
	}

	ids, err := h.engine.Purchase(ctx, buyer(99), tickets)
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 10)
	for i := 1; i < len(ids); i++ {
		c.Assert(ids[i], qt.Equals, ids[i-1]+1)
	}
	for i, id := range ids {
		owner, err := h.registry.OwnerOf(ctx, id)
		c.Assert(err, qt.IsNil)
		c.Assert(owner, qt.Equals, recipients[i])
	}
}

func TestDrawReissueAfterTimeout(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()

	buyerAddr := buyer(5)
	_, err := h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: []uint8{1, 2, 3, 4, 5}}})
	c.Assert(err, qt.IsNil)

	h.advance(time.Hour)
	c.Assert(h.engine.Draw(ctx), qt.IsNil)
	c.Assert(h.oracle.requests, qt.Equals, 1)

	err = h.engine.Draw(ctx)
	c.Assert(err.(*Error).Kind, qt.Equals, KindRequestAlreadyInFlight)

	h.advance(RandomnessRequestTimeout + time.Second)
	c.Assert(h.engine.Draw(ctx), qt.IsNil)
	c.Assert(h.oracle.requests, qt.Equals, 2)
}

func TestPurchaseValidation(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()
	buyerAddr := buyer(6)

	_, err := h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: []uint8{1, 2, 3, 4}}})
	c.Assert(err.(*Error).Kind, qt.Equals, KindInvalidNumPicks)

	_, err = h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: []uint8{0, 2, 3, 4, 5}}})
	c.Assert(err.(*Error).Kind, qt.Equals, KindInvalidBallValue)

	_, err = h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: []uint8{5, 4, 3, 2, 1}}})
	c.Assert(err.(*Error).Kind, qt.Equals, KindUnsortedPicks)
}

// TestPurchaseTicketsSoldOverflow drives a round's TicketsSold right up to
// the uint64 ceiling and checks that a batch which would wrap past it is
// rejected instead of silently wrapping the counter back to a small number.
func TestPurchaseTicketsSoldOverflow(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()
	buyerAddr := buyer(9)

	round, err := h.store.Round(0)
	c.Assert(err, qt.IsNil)
	round.TicketsSold = math.MaxUint64
	c.Assert(h.store.SetRound(0, round), qt.IsNil)

	_, err = h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: []uint8{1, 2, 3, 4, 5}}})
	c.Assert(err.(*Error).Kind, qt.Equals, KindTicketsSoldOverflow)

	round, err = h.store.Round(0)
	c.Assert(err, qt.IsNil)
	c.Assert(round.TicketsSold, qt.Equals, uint64(math.MaxUint64))
}

func TestOwnerPickRequiresOwner(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()
	notOwner := buyer(7)

	_, err := h.engine.OwnerPick(ctx, notOwner, []TicketInput{{Recipient: notOwner, Picks: []uint8{1, 2, 3, 4, 5}}})
	c.Assert(err.(*Error).Kind, qt.Equals, KindUnauthorized)

	ids, err := h.engine.OwnerPick(ctx, h.owner, []TicketInput{{Recipient: notOwner, Picks: []uint8{1, 2, 3, 4, 5}}})
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 1)
	c.Assert(h.ledger.custody.String(), qt.Equals, "0")
}

func TestClaimWindowMissed(t *testing.T) {
	c := qt.New(t)
	h := newHarness(t, nil)
	ctx := context.Background()
	buyerAddr := buyer(8)

	ids, err := h.engine.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: []uint8{1, 2, 3, 4, 5}}})
	c.Assert(err, qt.IsNil)

	_, err = h.engine.Claim(ctx, buyerAddr, ids[0])
	c.Assert(err.(*Error).Kind, qt.Equals, KindClaimWindowMissed)
}

// TestPurchaseAtomicOnMintFailure exercises a mint failure partway through
// a multi-ticket Purchase: nothing about the batch should survive, not
// even the tickets whose mint succeeded before the failing one.
func TestPurchaseAtomicOnMintFailure(t *testing.T) {
	c := qt.New(t)
	ledger := newFailingLedger()
	registry := newFailingRegistry()
	registry.failMintAfter = 2 // the second ticket's mint fails
	e, store, _, _, _ := newAtomicityHarness(t, ledger, registry)
	ctx := context.Background()
	buyerAddr := buyer(40)

	tickets := []TicketInput{
		{Recipient: buyerAddr, Picks: []uint8{1, 2, 3, 4, 5}},
		{Recipient: buyerAddr, Picks: []uint8{6, 7, 8, 9, 10}},
	}
	_, err := e.Purchase(ctx, buyerAddr, tickets)
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(err.(*Error).Kind, qt.Equals, KindInsufficientOperationalFunds)

	// The first ticket's mint succeeded before the second one failed, but
	// it was burned back out, so no owner and no store record survive.
	c.Assert(registry.owners, qt.HasLen, 0)
	c.Assert(store.tickets, qt.HasLen, 0)
	// The payment pulled via TransferFrom for the whole batch was
	// refunded, so custody is back to zero.
	c.Assert(ledger.custody.String(), qt.Equals, "0")
	round, err := store.Round(0)
	c.Assert(err, qt.IsNil)
	c.Assert(round.TicketsSold, qt.Equals, uint64(0))
}

// TestClaimAtomicOnTransferFailure exercises a payout transfer failing
// during Claim: the ticket must survive so the claim can be retried, and
// the registry token must not be burned nor accounting decremented.
func TestClaimAtomicOnTransferFailure(t *testing.T) {
	c := qt.New(t)
	ledger := newFailingLedger()
	registry := newFailingRegistry()
	e, store, _, oracleAddr, clock := newAtomicityHarness(t, ledger, registry)
	ctx := context.Background()
	buyerAddr := buyer(41)

	seed := big.NewInt(777)
	winningBalls := feistel.DrawBalls(seed, 5, 69)
	ids, err := e.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: winningBalls}})
	c.Assert(err, qt.IsNil)

	*clock = clock.Add(time.Hour)
	c.Assert(e.Draw(ctx), qt.IsNil)
	req, err := store.RandomnessRequest()
	c.Assert(err, qt.IsNil)
	word := new(types.BigInt).SetBigInt(seed)
	c.Assert(e.OnRandomness(ctx, oracleAddr, req.RequestID, []*types.BigInt{word}), qt.IsNil)

	acctBefore, err := e.Accounting()
	c.Assert(err, qt.IsNil)

	ledger.failTransferAfter = 1
	_, err = e.Claim(ctx, buyerAddr, ids[0])
	c.Assert(err, qt.Not(qt.IsNil))

	// The ticket is untouched: still in the store, still owned in the
	// registry, and accounting unchanged, so the claim can be retried.
	_, terr := store.Ticket(ids[0])
	c.Assert(terr, qt.IsNil)
	owner, oerr := registry.OwnerOf(ctx, ids[0])
	c.Assert(oerr, qt.IsNil)
	c.Assert(owner, qt.Equals, buyerAddr)
	c.Assert(registry.burnCalls, qt.Equals, 0)

	acctAfter, err := e.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acctAfter.UnclaimedPayouts.String(), qt.Equals, acctBefore.UnclaimedPayouts.String())

	// A retry with a working ledger succeeds and the ticket is consumed.
	ledger.failTransferAfter = 0
	result, err := e.Claim(ctx, buyerAddr, ids[0])
	c.Assert(err, qt.IsNil)
	c.Assert(result.Payout.String(), qt.Equals, acctBefore.UnclaimedPayouts.String())
}

// TestWithdrawAccruedFeesNoDoubleSpendOnTransferFailure exercises a
// transfer failure in WithdrawAccruedFees: the accrued balance must still
// be zeroed, so a retried withdrawal cannot pay the same fees out twice.
func TestWithdrawAccruedFeesNoDoubleSpendOnTransferFailure(t *testing.T) {
	c := qt.New(t)
	ledger := newFailingLedger()
	registry := newFailingRegistry()
	e, _, owner, _, _ := newAtomicityHarness(t, ledger, registry)
	ctx := context.Background()
	buyerAddr := buyer(42)

	_, err := e.Purchase(ctx, buyerAddr, []TicketInput{{Recipient: buyerAddr, Picks: []uint8{1, 2, 3, 4, 5}}})
	c.Assert(err, qt.IsNil)

	acct, err := e.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acct.AccruedCommunityFees.Sign() > 0, qt.IsTrue)

	to := buyer(43)
	ledger.failTransferAfter = 1
	_, err = e.WithdrawAccruedFees(ctx, owner, to)
	c.Assert(err, qt.Not(qt.IsNil))

	acctAfter, err := e.Accounting()
	c.Assert(err, qt.IsNil)
	c.Assert(acctAfter.AccruedCommunityFees.String(), qt.Equals, "0")

	// A retry, even with a working ledger, cannot pay the fees out again:
	// the balance is already zero.
	ledger.failTransferAfter = 0
	amount, err := e.WithdrawAccruedFees(ctx, owner, to)
	c.Assert(err, qt.IsNil)
	c.Assert(amount.String(), qt.Equals, "0")
}
