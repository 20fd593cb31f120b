package service

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/lootery-node/db/inmemory"
	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/storage"
	"github.com/vocdoni/lootery-node/types"
	"go.vocdoni.io/dvote/db"
)

type noopOracle struct{}

func (noopOracle) GetRequestPrice(context.Context, uint64) (*types.BigInt, error) {
	return types.NewInt(0), nil
}

func (noopOracle) RequestRandomness(context.Context, int64, uint64) ([32]byte, error) {
	return [32]byte{}, nil
}

func (noopOracle) Address() common.Address { return common.Address{} }

type noopLedger struct{}

func (noopLedger) TransferFrom(context.Context, common.Address, *types.BigInt) error { return nil }
func (noopLedger) Transfer(context.Context, common.Address, *types.BigInt) error     { return nil }
func (noopLedger) BalanceOf(context.Context) (*types.BigInt, error)                  { return types.NewInt(0), nil }

type noopRegistry struct{}

func (noopRegistry) MintTo(context.Context, common.Address, uint64) error { return nil }
func (noopRegistry) Burn(context.Context, uint64) error                   { return nil }
func (noopRegistry) OwnerOf(context.Context, uint64) (common.Address, error) {
	return common.Address{}, nil
}

type noopNative struct{}

func (noopNative) NativeBalanceOf(context.Context) (*types.BigInt, error) { return types.NewInt(0), nil }

func newTestEngine(t *testing.T) (*lootery.Engine, *storage.Storage) {
	backing, err := inmemory.New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	store := storage.New(backing)
	t.Cleanup(func() { _ = store.Close() })

	engine, err := lootery.New(lootery.Config{
		NumPicks:            5,
		MaxBallValue:        50,
		GamePeriod:          lootery.MinGamePeriod,
		TicketPrice:         types.NewInt(1),
		SeedJackpotDelay:    time.Hour,
		SeedJackpotMinValue: types.NewInt(1),
		Oracle:              noopOracle{},
		Ledger:              noopLedger{},
		TicketRegistry:      noopRegistry{},
		Native:              noopNative{},
	}, store)
	qt.Assert(t, err, qt.IsNil)
	return engine, store
}

func TestDrawMonitorLogsStuckRequest(t *testing.T) {
	c := qt.New(t)

	engine, store := newTestEngine(t)

	game, err := engine.CurrentGame()
	c.Assert(err, qt.IsNil)
	c.Assert(store.SetCurrentGame(lootery.CurrentGame{ID: game.ID, State: lootery.StateDrawPending}), qt.IsNil)
	c.Assert(store.SetRandomnessRequest(lootery.RandomnessRequest{
		RequestID: [32]byte{1},
		IssuedAt:  time.Now().Add(-2 * lootery.RandomnessRequestTimeout).Unix(),
	}), qt.IsNil)

	monitor := NewDrawMonitor(engine, 10*time.Millisecond)
	c.Assert(monitor.Start(context.Background()), qt.IsNil)
	defer monitor.Stop()

	// checkRandomnessRequest only logs; call it directly to exercise the
	// stuck-request branch deterministically instead of racing the ticker.
	monitor.checkRandomnessRequest()
}

func TestDrawMonitorStartTwiceFails(t *testing.T) {
	c := qt.New(t)

	engine, _ := newTestEngine(t)
	monitor := NewDrawMonitor(engine, time.Hour)
	c.Assert(monitor.Start(context.Background()), qt.IsNil)
	defer monitor.Stop()

	c.Assert(monitor.Start(context.Background()), qt.IsNotNil)
}
