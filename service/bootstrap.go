package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"go.vocdoni.io/dvote/db"

	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/storage"
	"github.com/vocdoni/lootery-node/web3"
)

// bootstrapTimeout bounds how long dialing web3 endpoints and opening the
// local datastore may take together.
const bootstrapTimeout = 30 * time.Second

// BootstrapConfig carries everything needed to stand up the web3
// connection, the datastore, and the engine in one call.
type BootstrapConfig struct {
	Web3RPCs         []string
	SignerPrivateKey string
	ContractAddrs    web3.Addresses
	Backing          db.Database

	EngineConfig lootery.Config
}

// Bootstrap dials the web3 endpoints and opens the datastore concurrently,
// then wires both into a ready-to-run lootery.Engine.
func Bootstrap(conf *BootstrapConfig) (*web3.Contracts, *storage.Storage, *lootery.Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	var contracts *web3.Contracts
	var store *storage.Storage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rg, rctx := errgroup.WithContext(gctx)
		for _, rpcURL := range conf.Web3RPCs {
			rpcURL := rpcURL
			rg.Go(func() error { return web3.WaitReadyRPC(rctx, rpcURL) })
		}
		if err := rg.Wait(); err != nil {
			return fmt.Errorf("web3 endpoint not ready: %w", err)
		}
		c, err := web3.New(conf.Web3RPCs)
		if err != nil {
			return fmt.Errorf("failed to connect to web3 endpoints: %w", err)
		}
		if conf.SignerPrivateKey != "" {
			if err := c.SetAccountPrivateKey(conf.SignerPrivateKey); err != nil {
				return fmt.Errorf("failed to set signer: %w", err)
			}
		}
		if err := c.LoadContracts(&conf.ContractAddrs); err != nil {
			return fmt.Errorf("failed to load contracts: %w", err)
		}
		contracts = c
		return nil
	})
	g.Go(func() error {
		store = storage.New(conf.Backing)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	engineConfig := conf.EngineConfig
	engineConfig.TicketRegistry = web3.NewTicketRegistry(contracts)
	engineConfig.Ledger = web3.NewValueLedger(contracts)
	engineConfig.Oracle = web3.NewRandomnessOracle(contracts)
	engineConfig.Native = web3.NewValueLedger(contracts)

	engine, err := lootery.New(engineConfig, store)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return contracts, store, engine, nil
}
