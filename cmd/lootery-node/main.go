package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/lootery-node/config"
	"github.com/vocdoni/lootery-node/db/inmemory"
	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/log"
	"github.com/vocdoni/lootery-node/service"
	"github.com/vocdoni/lootery-node/web3"
	"github.com/vocdoni/lootery-node/web3/rpc/chainlist"
)

// Services holds all the running services.
type Services struct {
	Engine    *lootery.Engine
	Contracts *web3.Contracts
	API       *service.APIService
	DrawMon   *service.DrawMonitor
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting lootery-node", "version", Version)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	addresses, err := getContractAddresses(cfg)
	if err != nil {
		log.Fatalf("failed to get contract addresses: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg, addresses)
	if err != nil {
		log.Fatalf("failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// getContractAddresses returns the collaborator contract addresses based on
// configuration, falling back to the network default when a flag is unset.
func getContractAddresses(cfg *Config) (*web3.Addresses, error) {
	networkConfig, ok := config.DefaultConfig[cfg.Web3.Network]
	if !ok {
		return nil, fmt.Errorf("no configuration found for network %s", cfg.Web3.Network)
	}

	ticketRegistryAddr := networkConfig.TicketRegistrySmartContract
	if cfg.Web3.TicketRegistryAddr != "" {
		ticketRegistryAddr = cfg.Web3.TicketRegistryAddr
	}
	valueLedgerAddr := networkConfig.ValueLedgerSmartContract
	if cfg.Web3.ValueLedgerAddr != "" {
		valueLedgerAddr = cfg.Web3.ValueLedgerAddr
	}
	randomnessOracleAddr := networkConfig.RandomnessOracleSmartContract
	if cfg.Web3.RandomnessOracleAddr != "" {
		randomnessOracleAddr = cfg.Web3.RandomnessOracleAddr
	}

	if ticketRegistryAddr == "" || valueLedgerAddr == "" || randomnessOracleAddr == "" {
		return nil, fmt.Errorf("missing collaborator contract address: ticket registry, value ledger, and " +
			"randomness oracle addresses must all be set, either via network defaults or --web3.* flags")
	}

	log.Infow("using contract addresses",
		"network", cfg.Web3.Network,
		"ticketRegistry", ticketRegistryAddr,
		"valueLedger", valueLedgerAddr,
		"randomnessOracle", randomnessOracleAddr)

	return &web3.Addresses{
		TicketRegistry:   common.HexToAddress(ticketRegistryAddr),
		ValueLedger:      common.HexToAddress(valueLedgerAddr),
		RandomnessOracle: common.HexToAddress(randomnessOracleAddr),
	}, nil
}

// setupServices initializes and starts all required services.
func setupServices(ctx context.Context, cfg *Config, addresses *web3.Addresses) (*Services, error) {
	services := &Services{}

	ticketPrice, err := parseBigInt(cfg.Game.TicketPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid game.ticketprice: %w", err)
	}
	seedMin, err := parseBigInt(cfg.Game.SeedJackpotMinValue)
	if err != nil {
		return nil, fmt.Errorf("invalid game.seedmin: %w", err)
	}
	if !common.IsHexAddress(cfg.Game.Owner) {
		return nil, fmt.Errorf("invalid game.owner address: %s", cfg.Game.Owner)
	}

	log.Infow("initializing storage", "datadir", cfg.Datadir, "type", db.TypePebble)
	var storagedb db.Database
	if cfg.Datadir == "" {
		storagedb, err = inmemory.New(db.Options{})
	} else {
		storagedb, err = metadb.New(db.TypePebble, cfg.Datadir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	w3rpc := cfg.Web3.Rpc
	if len(w3rpc) == 0 {
		log.Infow("no RPC endpoints provided, using chainlist.org", "network", cfg.Web3.Network)
		list, err := chainlist.ChainList()
		if err != nil {
			return nil, fmt.Errorf("failed to get chain list: %w", err)
		}
		id, ok := list[cfg.Web3.Network]
		if !ok {
			return nil, fmt.Errorf("network %s not found in chain list", cfg.Web3.Network)
		}
		endpoints, err := chainlist.EndpointList(id, cfg.Web3.Network, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get endpoints for network %s: %w", cfg.Web3.Network, err)
		}
		log.Infow("using endpoints from chain list", "chainID", id, "network", cfg.Web3.Network, "endpoints", endpoints)
		w3rpc = endpoints
	}

	contracts, _, engine, err := service.Bootstrap(&service.BootstrapConfig{
		Web3RPCs:         w3rpc,
		SignerPrivateKey: cfg.Web3.PrivKey,
		ContractAddrs:    *addresses,
		Backing:          storagedb,
		EngineConfig: lootery.Config{
			NumPicks:            cfg.Game.NumPicks,
			MaxBallValue:        cfg.Game.MaxBallValue,
			GamePeriod:          cfg.Game.GamePeriod,
			TicketPrice:         ticketPrice,
			CommunityFeeBps:     cfg.Game.CommunityFeeBps,
			SeedJackpotDelay:    cfg.Game.SeedJackpotDelay,
			SeedJackpotMinValue: seedMin,
			CallbackGasLimit:    cfg.Game.CallbackGasLimit,
			Owner:               common.HexToAddress(cfg.Game.Owner),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap engine: %w", err)
	}
	services.Contracts = contracts
	services.Engine = engine

	log.Infow("engine initialized",
		"chainId", contracts.ChainID,
		"account", contracts.AccountAddress().Hex())

	log.Info("starting draw monitor")
	services.DrawMon = service.NewDrawMonitor(engine, drawMonitorInterval)
	if err := services.DrawMon.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start draw monitor: %w", err)
	}

	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(
		engine,
		cfg.Game.NumPicks,
		cfg.Game.MaxBallValue,
		contracts.TransferNative,
		cfg.API.Host,
		cfg.API.Port,
		false,
	)
	if err := services.API.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("lootery-node is running, ready to sell tickets!")
	return services, nil
}

// shutdownServices gracefully shuts down all services.
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	if services.API != nil {
		services.API.Stop()
	}
	if services.DrawMon != nil {
		services.DrawMon.Stop()
	}
}
