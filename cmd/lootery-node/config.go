package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vocdoni/lootery-node/config"
	"github.com/vocdoni/lootery-node/types"
)

const (
	defaultNetwork      = "sep"
	defaultAPIHost      = "0.0.0.0"
	defaultAPIPort      = 9090
	defaultLogLevel     = "info"
	defaultLogOutput    = "stdout"
	defaultDatadir      = ".lootery" // prefixed with the user's home directory
	defaultGamePeriod   = 24 * time.Hour
	defaultTicketPrice  = "1000000000000000" // 0.001 ether, in wei
	defaultSeedDelay    = time.Hour
	defaultSeedMin      = "10000000000000000" // 0.01 ether, in wei
	defaultCallbackGas  = uint64(200000)
	drawMonitorInterval = time.Minute
)

// Version is the build version, overridden at build time with -ldflags.
var Version = "dev"

// Config holds the application configuration.
type Config struct {
	Web3    Web3Config
	Game    GameConfig
	API     APIConfig
	Log     LogConfig
	Datadir string
}

// Web3Config holds Ethereum-related configuration.
type Web3Config struct {
	PrivKey              string   `mapstructure:"privkey"`
	Network              string   `mapstructure:"network"`
	Rpc                  []string `mapstructure:"rpc"`
	TicketRegistryAddr   string   `mapstructure:"ticketregistry"`
	ValueLedgerAddr      string   `mapstructure:"valueledger"`
	RandomnessOracleAddr string   `mapstructure:"randomnessoracle"`
}

// GameConfig holds the engine's game parameters.
type GameConfig struct {
	NumPicks            uint8         `mapstructure:"numpicks"`
	MaxBallValue        uint8         `mapstructure:"maxballvalue"`
	GamePeriod          time.Duration `mapstructure:"period"`
	TicketPrice         string        `mapstructure:"ticketprice"`
	CommunityFeeBps     uint32        `mapstructure:"communityfeebps"`
	SeedJackpotDelay    time.Duration `mapstructure:"seeddelay"`
	SeedJackpotMinValue string        `mapstructure:"seedmin"`
	CallbackGasLimit    uint64        `mapstructure:"callbackgas"`
	Owner               string        `mapstructure:"owner"`
}

// APIConfig holds the API-specific configuration.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and
// defaults.
func loadConfig() (*Config, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("web3.network", defaultNetwork)
	v.SetDefault("web3.rpc", []string{})
	v.SetDefault("game.numpicks", 5)
	v.SetDefault("game.maxballvalue", 50)
	v.SetDefault("game.period", defaultGamePeriod)
	v.SetDefault("game.ticketprice", defaultTicketPrice)
	v.SetDefault("game.communityfeebps", uint32(500))
	v.SetDefault("game.seeddelay", defaultSeedDelay)
	v.SetDefault("game.seedmin", defaultSeedMin)
	v.SetDefault("game.callbackgas", defaultCallbackGas)
	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)

	flag.StringP("web3.privkey", "k", "", "private key to use for the Ethereum account (required)")
	flag.StringP("web3.network", "n", defaultNetwork, fmt.Sprintf("network to use %v", config.AvailableNetworks))
	flag.StringSliceP("web3.rpc", "w", []string{}, "web3 rpc endpoint(s), comma-separated")
	flag.String("web3.ticketregistry", "", "custom ticket registry contract address (overrides network default)")
	flag.String("web3.valueledger", "", "custom value ledger contract address (overrides network default)")
	flag.String("web3.randomnessoracle", "", "custom randomness oracle contract address (overrides network default)")
	flag.Uint8("game.numpicks", 5, "N: number of balls drawn and balls per ticket")
	flag.Uint8("game.maxballvalue", 50, "M: ball domain is [1, M]")
	flag.Duration("game.period", defaultGamePeriod, "round duration before a draw may be requested")
	flag.String("game.ticketprice", defaultTicketPrice, "ticket price in the prize token's smallest unit")
	flag.Uint32("game.communityfeebps", 500, "community fee, in basis points (0-10000)")
	flag.Duration("game.seeddelay", defaultSeedDelay, "minimum gap between unsolicited jackpot seeds")
	flag.String("game.seedmin", defaultSeedMin, "minimum jackpot seed value")
	flag.Uint64("game.callbackgas", defaultCallbackGas, "callback gas limit quoted to the randomness oracle")
	flag.String("game.owner", "", "owner address, allowed to owner-pick/kill/rescue/withdraw (required)")
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database and storage files")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lootery-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: lootery-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, LOOTERY_WEB3_PRIVKEY or LOOTERY_API_HOST\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with sepolia network and default settings\n")
		fmt.Fprintf(os.Stderr, "  lootery-node --web3.privkey=0x123... --game.owner=0xabc...\n\n")
		fmt.Fprintf(os.Stderr, "  # Start with custom RPC endpoints\n")
		fmt.Fprintf(os.Stderr, "  lootery-node --web3.privkey=0x123... --web3.rpc=https://rpc1.com,https://rpc2.com\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("LOOTERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration.
func validateConfig(cfg *Config) error {
	if cfg.Web3.PrivKey == "" {
		return fmt.Errorf("private key is required (use --web3.privkey flag or LOOTERY_WEB3_PRIVKEY environment variable)")
	}
	if cfg.Game.Owner == "" {
		return fmt.Errorf("owner address is required (use --game.owner flag or LOOTERY_GAME_OWNER environment variable)")
	}

	validNetwork := false
	for _, n := range config.AvailableNetworks {
		if cfg.Web3.Network == n {
			validNetwork = true
			break
		}
	}
	if !validNetwork {
		return fmt.Errorf("invalid network %s, available networks: %v", cfg.Web3.Network, config.AvailableNetworks)
	}

	return nil
}

// parseBigInt parses a base-10 string into a types.BigInt.
func parseBigInt(s string) (*types.BigInt, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer value %q", s)
	}
	return types.BigIntConverter(v), nil
}
