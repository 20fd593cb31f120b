package config

// LotteryWeb3Config contains the three on-chain collaborator addresses the
// engine needs, for a given network.
type LotteryWeb3Config struct {
	TicketRegistrySmartContract   string
	ValueLedgerSmartContract      string
	RandomnessOracleSmartContract string
}

// DefaultConfig contains the default collaborator contract addresses by
// network shortname. Unlike a deployed registry contract, a lottery
// instance has no single canonical deployment: every entry here is empty
// and exists only to give `--network` a known set of shortnames to
// validate against; addresses are always supplied explicitly via CLI
// flags or environment variables.
var DefaultConfig = map[string]LotteryWeb3Config{
	"sep":     {},
	"mainnet": {},
}

// AvailableNetworks contains the network shortnames lottery-node accepts.
var AvailableNetworks = []string{
	"sep",
	"mainnet",
}
