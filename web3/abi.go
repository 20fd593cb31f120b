package web3

// TicketRegistryABI is the minimal ERC-721-shaped surface the engine needs
// from the ticket NFT contract: mint-on-purchase, burn-on-claim, and
// ownership lookup.
const TicketRegistryABI = `[
	{"type":"function","name":"mintTo","stateMutability":"nonpayable",
		"inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
		"outputs":[]},
	{"type":"function","name":"burn","stateMutability":"nonpayable",
		"inputs":[{"name":"tokenId","type":"uint256"}],
		"outputs":[]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
		"inputs":[{"name":"tokenId","type":"uint256"}],
		"outputs":[{"name":"owner","type":"address"}]}
]`

// ValueLedgerABI is the minimal ERC-20-shaped surface the engine needs from
// the prize-token contract: pulling purchase proceeds into custody,
// pushing payouts back out, and checking the engine's own balance.
const ValueLedgerABI = `[
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable",
		"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"success","type":"bool"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
		"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"success","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"balance","type":"uint256"}]}
]`

// RandomnessOracleABI is the minimal VRF-shaped surface the engine needs
// from the randomness beacon: price discovery and requesting a draw. The
// oracle answers out-of-band by calling the engine's OnRandomness callback,
// so no response-reading function is needed here.
const RandomnessOracleABI = `[
	{"type":"function","name":"getRequestPrice","stateMutability":"view",
		"inputs":[{"name":"callbackGasLimit","type":"uint32"}],
		"outputs":[{"name":"price","type":"uint256"}]},
	{"type":"function","name":"requestRandomness","stateMutability":"payable",
		"inputs":[{"name":"deadline","type":"uint64"},{"name":"callbackGasLimit","type":"uint32"}],
		"outputs":[{"name":"requestId","type":"bytes32"}]}
]`
