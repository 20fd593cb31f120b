package web3

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vocdoni/lootery-node/log"
	"github.com/vocdoni/lootery-node/web3/rpc"
)

const (
	// web3QueryTimeout is the timeout for web3 queries.
	web3QueryTimeout = 10 * time.Second

	// currentBlockIntervalUpdate is the interval to update the current block.
	currentBlockIntervalUpdate = 5 * time.Second
)

// Addresses holds the on-chain addresses of the three collaborator
// contracts the engine talks to.
type Addresses struct {
	TicketRegistry   common.Address
	ValueLedger      common.Address
	RandomnessOracle common.Address
}

// ContractABIs holds the parsed ABIs matching Addresses, used both for
// encoding calls through bind.BoundContract and for revert-reason decoding.
type ContractABIs struct {
	TicketRegistry   *abi.ABI
	ValueLedger      *abi.ABI
	RandomnessOracle *abi.ABI
}

// Contracts is the web3 connection shared by every collaborator
// implementation: one signer, one endpoint pool, one set of bound contract
// handles.
type Contracts struct {
	ChainID            uint64
	ContractsAddresses *Addresses
	ContractABIs       *ContractABIs

	ticketRegistry   *bind.BoundContract
	valueLedger      *bind.BoundContract
	randomnessOracle *bind.BoundContract

	web3pool *rpc.Web3Pool
	cli      *rpc.Client
	signer   *Signer

	currentBlock           uint64
	currentBlockLastUpdate time.Time
	currentBlockMutex      sync.Mutex
}

// New dials every given web3 endpoint, checks they agree on a chain id, and
// returns a Contracts bound to that chain with no contracts loaded yet.
func New(web3rpcs []string) (*Contracts, error) {
	w3pool := rpc.NewWeb3Pool()
	var chainID *uint64
	for _, endpoint := range web3rpcs {
		cID, err := w3pool.AddEndpoint(endpoint)
		if err != nil {
			log.Warnw("skipping web3 endpoint", "rpc", endpoint, "error", err)
			continue
		}
		if chainID == nil {
			chainID = &cID
		}
		if *chainID != cID {
			return nil, fmt.Errorf("web3 endpoints have different chain IDs: %d and %d", *chainID, cID)
		}
	}
	if chainID == nil {
		return nil, fmt.Errorf("no web3 endpoints provided")
	}
	cli, err := w3pool.Client(*chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	lastBlock, err := cli.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	log.Infow("web3 client initialized",
		"chainID", *chainID,
		"lastBlock", lastBlock,
		"numEndpoints", len(web3rpcs),
	)

	return &Contracts{
		ChainID:                *chainID,
		web3pool:               w3pool,
		cli:                    cli,
		currentBlock:           lastBlock,
		currentBlockLastUpdate: time.Now(),
	}, nil
}

// CurrentBlock returns the current block number for the chain, refreshing
// it from the network at most once per currentBlockIntervalUpdate.
func (c *Contracts) CurrentBlock() uint64 {
	c.currentBlockMutex.Lock()
	defer c.currentBlockMutex.Unlock()
	now := time.Now()
	if c.currentBlockLastUpdate.Add(currentBlockIntervalUpdate).Before(now) {
		ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
		defer cancel()
		block, err := c.cli.BlockNumber(ctx)
		if err != nil {
			log.Warnw("failed to get block number", "error", err)
			return c.currentBlock
		}
		c.currentBlock = block
		c.currentBlockLastUpdate = now
	}
	return c.currentBlock
}

// LoadContracts parses the three collaborator ABIs and binds them to
// addresses, ready for calls and transactions.
func (c *Contracts) LoadContracts(addresses *Addresses) error {
	ticketRegistryABI, err := abi.JSON(strings.NewReader(TicketRegistryABI))
	if err != nil {
		return fmt.Errorf("failed to parse ticket registry ABI: %w", err)
	}
	valueLedgerABI, err := abi.JSON(strings.NewReader(ValueLedgerABI))
	if err != nil {
		return fmt.Errorf("failed to parse value ledger ABI: %w", err)
	}
	randomnessOracleABI, err := abi.JSON(strings.NewReader(RandomnessOracleABI))
	if err != nil {
		return fmt.Errorf("failed to parse randomness oracle ABI: %w", err)
	}

	c.ContractsAddresses = addresses
	c.ContractABIs = &ContractABIs{
		TicketRegistry:   &ticketRegistryABI,
		ValueLedger:      &valueLedgerABI,
		RandomnessOracle: &randomnessOracleABI,
	}

	c.ticketRegistry = bind.NewBoundContract(addresses.TicketRegistry, ticketRegistryABI, c.cli, c.cli, c.cli)
	c.valueLedger = bind.NewBoundContract(addresses.ValueLedger, valueLedgerABI, c.cli, c.cli, c.cli)
	c.randomnessOracle = bind.NewBoundContract(addresses.RandomnessOracle, randomnessOracleABI, c.cli, c.cli, c.cli)

	return nil
}

// CheckTxStatus checks the status of a transaction given its hash.
// Returns true if the transaction was successful, false otherwise.
func (c *Contracts) CheckTxStatus(txHash common.Hash) (bool, error) {
	ethcli, err := c.cli.EthClient()
	if err != nil {
		return false, fmt.Errorf("failed to get eth client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	receipt, err := ethcli.TransactionReceipt(ctx, txHash)
	if err != nil {
		return false, fmt.Errorf("failed to get transaction receipt: %w", err)
	}
	return receipt.Status == 1, nil
}

// WaitTx waits for a transaction to be mined.
func (c *Contracts) WaitTx(txHash common.Hash, timeOut time.Duration) error {
	timeout := time.After(timeOut)
	for {
		select {
		case <-timeout:
			return fmt.Errorf("timeout waiting for tx %s", txHash.Hex())
		default:
			status, _ := c.CheckTxStatus(txHash)
			if status {
				return nil
			}
			time.Sleep(1 * time.Second)
		}
	}
}

// AddWeb3Endpoint adds a new web3 endpoint to the pool.
func (c *Contracts) AddWeb3Endpoint(web3rpc string) error {
	_, err := c.web3pool.AddEndpoint(web3rpc)
	return err
}

// SetAccountPrivateKey sets the private key to be used for signing transactions.
func (c *Contracts) SetAccountPrivateKey(hexPrivKey string) error {
	signer, err := NewSignerFromHex(hexPrivKey)
	if err != nil {
		return fmt.Errorf("failed to add private key: %w", err)
	}
	c.signer = signer
	return nil
}

// AccountAddress returns the address of the account used to sign transactions.
func (c *Contracts) AccountAddress() common.Address {
	return c.signer.Address()
}

// SignMessage signs a message with the account private key.
func (c *Contracts) SignMessage(msg []byte) ([]byte, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no private key set")
	}
	signature, err := c.signer.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return signature.Bytes(), nil
}

// AccountNonce returns the nonce of the account used to sign transactions.
func (c *Contracts) AccountNonce() (uint64, error) {
	if c.signer == nil {
		return 0, fmt.Errorf("no private key set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	return c.cli.PendingNonceAt(ctx, c.signer.Address())
}

// authTransactOpts creates transact options signed with the configured
// private key, with the pending nonce pre-filled.
func (c *Contracts) authTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no private key set")
	}
	bChainID := new(big.Int).SetUint64(c.ChainID)
	auth, err := bind.NewKeyedTransactorWithChainID((*ecdsa.PrivateKey)(c.signer), bChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	nonce, err := c.cli.PendingNonceAt(ctx, c.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	auth.Context = ctx
	return auth, nil
}

// decodeRevert maps a revert selector back to the error signature that
// produced it, searching every loaded contract ABI.
func (c *Contracts) decodeRevert(data []byte) (string, error) {
	var errorName string
	err := c.ContractABIs.ForEachABI(func(name string, a *abi.ABI) error {
		for _, e := range a.Errors {
			sig := strings.TrimPrefix(e.String(), "error ")
			hash := crypto.Keccak256([]byte(sig))[:4]
			if bytes.Equal(data, hash) {
				errorName = sig
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if errorName != "" {
		return errorName, nil
	}
	return "", fmt.Errorf("unknown error selector %x", data)
}

// ForEachABI calls fn(name, abi) for each non-nil *abi.ABI field.
// Stops and returns an error if fn returns an error.
func (c *ContractABIs) ForEachABI(fn func(fieldName string, a *abi.ABI) error) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := range v.NumField() {
		fieldVal := v.Field(i)
		if fieldVal.IsNil() {
			continue
		}
		abiPtr, ok := fieldVal.Interface().(*abi.ABI)
		if !ok {
			continue
		}
		fieldName := t.Field(i).Name
		if err := fn(fieldName, abiPtr); err != nil {
			return fmt.Errorf("%s: %w", fieldName, err)
		}
	}
	return nil
}
