package web3

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vocdoni/lootery-node/types"
)

// TicketRegistry adapts Contracts' bound ticket-NFT contract to the
// engine's lootery.TicketRegistry interface.
type TicketRegistry struct {
	c *Contracts
}

// NewTicketRegistry wraps c's loaded ticket registry contract.
func NewTicketRegistry(c *Contracts) *TicketRegistry {
	return &TicketRegistry{c: c}
}

// MintTo mints ticketID to recipient.
func (t *TicketRegistry) MintTo(ctx context.Context, recipient common.Address, ticketID uint64) error {
	opts, err := t.c.authTransactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := t.c.ticketRegistry.Transact(opts, "mintTo", recipient, new(big.Int).SetUint64(ticketID))
	if err != nil {
		return fmt.Errorf("mintTo: %w", err)
	}
	return t.c.WaitTx(tx.Hash(), web3QueryTimeout)
}

// Burn burns ticketID.
func (t *TicketRegistry) Burn(ctx context.Context, ticketID uint64) error {
	opts, err := t.c.authTransactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := t.c.ticketRegistry.Transact(opts, "burn", new(big.Int).SetUint64(ticketID))
	if err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	return t.c.WaitTx(tx.Hash(), web3QueryTimeout)
}

// OwnerOf returns the current owner of ticketID.
func (t *TicketRegistry) OwnerOf(ctx context.Context, ticketID uint64) (common.Address, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := t.c.ticketRegistry.Call(opts, &out, "ownerOf", new(big.Int).SetUint64(ticketID)); err != nil {
		return common.Address{}, fmt.Errorf("ownerOf: %w", err)
	}
	return *abiAddress(out[0]), nil
}

// ValueLedger adapts Contracts' bound prize-token contract to the engine's
// lootery.ValueLedger interface.
type ValueLedger struct {
	c *Contracts
}

// NewValueLedger wraps c's loaded value ledger contract.
func NewValueLedger(c *Contracts) *ValueLedger {
	return &ValueLedger{c: c}
}

// TransferFrom pulls amount from from's approved allowance into the
// engine's custody.
func (v *ValueLedger) TransferFrom(ctx context.Context, from common.Address, amount *types.BigInt) error {
	opts, err := v.c.authTransactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := v.c.valueLedger.Transact(opts, "transferFrom", from, v.c.AccountAddress(), amount.MathBigInt())
	if err != nil {
		return fmt.Errorf("transferFrom: %w", err)
	}
	return v.c.WaitTx(tx.Hash(), web3QueryTimeout)
}

// Transfer pushes amount out of the engine's custody to to.
func (v *ValueLedger) Transfer(ctx context.Context, to common.Address, amount *types.BigInt) error {
	opts, err := v.c.authTransactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := v.c.valueLedger.Transact(opts, "transfer", to, amount.MathBigInt())
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return v.c.WaitTx(tx.Hash(), web3QueryTimeout)
}

// BalanceOf returns the balance the engine holds.
func (v *ValueLedger) BalanceOf(ctx context.Context) (*types.BigInt, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := v.c.valueLedger.Call(opts, &out, "balanceOf", v.c.AccountAddress()); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return new(types.BigInt).SetBigInt(*abiBigInt(out[0])), nil
}

// NativeBalanceOf reports the engine's native-coin balance.
func (v *ValueLedger) NativeBalanceOf(ctx context.Context) (*types.BigInt, error) {
	bal, err := v.c.cli.BalanceAt(ctx, v.c.AccountAddress(), nil)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}
	return new(types.BigInt).SetBigInt(bal), nil
}

// RandomnessOracle adapts Contracts' bound VRF-shaped oracle contract to the
// engine's lootery.RandomnessOracle interface.
type RandomnessOracle struct {
	c *Contracts
}

// NewRandomnessOracle wraps c's loaded randomness oracle contract.
func NewRandomnessOracle(c *Contracts) *RandomnessOracle {
	return &RandomnessOracle{c: c}
}

// GetRequestPrice returns the native-coin price of a randomness request
// with the given callback gas budget.
func (r *RandomnessOracle) GetRequestPrice(ctx context.Context, callbackGas uint64) (*types.BigInt, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.c.randomnessOracle.Call(opts, &out, "getRequestPrice", uint32(callbackGas)); err != nil {
		return nil, fmt.Errorf("getRequestPrice: %w", err)
	}
	return new(types.BigInt).SetBigInt(*abiBigInt(out[0])), nil
}

// RequestRandomness requests a randomness draw, paying the oracle's quoted
// price, and returns the request id the oracle will echo back in its
// out-of-band callback.
func (r *RandomnessOracle) RequestRandomness(ctx context.Context, deadline int64, callbackGas uint64) ([32]byte, error) {
	price, err := r.GetRequestPrice(ctx, callbackGas)
	if err != nil {
		return [32]byte{}, err
	}
	opts, err := r.c.authTransactOpts(ctx)
	if err != nil {
		return [32]byte{}, err
	}
	opts.Value = price.MathBigInt()

	tx, err := r.c.randomnessOracle.Transact(opts, "requestRandomness", uint64(deadline), uint32(callbackGas))
	if err != nil {
		return [32]byte{}, fmt.Errorf("requestRandomness: %w", err)
	}
	if err := r.c.WaitTx(tx.Hash(), web3QueryTimeout); err != nil {
		return [32]byte{}, err
	}

	// The request id is the argument the oracle will echo back in its
	// OnRandomness callback; until the callback arrives we only have the
	// transaction hash as a provisional identifier.
	var requestID [32]byte
	copy(requestID[:], tx.Hash().Bytes())
	return requestID, nil
}

// Address returns the oracle contract's on-chain address.
func (r *RandomnessOracle) Address() common.Address {
	return r.c.ContractsAddresses.RandomnessOracle
}

// TransferNative sends amount of the chain's native coin to to. It matches
// the transfer func signature lootery.Engine.RescueNative takes, since
// native coin sits outside the ValueLedger collaborator's accounting.
func (c *Contracts) TransferNative(ctx context.Context, to common.Address, amount *types.BigInt) error {
	value := amount.MathBigInt()
	chainID := new(big.Int).SetUint64(c.ChainID)
	txHash, err := c.SendTxWithReplacement(ctx, false, func(nonce uint64, fees FeeCaps) (*gethtypes.Transaction, error) {
		inner := &gethtypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: fees.TipCap,
			GasFeeCap: fees.FeeCap,
			Gas:       21000,
			To:        &to,
			Value:     value,
		}
		signed, err := gethtypes.SignNewTx((*ecdsa.PrivateKey)(c.signer), gethtypes.LatestSignerForChainID(chainID), inner)
		if err != nil {
			return nil, fmt.Errorf("sign native transfer: %w", err)
		}
		if err := c.cli.SendTransaction(ctx, signed); err != nil {
			return signed, err
		}
		return signed, nil
	})
	if err != nil {
		return fmt.Errorf("transfer native: %w", err)
	}
	return c.WaitTx(*txHash, web3QueryTimeout)
}

func abiAddress(v interface{}) *common.Address {
	addr, ok := v.(common.Address)
	if !ok {
		a := common.Address{}
		return &a
	}
	return &addr
}

func abiBigInt(v interface{}) *big.Int {
	n, ok := v.(*big.Int)
	if !ok {
		return new(big.Int)
	}
	return n
}
