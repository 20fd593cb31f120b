package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const dialTimeout = 5 * time.Second

// Web3Pool keeps one Web3Iterator per chain id, so a single pool can serve
// RPC calls for every network the node is configured to talk to.
type Web3Pool struct {
	mtx       sync.Mutex
	endpoints map[uint64]*Web3Iterator
}

// NewWeb3Pool creates an empty pool.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{endpoints: make(map[uint64]*Web3Iterator)}
}

// AddEndpoint dials uri, discovers its chain id and registers it in the
// pool. It returns the discovered chain id.
func (p *Web3Pool) AddEndpoint(uri string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	cli, err := ethclient.DialContext(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", uri, err)
	}
	chainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return 0, fmt.Errorf("chain id for %s: %w", uri, err)
	}

	endpoint := &Web3Endpoint{
		ChainID: chainID.Uint64(),
		URI:     uri,
		client:  cli,
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()
	it, ok := p.endpoints[endpoint.ChainID]
	if !ok {
		it = NewWeb3Iterator()
		p.endpoints[endpoint.ChainID] = it
	}
	it.Add(endpoint)
	return endpoint.ChainID, nil
}

// Client returns an rpc.Client bound to chainID, balancing load across every
// endpoint registered for that chain.
func (p *Web3Pool) Client(chainID uint64) (*Client, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if _, ok := p.endpoints[chainID]; !ok {
		return nil, fmt.Errorf("no endpoints registered for chainID %d", chainID)
	}
	return &Client{w3p: p, chainID: chainID}, nil
}

// Endpoint returns the next available endpoint for chainID in round-robin
// order.
func (p *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	p.mtx.Lock()
	it, ok := p.endpoints[chainID]
	p.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("no endpoints registered for chainID %d", chainID)
	}
	return it.Next()
}

// DisableEndpoint temporarily removes uri from chainID's rotation.
func (p *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	p.mtx.Lock()
	it, ok := p.endpoints[chainID]
	p.mtx.Unlock()
	if !ok {
		return
	}
	it.Disable(uri)
}

// NumberOfEndpoints returns how many endpoints are registered for chainID.
// When activeOnly is true, only endpoints currently in rotation count;
// otherwise the count also includes endpoints in cooldown.
func (p *Web3Pool) NumberOfEndpoints(chainID uint64, activeOnly bool) int {
	p.mtx.Lock()
	it, ok := p.endpoints[chainID]
	p.mtx.Unlock()
	if !ok {
		return 0
	}
	if activeOnly {
		return it.Available()
	}
	return it.Available() + it.Disabled()
}
