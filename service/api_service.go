package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/lootery-node/api"
	"github.com/vocdoni/lootery-node/log"
	"github.com/vocdoni/lootery-node/lootery"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	engine         *lootery.Engine
	numPicks       uint8
	maxBallValue   uint8
	transferNative api.TransferNativeFunc

	API    *api.API
	mu     sync.Mutex
	cancel context.CancelFunc
	host   string
	port   int
}

// NewAPI creates a new APIService instance.
func NewAPI(engine *lootery.Engine, numPicks, maxBallValue uint8, transferNative api.TransferNativeFunc, host string, port int, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		engine:         engine,
		numPicks:       numPicks,
		maxBallValue:   maxBallValue,
		transferNative: transferNative,
		host:           host,
		port:           port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	_, as.cancel = context.WithCancel(ctx)

	var err error
	as.API, err = api.New(&api.APIConfig{
		Host:           as.host,
		Port:           as.port,
		Engine:         as.engine,
		NumPicks:       as.numPicks,
		MaxBallValue:   as.maxBallValue,
		TransferNative: as.transferNative,
	})
	if err != nil {
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop marks the service as stopped so Start may be called again. It does
// not close the HTTP listener that api.New started, which keeps serving.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
