package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vocdoni/lootery-node/log"
	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/types"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// TransferNativeFunc sends amount of the chain's native coin to to. It
// matches the signature lootery.Engine.RescueNative expects.
type TransferNativeFunc func(ctx context.Context, to common.Address, amount *types.BigInt) error

// APIConfig is the configuration for the API HTTP server.
type APIConfig struct {
	Host string
	Port int

	Engine       *lootery.Engine
	NumPicks     uint8 // must match the Engine's Config.NumPicks, for decoding pick sets in responses
	MaxBallValue uint8

	// TransferNative, if set, enables the rescue-native admin endpoint.
	TransferNative TransferNativeFunc
}

// API is the lottery's read-only query and operator/admin HTTP surface.
type API struct {
	router *chi.Mux
	engine *lootery.Engine

	numPicks     uint8
	maxBallValue uint8

	transferNative TransferNativeFunc
	idempotency    *idempotencyStore
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Engine == nil {
		return nil, fmt.Errorf("missing engine instance")
	}
	a := &API{
		engine:         conf.Engine,
		numPicks:       conf.NumPicks,
		maxBallValue:   conf.MaxBallValue,
		transferNative: conf.TransferNative,
		idempotency:    newIdempotencyStore(),
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router, exposed for testing.
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers every HTTP handler for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, a.ping)

	log.Infow("register handler", "endpoint", CurrentGameEndpoint, "method", "GET")
	a.router.Get(CurrentGameEndpoint, a.currentGame)
	log.Infow("register handler", "endpoint", GameEndpoint, "method", "GET")
	a.router.Get(GameEndpoint, a.game)
	log.Infow("register handler", "endpoint", TicketEndpoint, "method", "GET")
	a.router.Get(TicketEndpoint, a.ticket)
	log.Infow("register handler", "endpoint", AccountingEndpoint, "method", "GET")
	a.router.Get(AccountingEndpoint, a.accounting)

	log.Infow("register handler", "endpoint", PurchaseEndpoint, "method", "POST")
	a.router.Post(PurchaseEndpoint, a.purchase)
	log.Infow("register handler", "endpoint", OwnerPickEndpoint, "method", "POST")
	a.router.Post(OwnerPickEndpoint, a.ownerPick)
	log.Infow("register handler", "endpoint", SeedJackpotEndpoint, "method", "POST")
	a.router.Post(SeedJackpotEndpoint, a.seedJackpot)
	log.Infow("register handler", "endpoint", DrawEndpoint, "method", "POST")
	a.router.With(a.idempotency.middleware).Post(DrawEndpoint, a.draw)
	log.Infow("register handler", "endpoint", RandomnessCallbackEndpoint, "method", "POST")
	a.router.With(a.idempotency.middleware).Post(RandomnessCallbackEndpoint, a.randomnessCallback)
	log.Infow("register handler", "endpoint", ClaimEndpoint, "method", "POST")
	a.router.Post(ClaimEndpoint, a.claim)

	log.Infow("register handler", "endpoint", WithdrawFeesEndpoint, "method", "POST")
	a.router.Post(WithdrawFeesEndpoint, a.withdrawFees)
	log.Infow("register handler", "endpoint", KillEndpoint, "method", "POST")
	a.router.Post(KillEndpoint, a.kill)
	log.Infow("register handler", "endpoint", RescueNativeEndpoint, "method", "POST")
	a.router.Post(RescueNativeEndpoint, a.rescueNative)
	log.Infow("register handler", "endpoint", RescueTokenEndpoint, "method", "POST")
	a.router.Post(RescueTokenEndpoint, a.rescueToken)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
