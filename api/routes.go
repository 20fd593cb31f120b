package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints.

const (
	// Health endpoint
	PingEndpoint = "/ping" // GET: health check

	// Read-only query endpoints
	GameIDURLParam      = "gameId"
	GamesEndpoint       = "/games"                                 // (reserved)
	CurrentGameEndpoint = "/games/current"                         // GET: current game pointer + round
	GameEndpoint        = "/games/{" + GameIDURLParam + "}"        // GET: a past or current round
	TicketIDURLParam    = "ticketId"
	TicketEndpoint      = "/tickets/{" + TicketIDURLParam + "}" // GET: a ticket's record
	AccountingEndpoint  = "/accounting"                         // GET: jackpot/unclaimed/fees snapshot

	// Operator/admin endpoints. Every one of these is, on-chain, a direct
	// contract call; this surface exists for off-chain bookkeeping parity
	// and to let the HTTP stack be exercised without a wallet, guarded by
	// the same caller checks the engine itself applies.
	PurchaseEndpoint          = "/tickets/purchase"          // POST: buy tickets
	OwnerPickEndpoint         = "/tickets/owner-pick"        // POST: owner-minted tickets, no payment
	SeedJackpotEndpoint       = "/jackpot/seed"               // POST: seed the jackpot
	DrawEndpoint              = "/draw"                       // POST: advance the round
	RandomnessCallbackEndpoint = "/draw/randomness"           // POST: oracle's randomness callback
	ClaimEndpoint             = "/tickets/{" + TicketIDURLParam + "}/claim" // POST: claim a ticket's winnings
	WithdrawFeesEndpoint      = "/admin/withdraw-fees"        // POST: withdraw accrued community fees
	KillEndpoint              = "/admin/kill"                 // POST: declare the apocalypse round
	RescueNativeEndpoint      = "/admin/rescue-native"        // POST: sweep unaccounted native coin
	RescueTokenEndpoint       = "/admin/rescue-token"         // POST: sweep unaccounted prize-token balance
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified endpoint
// URLs for clients and tests.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging.
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
