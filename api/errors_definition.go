//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the caller's fault and answer
// with HTTP 400/403/404/409/429. Codes 50001-59999 are the server's fault and
// answer with HTTP 500/503. There is no correlation between Code and
// HTTPstatus beyond what's convenient when the var was added.
//
// NEVER change an existing Code, only append new ones after the last 4xxx
// or 5xxx in use. If a Code's var is later removed, its number stays
// retired rather than being reused by a new error.
var (
	ErrResourceNotFound   = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody      = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam     = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedAddress   = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrInvalidSignature   = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrUnauthorized       = Error{Code: 40006, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unauthorized")}
	ErrGameNotFound       = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("game not found")}
	ErrTicketNotFound     = Error{Code: 40008, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("ticket not found")}
	ErrInvalidNumPicks    = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid number of picks")}
	ErrInvalidBallValue   = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid ball value")}
	ErrUnsortedPicks      = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("picks must be strictly ascending")}
	ErrGameInactive       = Error{Code: 40012, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("lottery is inactive")}
	ErrUnexpectedState    = Error{Code: 40013, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("round is not in the expected state")}
	ErrWaitLonger         = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("game period has not elapsed yet")}
	ErrClaimWindowMissed  = Error{Code: 40015, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("claim window for this ticket has passed")}
	ErrNoWin              = Error{Code: 40016, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("ticket did not win")}
	ErrRateLimited        = Error{Code: 40017, HTTPstatus: http.StatusTooManyRequests, Err: fmt.Errorf("rate limited")}
	ErrInsufficientSeed   = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("seed value below the configured minimum")}
	ErrRequestInFlight    = Error{Code: 40019, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("a randomness request is already in flight")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrInsufficientFunds          = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("insufficient operational funds")}
)
