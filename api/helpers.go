package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/vocdoni/lootery-node/log"
	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/storage"
	"github.com/vocdoni/lootery-node/web3"
)

// httpWriteJSON writes data as a JSON response with a 200 status.
func httpWriteJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	if _, err := w.Write(jdata); err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", len(jdata), "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK writes an empty 200 response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// parseUint64Param parses the chi URL param name from r as a uint64.
func parseUint64Param(r *http.Request, name string) (uint64, error) {
	v := chi.URLParam(r, name)
	return strconv.ParseUint(v, 10, 64)
}

// verifyCaller checks that signature is a valid signature by callerHex over
// message, and returns the recovered address. The HTTP surface has no
// wallet session of its own; every mutating request proves its caller the
// same way an on-chain transaction would, by signing the request's payload.
func verifyCaller(message []byte, callerHex string, signature []byte) (common.Address, error) {
	if !common.IsHexAddress(callerHex) {
		return common.Address{}, errors.New("malformed caller address")
	}
	caller := common.HexToAddress(callerHex)
	sig, err := web3.BytesToSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	if !sig.Verify(message, caller) {
		return common.Address{}, errors.New("signature does not match caller")
	}
	return caller, nil
}

// errorFromEngineResource is like errorFromEngine but reports a not-found
// condition as notFound instead of the generic ErrResourceNotFound, so
// callers can surface which kind of resource was missing.
func errorFromEngineResource(err error, notFound Error) Error {
	e := errorFromEngine(err)
	if e.Code == ErrResourceNotFound.Code {
		return notFound.WithErr(err)
	}
	return e
}

// errorFromEngine maps an engine error onto the api.Error it should be
// reported as, preserving the engine's own message as the JSON body's
// error field.
func errorFromEngine(err error) Error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrResourceNotFound.WithErr(err)
	}
	var lerr *lootery.Error
	if !errors.As(err, &lerr) {
		return ErrGenericInternalServerError.WithErr(err)
	}
	switch lerr.Kind {
	case lootery.KindNotFound:
		return ErrResourceNotFound.WithErr(lerr)
	case lootery.KindInvalidNumPicks:
		return ErrInvalidNumPicks.WithErr(lerr)
	case lootery.KindInvalidBallValue:
		return ErrInvalidBallValue.WithErr(lerr)
	case lootery.KindUnsortedPicks:
		return ErrUnsortedPicks.WithErr(lerr)
	case lootery.KindInvalidTicketPrice, lootery.KindInvalidGamePeriod:
		return ErrMalformedBody.WithErr(lerr)
	case lootery.KindInsufficientJackpotSeed:
		return ErrInsufficientSeed.WithErr(lerr)
	case lootery.KindUnexpectedState:
		return ErrUnexpectedState.WithErr(lerr)
	case lootery.KindGameInactive:
		return ErrGameInactive.WithErr(lerr)
	case lootery.KindWaitLonger:
		return ErrWaitLonger.WithErr(lerr)
	case lootery.KindClaimWindowMissed:
		return ErrClaimWindowMissed.WithErr(lerr)
	case lootery.KindRequestAlreadyInFlight:
		return ErrRequestInFlight.WithErr(lerr)
	case lootery.KindCallerNotRandomiser, lootery.KindUnauthorized:
		return ErrUnauthorized.WithErr(lerr)
	case lootery.KindRequestIdMismatch:
		return ErrMalformedBody.WithErr(lerr)
	case lootery.KindInsufficientRandomWords:
		return ErrMalformedBody.WithErr(lerr)
	case lootery.KindInsufficientOperationalFunds:
		return ErrInsufficientFunds.WithErr(lerr)
	case lootery.KindNoWin:
		return ErrNoWin.WithErr(lerr)
	case lootery.KindRateLimited:
		return ErrRateLimited.WithErr(lerr)
	case lootery.KindTicketsSoldOverflow:
		return ErrGenericInternalServerError.WithErr(lerr)
	default:
		return ErrGenericInternalServerError.WithErr(lerr)
	}
}
