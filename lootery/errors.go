package lootery

import "fmt"

// Kind is a closed set of error categories the engine can return. Kind
// values are stable identifiers; callers (notably the HTTP API) switch on
// them rather than parsing error strings.
type Kind string

const (
	// Validation
	KindInvalidNumPicks         Kind = "InvalidNumPicks"
	KindInvalidBallValue        Kind = "InvalidBallValue"
	KindUnsortedPicks           Kind = "UnsortedPicks"
	KindInvalidTicketPrice      Kind = "InvalidTicketPrice"
	KindInvalidGamePeriod       Kind = "InvalidGamePeriod"
	KindInsufficientJackpotSeed Kind = "InsufficientJackpotSeed"
	// State
	KindUnexpectedState   Kind = "UnexpectedState"
	KindGameInactive      Kind = "GameInactive"
	KindWaitLonger        Kind = "WaitLonger"
	KindClaimWindowMissed Kind = "ClaimWindowMissed"
	// Randomness
	KindRequestAlreadyInFlight  Kind = "RequestAlreadyInFlight"
	KindCallerNotRandomiser     Kind = "CallerNotRandomiser"
	KindRequestIdMismatch       Kind = "RequestIdMismatch"
	KindInsufficientRandomWords Kind = "InsufficientRandomWords"
	// Accounting
	KindInsufficientOperationalFunds Kind = "InsufficientOperationalFunds"
	KindNoWin                        Kind = "NoWin"
	// Limits
	KindRateLimited         Kind = "RateLimited"
	KindTicketsSoldOverflow Kind = "TicketsSoldOverflow"
	// Authorisation
	KindUnauthorized Kind = "Unauthorized"
	// Lookup
	KindNotFound Kind = "NotFound"
)

// Error is the engine's error type: a closed Kind plus diagnostic context
// and an optional wrapped cause. Failures the engine detects itself
// (validation, authorisation, state) are returned as one of these; an
// error from the Store or from a collaborator may be returned as it came.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, lootery.NewError(lootery.KindNoWin, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs an *Error with the given kind and message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError constructs an *Error with the given kind, message and cause.
func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
