package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vocdoni/lootery-node/log"
)

// Error is an API error: a stable numeric Code for machine consumption, the
// HTTPstatus to answer with, and a human-readable Err. Handlers build one
// from the package-level vars in errors_definition.go, optionally narrowing
// it with WithErr/Withf, and send it with Write.
type Error struct {
	Code       int    `json:"code"`
	HTTPstatus int    `json:"-"`
	Err        error  `json:"-"`
	Message    string `json:"error"`
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// WithErr returns a copy of e with its message set from err, keeping e's
// Code and HTTPstatus.
func (e Error) WithErr(err error) Error {
	e.Err = err
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// Withf returns a copy of e with its message replaced by a formatted string,
// keeping e's Code and HTTPstatus.
func (e Error) Withf(format string, args ...any) Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// Write sends e as the HTTP response: the JSON-encoded error for any status
// other than 204, which by definition carries no body.
func (e Error) Write(w http.ResponseWriter) {
	if e.HTTPstatus == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if e.Message == "" {
		e.Message = e.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	body, err := json.Marshal(e)
	if err != nil {
		log.Warnw("failed to marshal api error", "error", err)
		return
	}
	if _, err := w.Write(body); err != nil {
		log.Warnw("failed to write api error response", "error", err)
	}
}
