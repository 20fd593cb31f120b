package api

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func TestIdempotencyMiddlewareReplaysCachedResponse(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("executed"))
	})

	store := newIdempotencyStore()
	wrapped := store.middleware(handler)

	key := uuid.NewString()

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, httptest.NewRequest("POST", "/draw", nil))
	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once without a key, got %d calls", calls.Load())
	}

	req1 := httptest.NewRequest("POST", "/draw", nil)
	req1.Header.Set(IdempotencyKeyHeader, key)
	rec1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec1, req1)
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run on first keyed request, got %d calls", calls.Load())
	}
	if rec1.Code != http.StatusCreated || rec1.Body.String() != "executed" {
		t.Fatalf("unexpected first response: %d %q", rec1.Code, rec1.Body.String())
	}

	req2 := httptest.NewRequest("POST", "/draw", nil)
	req2.Header.Set(IdempotencyKeyHeader, key)
	rec2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec2, req2)
	if calls.Load() != 2 {
		t.Fatalf("expected handler NOT to run on replayed request, got %d calls", calls.Load())
	}
	if rec2.Code != rec1.Code || rec2.Body.String() != rec1.Body.String() {
		t.Fatalf("replayed response differs: got %d %q, want %d %q",
			rec2.Code, rec2.Body.String(), rec1.Code, rec1.Body.String())
	}
}

func TestIdempotencyMiddlewareRejectsMalformedKey(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	store := newIdempotencyStore()
	wrapped := store.middleware(handler)

	req := httptest.NewRequest("POST", "/draw", nil)
	req.Header.Set(IdempotencyKeyHeader, "not-a-uuid")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != ErrMalformedParam.HTTPstatus {
		t.Fatalf("expected malformed-param status %d, got %d", ErrMalformedParam.HTTPstatus, rec.Code)
	}
}
