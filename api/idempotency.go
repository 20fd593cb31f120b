package api

import (
	"net/http"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/lootery-node/log"
)

// idempotencyCacheSize bounds how many distinct Idempotency-Key values are
// remembered at once; oldest entries are evicted first.
const idempotencyCacheSize = 4096

// IdempotencyKeyHeader is the header a caller sets to make a draw/randomness
// callback retry-safe: a keeper bot that times out waiting for a response
// and resends the same request gets back the original result instead of
// the engine executing (and rejecting) the operation a second time.
const IdempotencyKeyHeader = "Idempotency-Key"

type idempotentResponse struct {
	status int
	body   []byte
}

// idempotencyStore caches one response per Idempotency-Key, so retried
// POSTs to draw/randomness-callback endpoints replay the original outcome
// instead of re-invoking the engine.
type idempotencyStore struct {
	cache *lru.Cache[string, idempotentResponse]
}

func newIdempotencyStore() *idempotencyStore {
	cache, err := lru.New[string, idempotentResponse](idempotencyCacheSize)
	if err != nil {
		panic(err)
	}
	return &idempotencyStore{cache: cache}
}

// middleware returns a chi-compatible middleware that deduplicates requests
// carrying an Idempotency-Key header. Requests without the header pass
// through unchanged. The header's value must be a UUID.
func (s *idempotencyStore) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := uuid.Parse(key); err != nil {
			ErrMalformedParam.Withf("%s must be a UUID: %v", IdempotencyKeyHeader, err).Write(w)
			return
		}
		if cached, ok := s.cache.Get(key); ok {
			log.Debugw("replaying cached response for idempotency key", "key", key, "status", cached.status)
			w.WriteHeader(cached.status)
			_, _ = w.Write(cached.body)
			return
		}

		rec := &captureWriter{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.cache.Add(key, idempotentResponse{status: rec.status, body: rec.body})
	})
}

// captureWriter records the status and body a handler writes, so it can be
// replayed verbatim for a later request carrying the same idempotency key.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   []byte
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}
