package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/yield-ledger/internal/auth"
	"github.com/josh-kwaku/yield-ledger/internal/handler"
	"github.com/josh-kwaku/yield-ledger/internal/repository"
)

const testSecret = "middleware-test-secret"

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuth(t *testing.T) {
	userID := uuid.New()
	valid, err := auth.GenerateToken(userID, "a@example.com", auth.RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken(userID, "a@example.com", auth.RoleAdmin, "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"no header", "", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"foreign signature", "Bearer " + foreign, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got *auth.Claims
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = auth.ClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			Auth(testSecret)(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, errorCode(t, rr))
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, userID, got.UserID)
			assert.Equal(t, auth.RoleAdmin, got.Role)
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	guarded := RequireRole(auth.RoleAdmin)(next)

	tests := []struct {
		name       string
		claims     *auth.Claims
		wantStatus int
	}{
		{"admin passes", &auth.Claims{UserID: uuid.New(), Role: auth.RoleAdmin}, http.StatusNoContent},
		{"user forbidden", &auth.Claims{UserID: uuid.New(), Role: auth.RoleUser}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/profit-runs", nil)
			if tc.claims != nil {
				req = req.WithContext(auth.ContextWithClaims(req.Context(), tc.claims))
			}
			rr := httptest.NewRecorder()
			guarded.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	frozen := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	send := func(method, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/v1/users/x/deposits", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPost, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "10.0.0.1:1001").Code)

	limited := send(http.MethodPost, "10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, limited))
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "10.0.0.1:1003").Code, "reads are not limited")
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "10.0.0.2:1000").Code, "buckets are per client")

	frozen = frozen.Add(time.Second)
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "10.0.0.1:1004").Code, "bucket refills")
}

func TestRateLimiter_SweepEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(limiterIdleTTL / 2)
	rl.allow("10.0.0.2")
	now = now.Add(limiterIdleTTL/2 + time.Second)

	assert.Equal(t, 1, rl.sweep())
	_, kept := rl.clients["10.0.0.2"]
	assert.True(t, kept)
}

type memoryStore struct {
	mu        sync.Mutex
	records   map[string]*repository.IdempotencyRecord
	completes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*repository.IdempotencyRecord{}}
}

func storeKey(key string, actorID uuid.UUID) string {
	return actorID.String() + "/" + key
}

func (s *memoryStore) Reserve(_ context.Context, rec *repository.IdempotencyRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.records[storeKey(rec.Key, rec.ActorID)]; ok && cur.ExpiresAt.After(time.Now()) {
		return false, nil
	}
	held := *rec
	s.records[storeKey(rec.Key, rec.ActorID)] = &held
	return true, nil
}

func (s *memoryStore) Get(_ context.Context, key string, actorID uuid.UUID) (*repository.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[storeKey(key, actorID)]
	if !ok {
		return nil, nil
	}
	out := *cur
	return &out, nil
}

func (s *memoryStore) Complete(_ context.Context, rec *repository.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[storeKey(rec.Key, rec.ActorID)]
	if !ok || !cur.Pending() || cur.RequestHash != rec.RequestHash {
		return errors.New("no reservation")
	}
	done := *rec
	s.records[storeKey(rec.Key, rec.ActorID)] = &done
	s.completes++
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string, actorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.records[storeKey(key, actorID)]; ok && cur.Pending() {
		delete(s.records, storeKey(key, actorID))
	}
	return nil
}

func (s *memoryStore) held(key string, actorID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[storeKey(key, actorID)]
	return ok
}

func TestIdempotency(t *testing.T) {
	actor := uuid.New()

	newReq := func(key, body string, who uuid.UUID) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/x/withdrawals", strings.NewReader(body))
		if key != "" {
			req.Header.Set(idempotencyHeader, key)
		}
		return req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{UserID: who, Role: auth.RoleUser}))
	}

	t.Run("replays first response", func(t *testing.T) {
		store := newMemoryStore()
		calls := 0
		h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			body, _ := io.ReadAll(r.Body)
			handler.RespondSuccess(w, http.StatusCreated, map[string]string{"echo": string(body)})
		}))

		first := httptest.NewRecorder()
		h.ServeHTTP(first, newReq("k1", `{"amount":"5"}`, actor))
		second := httptest.NewRecorder()
		h.ServeHTTP(second, newReq("k1", `{"amount":"5"}`, actor))

		assert.Equal(t, 1, calls)
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replayed"))
		assert.Equal(t, first.Body.String(), second.Body.String())
	})

	t.Run("same key different body conflicts", func(t *testing.T) {
		store := newMemoryStore()
		h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

		h.ServeHTTP(httptest.NewRecorder(), newReq("k1", `{"amount":"5"}`, actor))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, newReq("k1", `{"amount":"6"}`, actor))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "IDEMPOTENCY_CONFLICT", errorCode(t, rr))
	})

	t.Run("keys are scoped per actor", func(t *testing.T) {
		store := newMemoryStore()
		calls := 0
		h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusCreated)
		}))

		h.ServeHTTP(httptest.NewRecorder(), newReq("k1", `{}`, actor))
		h.ServeHTTP(httptest.NewRecorder(), newReq("k1", `{}`, uuid.New()))

		assert.Equal(t, 2, calls)
	})

	t.Run("server errors release the key", func(t *testing.T) {
		store := newMemoryStore()
		calls := 0
		h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			handler.RespondAppError(w, handler.ErrUnavailable, nil)
		}))

		h.ServeHTTP(httptest.NewRecorder(), newReq("k1", `{}`, actor))
		assert.Zero(t, store.completes)
		assert.False(t, store.held("k1", actor))

		h.ServeHTTP(httptest.NewRecorder(), newReq("k1", `{}`, actor))
		assert.Equal(t, 2, calls)
	})

	t.Run("panicking handler releases the key", func(t *testing.T) {
		store := newMemoryStore()
		h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		assert.Panics(t, func() {
			h.ServeHTTP(httptest.NewRecorder(), newReq("k1", `{}`, actor))
		})
		assert.False(t, store.held("k1", actor))
	})

	t.Run("repeat while first still running", func(t *testing.T) {
		store := newMemoryStore()
		entered := make(chan struct{})
		proceed := make(chan struct{})
		var calls atomic.Int32
		h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			close(entered)
			<-proceed
			handler.RespondSuccess(w, http.StatusCreated, map[string]string{"id": "w-1"})
		}))

		first := httptest.NewRecorder()
		done := make(chan struct{})
		go func() {
			defer close(done)
			h.ServeHTTP(first, newReq("k1", `{"amount":"5"}`, actor))
		}()
		<-entered

		second := httptest.NewRecorder()
		h.ServeHTTP(second, newReq("k1", `{"amount":"5"}`, actor))
		close(proceed)
		<-done

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusCreated, first.Code)
		assert.Equal(t, http.StatusConflict, second.Code)
		assert.Equal(t, "IDEMPOTENCY_IN_PROGRESS", errorCode(t, second))

		third := httptest.NewRecorder()
		h.ServeHTTP(third, newReq("k1", `{"amount":"5"}`, actor))
		assert.Equal(t, http.StatusCreated, third.Code)
		assert.Equal(t, "true", third.Header().Get("X-Idempotent-Replayed"))
	})

	t.Run("missing key", func(t *testing.T) {
		h := Idempotency(newMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, newReq("", `{}`, actor))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "MISSING_IDEMPOTENCY_KEY", errorCode(t, rr))
	})

	t.Run("reads pass through", func(t *testing.T) {
		called := false
		h := Idempotency(newMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, called)
	})
}

func TestTracing(t *testing.T) {
	var seen string
	h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(traceIDHeader, "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rr.Header().Get(traceIDHeader))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestLogging_TagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Tracing(Logging(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/x/balance", nil)
	req.Header.Set(traceIDHeader, "trace-abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trace-abc", line["request_id"])
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rr))
}
