package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/yield-ledger/internal/auth"
	"github.com/josh-kwaku/yield-ledger/internal/handler"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
	"github.com/josh-kwaku/yield-ledger/internal/repository"
)

type idempotencyStore interface {
	Reserve(ctx context.Context, rec *repository.IdempotencyRecord) (bool, error)
	Get(ctx context.Context, key string, actorID uuid.UUID) (*repository.IdempotencyRecord, error)
	Complete(ctx context.Context, rec *repository.IdempotencyRecord) error
	Release(ctx context.Context, key string, actorID uuid.UUID) error
}

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	// reservationTTL outlasts the server's write timeout; a reservation left
	// by a crashed process is taken over after it.
	reservationTTL    = 5 * time.Minute
	maxIdempotencyKey = 255
	maxCachedBody     = 1 << 20
)

// Idempotency reserves the key before the request runs and replays the stored
// response when an actor repeats a mutating request with the same key. A
// repeat that arrives while the first is still running gets 409. Server
// errors release the reservation so the client can retry under the same key.
func Idempotency(store idempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			log := logging.FromContext(r.Context())

			key := r.Header.Get(idempotencyHeader)
			if key == "" || len(key) > maxIdempotencyKey {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			actorID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxCachedBody))
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			reqHash := requestHash(r.Method, r.URL.Path, body)

			now := time.Now().UTC()
			entry := &repository.IdempotencyRecord{
				Key:         key,
				ActorID:     actorID,
				RequestHash: reqHash,
				CreatedAt:   now,
				ExpiresAt:   now.Add(reservationTTL),
			}
			reserved, err := store.Reserve(r.Context(), entry)
			if err != nil {
				log.Error("idempotency reservation failed", "error", err, "idempotency_key", key)
				handler.RespondAppError(w, handler.ErrUnavailable, nil)
				return
			}
			if !reserved {
				replay(w, r, store, entry)
				return
			}

			stored := false
			defer func() {
				if stored {
					return
				}
				if err := store.Release(context.WithoutCancel(r.Context()), key, actorID); err != nil {
					log.Error("idempotency release failed", "error", err, "idempotency_key", key)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError {
				return
			}

			entry.StatusCode = rec.statusCode
			entry.ResponseBody = rec.body.Bytes()
			entry.ExpiresAt = time.Now().UTC().Add(idempotencyTTL)
			if err := store.Complete(context.WithoutCancel(r.Context()), entry); err != nil {
				log.Error("idempotency cache store failed", "error", err, "idempotency_key", key)
				return
			}
			stored = true
		})
	}
}

// replay answers a request whose key is already held by another record.
func replay(w http.ResponseWriter, r *http.Request, store idempotencyStore, want *repository.IdempotencyRecord) {
	log := logging.FromContext(r.Context())

	cached, err := store.Get(r.Context(), want.Key, want.ActorID)
	if err != nil {
		log.Error("idempotency cache lookup failed", "error", err, "idempotency_key", want.Key)
		handler.RespondAppError(w, handler.ErrUnavailable, nil)
		return
	}

	switch {
	case cached != nil && cached.RequestHash != want.RequestHash:
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
	case cached == nil || cached.Pending():
		handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Idempotent-Replayed", "true")
		w.WriteHeader(cached.StatusCode)
		if _, err := w.Write(cached.ResponseBody); err != nil {
			log.Error("failed to write idempotent replay", "error", err, "idempotency_key", want.Key)
		}
	}
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
