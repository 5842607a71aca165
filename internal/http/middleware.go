package apihttp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/walletcore/internal/auth"
	"github.com/example/walletcore/internal/rate"
	"github.com/example/walletcore/pkg/jsonutil"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "req_id"
	ctxKeyAPIKeyHP  ctxKey = "api_key_hp"
)

// RequestID injects a random request id into the context and the response
// header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b [8]byte
		_, _ = rand.Read(b[:])
		reqID := hex.EncodeToString(b[:])
		r = r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID))
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

// Logger emits one structured line per request.
func Logger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rlw := &respLogger{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rlw, r)
			reqID, _ := r.Context().Value(ctxKeyRequestID).(string)
			apiHP, _ := r.Context().Value(ctxKeyAPIKeyHP).(string)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rlw.status),
				zap.Int64("dur_ms", time.Since(start).Milliseconds()),
				zap.String("ip", rate.IPFromRequest(r)),
				zap.String("req_id", reqID),
				zap.String("api", apiHP),
			)
		})
	}
}

type respLogger struct {
	http.ResponseWriter
	status int
}

func (r *respLogger) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CORS allows cross-origin requests from the chat frontend.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit enforces the per-IP budget.
func RateLimit(lm *rate.LimiterMap) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lm.Allow(rate.IPFromRequest(r)) {
				jsonutil.Error(w, http.StatusTooManyRequests, "rate_limited", "slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Auth validates the X-API-Key header against the key store and leaves the
// key's hash prefix in the context for the request log.
func Auth(store auth.KeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				jsonutil.Error(w, http.StatusUnauthorized, "unauthorized", "missing api key")
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			ok, err := store.Validate(ctx, key)
			if err != nil || !ok {
				jsonutil.Error(w, http.StatusForbidden, "forbidden", "invalid or inactive api key")
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyAPIKeyHP, auth.HashPrefix(key)))
			next.ServeHTTP(w, r)
		})
	}
}
