package httpserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
	"github.com/yndnr/tokvault-go/internal/server/httpserver/handler"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
	"github.com/yndnr/tokvault-go/internal/telemetry/metric"
)

// Request headers.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIKeyID  = "X-API-Key-ID"
	HeaderAPIKey    = "X-API-Key"
	HeaderCaller    = "X-Caller"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
)

type contextKey string

// ContextKeyAPIKey is the context key for the authenticated API key.
const ContextKeyAPIKey contextKey = "api_key"

// Middleware wraps an http.Handler with additional functionality.
type Middleware = func(http.Handler) http.Handler

// MiddlewareConfig holds configuration for middlewares.
type MiddlewareConfig struct {
	Auth *service.AuthService
	// Signatures verifies X-Caller; nil trusts the header as is.
	Signatures *service.SignatureService
	Logger     logger.Logger
	// DisableAuth lets every request through without an API key.
	DisableAuth bool
}

// RequestID adds a request ID to each request, reusing the client's.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" || len(requestID) > 64 {
				requestID = "req-" + ulid.Make().String()
			}
			w.Header().Set(HeaderRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(lg logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					lg.WithContext(r.Context()).Error("panic recovered", "error", rec, "path", r.URL.Path)
					handler.WriteError(w, r, http.StatusInternalServerError,
						domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs every request once it completes, with the route pattern,
// status and the API key that made it.
func Audit(lg logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", getClientIP(r),
			}
			if key := GetAPIKeyFromContext(r.Context()); key != nil {
				attrs = append(attrs, "key_id", key.KeyID, "role", string(key.Role))
			}
			if caller, ok := handler.CallerFromContext(r.Context()); ok {
				attrs = append(attrs, "caller", caller.String())
			}

			l := lg.WithContext(r.Context())
			switch {
			case wrapped.statusCode >= 500:
				l.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				l.Warn("request completed with client error", attrs...)
			default:
				l.Info("request completed", attrs...)
			}
		})
	}
}

// Metrics records request counts and latency by route pattern.
func Metrics(reg *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			reg.ObserveRequest(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}

// MaxBody caps request bodies at n bytes; n <= 0 disables the cap.
func MaxBody(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits each client address to rps requests per second.
func RateLimit(rps int) Middleware {
	limiters := service.NewRateLimiterRegistry()
	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.GetOrCreate(getClientIP(r), rps).Allow() {
				w.Header().Set("Retry-After", "1")
				handler.WriteError(w, r, http.StatusTooManyRequests,
					domain.ErrRateLimited.Code, domain.ErrRateLimited.Message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate validates the API key and applies its rate limit.
func Authenticate(cfg *MiddlewareConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.DisableAuth {
				next.ServeHTTP(w, r)
				return
			}
			keyID, keySecret := extractAPIKeyCredentials(r)
			key, err := cfg.Auth.ValidateAPIKey(r.Context(), &service.ValidateAPIKeyRequest{
				KeyID:     keyID,
				KeySecret: keySecret,
				ClientIP:  getClientIP(r),
			})
			if err != nil {
				handler.WriteDomainError(w, r, cfg.Logger, err)
				return
			}
			if err := cfg.Auth.CheckRateLimit(r.Context(), key.KeyID, key.RateLimit); err != nil {
				w.Header().Set("Retry-After", "1")
				handler.WriteDomainError(w, r, cfg.Logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyAPIKey, key)
			ctx = logger.WithAttrs(ctx, "key_id", key.KeyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects keys whose role lacks perm.
func RequirePermission(cfg *MiddlewareConfig, perm domain.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.DisableAuth {
				next.ServeHTTP(w, r)
				return
			}
			key := GetAPIKeyFromContext(r.Context())
			if key == nil {
				handler.WriteDomainError(w, r, cfg.Logger, domain.ErrAPIKeyMissing)
				return
			}
			if err := cfg.Auth.CheckPermission(key, perm); err != nil {
				handler.WriteDomainError(w, r, cfg.Logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Caller resolves the acting identity from X-Caller. With signatures
// enabled the header must come with an ed25519 signature over the request
// (see service.SigningMessage) and a fresh nonce.
func Caller(cfg *MiddlewareConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderCaller)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Signatures == nil {
				caller, err := domain.ParseIdentity("caller", raw)
				if err != nil {
					handler.WriteDomainError(w, r, cfg.Logger, err)
					return
				}
				next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.WriteError(w, r, http.StatusRequestEntityTooLarge,
					domain.ErrBadRequest.Code, "request body too large", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
			if err != nil {
				handler.WriteDomainError(w, r, cfg.Logger,
					domain.ErrTimestampSkew.WithDetails("missing or malformed "+HeaderTimestamp))
				return
			}
			caller, err := cfg.Signatures.Verify(r.Context(), &service.VerifyRequest{
				Caller:    raw,
				Signature: r.Header.Get(HeaderSignature),
				Timestamp: ts,
				Nonce:     r.Header.Get(HeaderNonce),
				Method:    r.Method,
				Path:      r.URL.Path,
				Body:      body,
			})
			if err != nil {
				handler.WriteDomainError(w, r, cfg.Logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
		})
	}
}

func withCaller(ctx context.Context, caller solana.PublicKey) context.Context {
	return logger.WithAttrs(handler.WithCaller(ctx, caller), "caller", caller.String())
}

// extractAPIKeyCredentials extracts API key credentials from request headers.
// It supports two formats:
// 1. Authorization: Bearer <key_id>:<key_secret>
// 2. X-API-Key-ID + X-API-Key headers
func extractAPIKeyCredentials(r *http.Request) (keyID, keySecret string) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		parts := strings.SplitN(strings.TrimPrefix(auth, "Bearer "), ":", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
	}
	return r.Header.Get(HeaderAPIKeyID), r.Header.Get(HeaderAPIKey)
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// GetAPIKeyFromContext retrieves the authenticated API key from context.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	if apiKey, ok := ctx.Value(ContextKeyAPIKey).(*domain.APIKey); ok {
		return apiKey
	}
	return nil
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// net.SplitHostPort handles IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
