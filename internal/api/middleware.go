// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/themekit/internal/api/apiutil"
	"github.com/codr1/themekit/internal/api/auth"
	"github.com/codr1/themekit/internal/api/authz"
	"github.com/codr1/themekit/internal/ratelimit"
)

type Middleware func(http.Handler) http.Handler

type requestIDKey struct{}

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

// RequestIDFromContext returns the id assigned by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", RequestIDFromContext(r.Context())).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithAuth attaches the caller identity. Signed tokens are tried first, then a Clerk
// session when Clerk is configured. Bad credentials leave the request anonymous.
func WithAuth(authenticator *auth.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.Ctx(r.Context())

			var user *authz.AuthUser
			if authenticator != nil {
				tokenUser, err := authenticator.UserFromRequest(r)
				if err != nil {
					logger.Warn().Err(err).Msg("Failed to verify auth token")
				}
				user = tokenUser
			}

			ctx := r.Context()
			if user == nil && auth.ClerkEnabled() {
				claims, err := auth.VerifyClerkSession(r)
				if err == nil && claims != nil {
					ctx = clerk.ContextWithSessionClaims(ctx, claims)
					user = auth.UserFromClerkClaims(claims)
				}
			}

			if user != nil {
				ctx = authz.ContextWithUser(ctx, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrivilegedAuth rejects requests from callers who may not change the global theme.
func WithPrivilegedAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := authz.RequirePrivileged(r.Context()); err != nil {
			apiutil.WriteAuthzError(w, r, err, "Theme admin access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithWriteLimit throttles non-GET requests per caller identity and client IP.
// A nil limiter disables throttling.
func WithWriteLimit(limiter *ratelimit.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := authz.ThemeKey(authz.UserFromContext(r.Context()))
			ip := ratelimit.GetClientIP(r, trustProxy)
			result := limiter.Allow(key, ip)
			if !result.Allowed {
				ratelimit.LogRateLimitExceeded(log.Ctx(r.Context()), key, ip, result)
				seconds := int(result.RetryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, "Too many theme updates", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}
