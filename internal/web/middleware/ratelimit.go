package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/web/auth"
	webcontext "github.com/conduit-lang/waypoint/internal/web/context"
	"github.com/conduit-lang/waypoint/internal/web/ratelimit"
	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// RateLimitConfig configures RateLimit
type RateLimitConfig struct {
	Limiter ratelimit.Limiter

	// Key picks the counter for a request; empty keys are not limited.
	// Defaults to ClientIP.
	Key func(r *http.Request) string

	// FailOpen lets requests through when the limiter fails
	FailOpen bool

	Logger *zap.Logger
}

// RateLimit rejects requests over the limit with a 429 error carrying the
// retry delay. Limit headers are set on every counted request.
func RateLimit(config RateLimitConfig) metadata.MiddlewareRef {
	key := config.Key
	if key == nil {
		key = ClientIP
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return metadata.Use("rateLimit", func(w http.ResponseWriter, r *http.Request, next metadata.NextFunc) error {
		k := key(r)
		if k == "" {
			next(nil)
			return nil
		}

		info, err := config.Limiter.Allow(r.Context(), k)
		if err != nil {
			if config.FailOpen {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next(nil)
				return nil
			}
			return err
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

		if !info.Allowed {
			retry := max(int(time.Until(info.ResetAt).Round(time.Second)/time.Second), 1)
			h.Set("Retry-After", strconv.Itoa(retry))
			return response.TooManyRequests("rate limit exceeded").
				WithPayload(map[string]any{"retry_after": retry})
		}
		next(nil)
		return nil
	})
}

// ClientIP keys requests by the first X-Forwarded-For address, then
// X-Real-IP, then the connection address
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// PrincipalOrIP keys authenticated requests by user and the rest by address
func PrincipalOrIP(r *http.Request) string {
	if user := webcontext.GetCurrentUser(r.Context()); user != "" {
		return "user:" + user
	}
	return "ip:" + ClientIP(r)
}

// TokenOrIP keys requests by the subject of a valid bearer token, so global
// limits can count per user before any action-level Bearer has run. Anything
// else falls back to PrincipalOrIP.
func TokenOrIP(tokens *auth.TokenService) func(r *http.Request) string {
	return func(r *http.Request) string {
		if webcontext.GetCurrentUser(r.Context()) == "" {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
				if p, err := tokens.Verify(token); err == nil && p.ID != "" {
					return "user:" + p.ID
				}
			}
		}
		return PrincipalOrIP(r)
	}
}
