package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duoquiz/duo-server/internal/audit"
	apperrors "github.com/duoquiz/duo-server/internal/errors"
	"github.com/duoquiz/duo-server/internal/service"
)

const rateLimitWindow = time.Minute

type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (service.RateLimitResult, error)
}

// KeyFunc derives the bucket for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ByUser buckets authenticated requests per user id.
func ByUser(prefix string) KeyFunc {
	return func(r *http.Request) string {
		userID := GetUserID(r.Context())
		if userID == "" {
			return ""
		}
		return prefix + ":user:" + userID
	}
}

// ByIP buckets requests per client address. Run after chi's RealIP.
func ByIP(prefix string) KeyFunc {
	return func(r *http.Request) string {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return prefix + ":ip:" + host
	}
}

type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	keyFunc KeyFunc
	// failOpen lets requests through when Redis is unavailable.
	failOpen bool
}

func NewRateLimitMiddleware(limiter Limiter, limit int, keyFunc KeyFunc, failOpen bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:  limiter,
		limit:    limit,
		keyFunc:  keyFunc,
		failOpen: failOpen,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.keyFunc(r)
		if key == "" || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.limiter.CheckLimit(r.Context(), key, m.limit, rateLimitWindow)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Bool("failOpen", m.failOpen).Msg("rate limit check failed")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			secondsLeft := int(time.Until(result.ResetAt).Seconds()) + 1
			if secondsLeft < 1 {
				secondsLeft = 1
			}
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				UserID:  GetUserID(r.Context()),
				Details: map[string]any{"key": key, "path": r.URL.Path},
			})
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
