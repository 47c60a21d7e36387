package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ruangai/backend/internal/ratelimit"
)

// PerIP rejects requests beyond limit per window for one client IP, before
// the handler (and any external call it would make) runs. The limiter is a
// best-effort collaborator: if the store is unreachable we log and let the
// request through rather than take the endpoint down.
func PerIP(limiter *ratelimit.Limiter, name string, limit int64, window time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := name + ":" + clientIP(r)
			allowed, err := limiter.TryAcquire(r.Context(), key, limit, window)
			if err != nil {
				log.Warn("rate limiter unavailable", "endpoint", name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"Too many requests. Please try again later or purchase credits."}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
