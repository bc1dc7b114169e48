package core

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"farmadvisory/internal/types"
)

const rateLimitWindow = time.Minute

// RateLimit returns a limiter enforcing Config.Server.RateLimitPerMinute per
// client IP. The key is the connection address; forwarding headers are only
// honoured when TRUST_PROXY_HEADERS mounts chi's RealIP ahead of it. A limit
// of 0 disables the limiter.
func (s *Server) RateLimit() func(http.Handler) http.Handler {
	limit := s.Config.Server.RateLimitPerMinute
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(limit, rateLimitWindow,
		httprate.WithKeyFuncs(clientIPKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.Logger.Warn("rate limit exceeded",
				slog.String("client_ip", clientIP(r)),
				slog.String("path", r.URL.Path),
			)
			if w.Header().Get("Retry-After") == "" {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			}
			Error(w, r, types.NewAppError(types.ErrCodeRateLimited, "rate limit exceeded, retry after the reset time", nil))
		}),
	)
}

func clientIPKey(r *http.Request) (string, error) {
	return clientIP(r), nil
}

// clientIP is RemoteAddr without its port. RealIP leaves a bare address,
// which is returned as is.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
