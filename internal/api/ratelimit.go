package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// rateLimited is a huma operation middleware that throttles callers by IP
// and records the IP for session bookkeeping.
func (s *Server) rateLimited(ctx huma.Context, next func(huma.Context)) {
	ip := remoteIP(ctx)

	if delay := s.authRateLimiter.Reserve(ip); delay > 0 {
		s.logger.Warn("Rate limit exceeded",
			"ip", ip,
			"path", ctx.URL().Path,
		)
		ctx.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	next(huma.WithValue(ctx, clientIPKey, ip))
}

// remoteIP extracts the client IP. chi's RealIP middleware has already
// folded X-Forwarded-For and X-Real-IP into RemoteAddr.
func remoteIP(ctx huma.Context) string {
	addr := ctx.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}
