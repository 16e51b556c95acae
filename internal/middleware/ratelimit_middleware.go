package middleware

import (
	"net/http"
	"strconv"
	"time"

	"notevault-server/internal/metrics"
	"notevault-server/internal/ratelimit"
	"notevault-server/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RateLimitMiddleware counts requests per client IP, method and route
// template. It must be installed with Router.Use so the matched route is known.
// Forwarding headers only count when the peer is one of proxies.
func RateLimitMiddleware(policy *ratelimit.Policy, limiter ratelimit.Limiter, proxies *TrustedProxies, m *metrics.Metrics, logger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeTemplate(r)

			rule, ok := policy.Resolve(r.Method, route)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := proxies.ClientIP(r) + "|" + r.Method + "|" + route
			info, err := limiter.Allow(r.Context(), key, rule.Limit, rule.Window)
			if err != nil {
				logger.Errorw("Rate limiter unavailable, allowing request", "route", route, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

			if info.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if policy.IsBot(r.UserAgent()) {
				if m != nil {
					m.RateLimited.WithLabelValues(route, "bot").Inc()
				}
				response.Forbidden(w, policy.BotMessage)
				return
			}

			if m != nil {
				m.RateLimited.WithLabelValues(route, "limit").Inc()
			}
			retryAfter := int(time.Until(info.ResetTime).Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			response.TooManyRequests(w, rule.Message)
		})
	}
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}
	return tpl
}
