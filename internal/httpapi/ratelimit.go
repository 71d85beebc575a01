package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"edugate.org/internal/obs"
	"edugate.org/internal/ratelimit"
	"edugate.org/internal/token"
)

// withRateLimit enforces the per-key quota and annotates every response
// with the limit headers, on the allowed path as well as the denied one.
func (a *API) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := a.rateKey(r)

		res, err := a.limiter.Consume(r.Context(), key)
		if err != nil {
			// A broken counter store must not take the gateway down with
			// it: log and let the request through. The limit header still
			// goes out; only the remaining count is unknowable here.
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(a.limiter.Limit()))
			obs.LogRequest(map[string]any{
				"level":      "error",
				"msg":        "rate_limiter_unavailable",
				"error":      err.Error(),
				"request_id": RequestIDFromContext(r.Context()),
			})
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := retryAfterSeconds(res)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			obs.ObserveRateLimited(a.rateStrategy)
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "request quota exhausted",
				"retry_after": retry,
				"request_id":  RequestIDFromContext(r.Context()),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateKey computes the quota bucket per the configured strategy. "user"
// and "mixed" prefer the authenticated identity and fall back to the
// caller's network address; "ip" always uses the address; anything else is
// one global bucket.
func (a *API) rateKey(r *http.Request) ratelimit.Key {
	switch a.rateStrategy {
	case "user", "mixed":
		if identity, ok := token.IdentityFromContext(r.Context()); ok {
			return ratelimit.UserKey(identity.ID)
		}
		return ratelimit.IPKey(clientIP(r))
	case "ip":
		return ratelimit.IPKey(clientIP(r))
	default:
		return ratelimit.GlobalKey()
	}
}

func retryAfterSeconds(res ratelimit.Result) int {
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
