// Package httpapi is the gateway's HTTP layer: the middleware pipeline
// (authentication, rate limiting), the local token lifecycle endpoints, and
// the dispatcher that proxies everything else to the domain services.
package httpapi

import (
	"net/http"
	"time"

	"edugate.org/internal/obs"
	"edugate.org/internal/ratelimit"
	"edugate.org/internal/router"
	"edugate.org/internal/token"
)

// Options wires the API's collaborators.
type Options struct {
	Tokens  *token.Service
	Limiter *ratelimit.Limiter
	Router  *router.Router
	Probe   ReadyProbe
	Version string

	// RateStrategy selects the quota key: "user", "ip", "mixed", or
	// anything else for a single global bucket.
	RateStrategy string

	// AuthExclude lists path prefixes that bypass authentication.
	AuthExclude []string

	// Client performs downstream calls; a timeout-bounded default is used
	// when nil.
	Client *http.Client
}

// API is the HTTP layer of the gateway.
type API struct {
	mux     *http.ServeMux
	tokens  *token.Service
	limiter *ratelimit.Limiter
	router  *router.Router
	probe   ReadyProbe
	version string

	rateStrategy string
	authExclude  []string
	client       *http.Client
	stopGuard    func()
}

// New assembles the gateway handler tree.
func New(opts Options) *API {
	a := &API{
		mux:          http.NewServeMux(),
		tokens:       opts.Tokens,
		limiter:      opts.Limiter,
		router:       opts.Router,
		probe:        opts.Probe,
		version:      opts.Version,
		rateStrategy: opts.RateStrategy,
		authExclude:  opts.AuthExclude,
		client:       opts.Client,
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 30 * time.Second}
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// Token lifecycle stays on the gateway; the mint and refresh endpoints
	// get a per-client burst guard on top of the shared quota.
	guard, stopGuard := TokenBucket(5, 10)
	a.stopGuard = stopGuard
	a.mux.Handle("/api/v1/auth/token", guard(http.HandlerFunc(a.handleAuthToken)))
	a.mux.Handle("/api/v1/auth/refresh", guard(http.HandlerFunc(a.handleAuthRefresh)))
	a.mux.HandleFunc("/api/v1/auth/logout", a.handleAuthLogout)

	// Everything else is resolved against the route table and proxied.
	a.mux.HandleFunc("/", a.dispatch)

	return a
}

// Handler returns the fully wrapped handler: metrics and logging on the
// outside, then authentication, then rate limiting, then the mux.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withRateLimit(h)
	h = a.withAuth(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// Close releases background resources held by the handler tree.
func (a *API) Close() {
	if a.stopGuard != nil {
		a.stopGuard()
	}
}
