package httpapi

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"edugate.org/internal/audit"
	"edugate.org/internal/obs"
	"edugate.org/internal/router"
)

// Hop-by-hop headers per RFC 7230 §6.1; never forwarded in either
// direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// dispatch resolves the inbound request against the route table and proxies
// it to the downstream service, relaying the response unmodified. The
// gateway never retries; resolution and transport failures map to 404/502.
func (a *API) dispatch(w http.ResponseWriter, r *http.Request) {
	endpoint, err := a.router.Resolve(r.Method, r.URL.Path)
	if err != nil {
		a.dispatchError(w, r, err)
		return
	}

	outURL := endpoint.URL
	if r.URL.RawQuery != "" {
		outURL += "?" + r.URL.RawQuery
	}

	// The inbound request's context carries its cancellation: if the
	// caller goes away the downstream call is abandoned with it.
	out, err := http.NewRequestWithContext(r.Context(), r.Method, outURL, r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "downstream_unavailable", "downstream request could not be built")
		return
	}
	copyProxyHeaders(out.Header, r.Header)
	appendForwardedFor(out.Header, r)
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		out.Header.Set("X-Request-Id", rid)
	}

	resp, err := a.client.Do(out)
	if err != nil {
		obs.ObserveProxy(endpoint.Service, http.StatusBadGateway)
		_ = audit.LogEvent(r.Context(), "gateway.proxy.error", map[string]any{
			"service": endpoint.Service,
			"method":  r.Method,
			"path":    r.URL.Path,
			"error":   err.Error(),
		})
		writeError(w, r, http.StatusBadGateway, "downstream_unavailable", "downstream service unavailable")
		return
	}
	defer resp.Body.Close()

	obs.ObserveProxy(endpoint.Service, resp.StatusCode)

	header := w.Header()
	for name, values := range resp.Header {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (a *API) dispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, router.ErrRouteNotFound):
		writeError(w, r, http.StatusNotFound, "route_not_found", "no route for this path")
	case errors.Is(err, router.ErrServiceNotFound):
		// Configuration error: the route table names a service the
		// registry does not know.
		obs.LogRequest(map[string]any{
			"level":      "error",
			"msg":        "service_not_registered",
			"error":      err.Error(),
			"request_id": RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusBadGateway, "service_not_found", "downstream service is not registered")
	default:
		writeError(w, r, http.StatusBadGateway, "downstream_unavailable", "downstream service unavailable")
	}
}

func copyProxyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// appendForwardedFor adds the immediate peer to the forwarding chain. The
// inbound X-Forwarded-For entries were already copied over, so the peer's
// address goes at the end.
func appendForwardedFor(h http.Header, r *http.Request) {
	ip := remoteHost(r)
	if ip == "" {
		return
	}
	if prior := h.Get("X-Forwarded-For"); prior != "" {
		h.Set("X-Forwarded-For", prior+", "+ip)
		return
	}
	h.Set("X-Forwarded-For", ip)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
