package notion

import (
	"net/http"
	"net/url"
)

// hostRewriter sends every request to target's scheme and host, keeping the
// path. It lets the client run against a proxy or a local test server.
type hostRewriter struct {
	target *url.URL
	next   http.RoundTripper
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = h.target.Scheme
	out.URL.Host = h.target.Host
	out.Host = h.target.Host
	return h.next.RoundTrip(out)
}
