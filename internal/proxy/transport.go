package proxy

import (
	"crypto/tls"
	"net/http"
)

// NewTransport returns the base upstream transport for a rule. Each rule gets
// its own transport so TLS relaxation never leaks into other upstreams.
func NewTransport(rule Rule) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()

	if rule.Insecure {
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec
		}
	}

	if rule.Timeout > 0 {
		t.ResponseHeaderTimeout = rule.Timeout
	}

	return t
}
