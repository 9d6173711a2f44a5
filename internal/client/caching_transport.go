package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingTransport wraps base with an RFC 7234 response cache. Tile servers
// send long-lived Cache-Control headers, so repeated map pans hit the cache
// instead of the upstream. An empty cacheDir keeps the cache in memory.
func NewCachingTransport(base http.RoundTripper, cacheDir string) http.RoundTripper {
	var cache httpcache.Cache
	if cacheDir == "" {
		cache = httpcache.NewMemoryCache()
	} else {
		cache = diskcache.New(cacheDir)
	}

	t := httpcache.NewTransport(cache)
	t.Transport = base
	return t
}
