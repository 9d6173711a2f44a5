package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/mapdev/internal/client"
	"github.com/wolfeidau/mapdev/internal/telemetry"
)

type handlerOptions struct {
	cacheDir string
	tracing  bool
}

type HandlerOption func(*handlerOptions)

// WithCacheDir sets the directory used by rules with disk caching.
func WithCacheDir(dir string) HandlerOption {
	return func(o *handlerOptions) {
		o.cacheDir = dir
	}
}

// WithTracing wraps upstream transports with OpenTelemetry instrumentation.
func WithTracing(enabled bool) HandlerOption {
	return func(o *handlerOptions) {
		o.tracing = enabled
	}
}

// Handler forwards requests matching a rule to its upstream and hands every
// other request, untouched, to the fallback handler.
type Handler struct {
	router   *Router
	fallback http.Handler
	proxies  []*httputil.ReverseProxy
}

// NewHandler builds one reverse proxy per rule in router.
func NewHandler(router *Router, fallback http.Handler, opts ...HandlerOption) (*Handler, error) {
	if router == nil {
		return nil, ErrNoRules
	}
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}

	o := &handlerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	h := &Handler{
		router:   router,
		fallback: fallback,
		proxies:  make([]*httputil.ReverseProxy, len(router.rules)),
	}

	for i, rule := range router.rules {
		rt, err := upstreamTransport(rule, o)
		if err != nil {
			return nil, err
		}
		h.proxies[i] = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				rewriteRequest(pr, rule)
			},
			Transport:    rt,
			ErrorHandler: errorHandler(rule),
		}
	}

	return h, nil
}

func upstreamTransport(rule Rule, o *handlerOptions) (http.RoundTripper, error) {
	var rt http.RoundTripper = NewTransport(rule)

	switch rule.Cache {
	case CacheMemory:
		rt = client.NewCachingTransport(rt, "")
	case CacheDisk:
		if o.cacheDir == "" {
			return nil, fmt.Errorf("prefix %q uses disk cache but no cache directory is configured", rule.Prefix)
		}
		rt = client.NewCachingTransport(rt, o.cacheDir)
	}

	if o.tracing {
		rt = otelhttp.NewTransport(rt)
	}

	return rt, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics := telemetry.GetMetrics()

	idx, ok := h.router.matchIndex(r.URL.Path)
	if !ok {
		metrics.PassThroughTotal.Add(r.Context(), 1)
		h.fallback.ServeHTTP(w, r)
		return
	}

	rule := h.router.rules[idx]
	attrs := metric.WithAttributes(attribute.String("prefix", rule.Prefix))
	started := time.Now()

	zerolog.Ctx(r.Context()).Debug().
		Str("prefix", rule.Prefix).
		Str("upstream", rule.Origin()).
		Str("path", rule.Rewrite(r.URL.Path)).
		Msg("Proxying request")

	metrics.ProxyRequestsTotal.Add(r.Context(), 1, attrs)
	h.proxies[idx].ServeHTTP(w, r)
	metrics.ProxyDuration.Record(r.Context(), float64(time.Since(started).Milliseconds()), attrs)
}

func rewriteRequest(pr *httputil.ProxyRequest, rule Rule) {
	target := rule.Target

	path, rawPath := rewriteURLPath(pr.In.URL, rule.StripPrefix)

	pr.Out.URL.Scheme = target.Scheme
	pr.Out.URL.Host = target.Host
	pr.Out.URL.Path, pr.Out.URL.RawPath = joinURLPath(&target, path, rawPath)
	pr.Out.URL.RawQuery = pr.In.URL.RawQuery

	pr.SetXForwarded()

	if rule.ChangeOrigin {
		pr.Out.Host = target.Host
		if pr.Out.Header.Get("Origin") != "" {
			pr.Out.Header.Set("Origin", rule.Origin())
		}
		return
	}
	pr.Out.Host = pr.In.Host
}

// rewriteURLPath strips prefix from the decoded and raw path. An empty result
// becomes "/" so the upstream always sees an absolute path.
func rewriteURLPath(u *url.URL, prefix string) (string, string) {
	path := StripPrefix(u.Path, prefix)

	rawPath := ""
	if u.RawPath != "" && strings.HasPrefix(u.RawPath, prefix) {
		rawPath = u.RawPath[len(prefix):]
		if rawPath == "" {
			rawPath = "/"
		}
	}

	if path == "" {
		path = "/"
	}

	return path, rawPath
}

func joinURLPath(base *url.URL, path, rawPath string) (string, string) {
	b := &url.URL{Path: path, RawPath: rawPath}
	if base.RawPath == "" && b.RawPath == "" {
		return singleJoiningSlash(base.Path, b.Path), ""
	}

	apath := base.EscapedPath()
	bpath := b.EscapedPath()

	aslash := strings.HasSuffix(apath, "/")
	bslash := strings.HasPrefix(bpath, "/")

	switch {
	case aslash && bslash:
		return base.Path + b.Path[1:], apath + bpath[1:]
	case !aslash && !bslash:
		return base.Path + "/" + b.Path, apath + "/" + bpath
	}
	return base.Path + b.Path, apath + bpath
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

func errorHandler(rule Rule) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		ctx := r.Context()
		log := zerolog.Ctx(ctx)

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			log.Debug().Err(err).Str("prefix", rule.Prefix).Msg("Client went away before upstream responded")
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		status := GatewayStatus(err)

		telemetry.GetMetrics().UpstreamErrorsTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
			attribute.String("prefix", rule.Prefix),
			attribute.Int("status", status),
		))

		log.Error().
			Err(err).
			Str("prefix", rule.Prefix).
			Str("upstream", rule.Origin()).
			Int("status", status).
			Msg("Upstream request failed")

		w.WriteHeader(status)
	}
}

// GatewayStatus maps an upstream transport error to the status returned to the client.
func GatewayStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
