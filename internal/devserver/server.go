package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpmiddleware "github.com/wolfeidau/mapdev/internal/http"
	"github.com/wolfeidau/mapdev/internal/logger"
	"github.com/wolfeidau/mapdev/internal/proxy"
)

// Options configures the dev server handler chain.
type Options struct {
	// Local serves everything no proxy rule claims.
	Local http.Handler
	// Router is the proxy rule table, nil disables proxying.
	Router       *proxy.Router
	ProxyOptions []proxy.HandlerOption
	CORSOrigins  []string
	Tracing      bool
	Logger       zerolog.Logger
}

// NewHandler wires the local handler behind the proxy router and wraps the
// result with CORS, request logging, client IP, request ID and, optionally,
// tracing middleware. Only local responses are compressed, proxied responses
// keep the upstream encoding.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Local == nil {
		return nil, errors.New("local handler is required")
	}

	var handler http.Handler = gzhttp.GzipHandler(opts.Local)

	if opts.Router != nil {
		proxyHandler, err := proxy.NewHandler(opts.Router, handler,
			append(opts.ProxyOptions, proxy.WithTracing(opts.Tracing))...)
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy handler: %w", err)
		}
		handler = proxyHandler
	}

	if len(opts.CORSOrigins) > 0 {
		handler = withCORS(opts.CORSOrigins, handler)
	}

	handler = logger.Requests(opts.Logger)(handler)
	handler = httpmiddleware.ClientIPMiddleware()(handler)
	handler = httpmiddleware.RequestIDMiddleware()(handler)

	if opts.Tracing {
		handler = otelhttp.NewHandler(handler, "mapdev")
	}

	return handler, nil
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}

// NewHTTPServer returns a server with timeouts suited to a local dev server.
// Write timeout is left long since tile and asset responses can be large.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    64 * 1024, // 64KiB
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting up to shutdownTimeout for in-flight requests.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
