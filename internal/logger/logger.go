package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/wolfeidau/mapdev/internal/http"
)

func Setup(dev bool) zerolog.Logger {
	return SetupWithWriter(dev, os.Stderr)
}

// SetupWithWriter configures a logger writing to w, JSON by default and a
// console format in dev mode. It also replaces the global zerolog/log logger,
// which the asset and static copy packages log through.
func SetupWithWriter(dev bool, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	log.Logger = logger

	return logger
}

// Requests attaches a request scoped logger to the context and logs each
// completed request. It reads the request ID and client IP set by the
// middleware in internal/http, so it must run inside them.
func Requests(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			ctx := r.Context()
			reqLogger := logger.With().
				Str("request_id", httpmiddleware.RequestIDFromContext(ctx)).
				Str("client_ip", httpmiddleware.ClientIPFromContext(ctx)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			ctx = reqLogger.WithContext(ctx)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			ev := reqLogger.Debug()
			if sw.status >= http.StatusInternalServerError {
				ev = reqLogger.Warn()
			}
			ev.Int("status", sw.status).
				Int64("bytes", sw.bytes).
				Dur("duration", time.Since(started)).
				Msg("http request")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach Flush on the underlying writer,
// which the reverse proxy needs for streamed responses.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
