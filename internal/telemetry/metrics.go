package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/mapdev"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Proxy metrics
	ProxyRequestsTotal  metric.Int64Counter
	PassThroughTotal    metric.Int64Counter
	UpstreamErrorsTotal metric.Int64Counter
	ProxyDuration       metric.Float64Histogram

	// Asset metrics
	AssetBuildsTotal      metric.Int64Counter
	AssetBuildErrorsTotal metric.Int64Counter
	AssetBuildDuration    metric.Float64Histogram

	// Static copy metrics
	StaticCopyTotal       metric.Int64Counter
	StaticCopyErrorsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments come from the global meter provider and are no-ops until
// InitTelemetry installs an exporting provider.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Proxy metrics
	m.ProxyRequestsTotal, _ = meter.Int64Counter(
		"mapdev.proxy.requests.total",
		metric.WithDescription("Total number of requests forwarded to an upstream"),
		metric.WithUnit("{request}"),
	)

	m.PassThroughTotal, _ = meter.Int64Counter(
		"mapdev.proxy.passthrough.total",
		metric.WithDescription("Total number of requests that matched no proxy rule"),
		metric.WithUnit("{request}"),
	)

	m.UpstreamErrorsTotal, _ = meter.Int64Counter(
		"mapdev.proxy.upstream_errors.total",
		metric.WithDescription("Total number of failed upstream requests"),
		metric.WithUnit("{error}"),
	)

	m.ProxyDuration, _ = meter.Float64Histogram(
		"mapdev.proxy.duration",
		metric.WithDescription("Duration of proxied requests"),
		metric.WithUnit("ms"),
	)

	// Asset metrics
	m.AssetBuildsTotal, _ = meter.Int64Counter(
		"mapdev.assets.builds.total",
		metric.WithDescription("Total number of asset builds"),
		metric.WithUnit("{build}"),
	)

	m.AssetBuildErrorsTotal, _ = meter.Int64Counter(
		"mapdev.assets.build_errors.total",
		metric.WithDescription("Total number of asset builds that reported errors"),
		metric.WithUnit("{build}"),
	)

	m.AssetBuildDuration, _ = meter.Float64Histogram(
		"mapdev.assets.build.duration",
		metric.WithDescription("Duration of asset builds"),
		metric.WithUnit("ms"),
	)

	// Static copy metrics
	m.StaticCopyTotal, _ = meter.Int64Counter(
		"mapdev.static_copy.total",
		metric.WithDescription("Total number of static copy target runs"),
		metric.WithUnit("{copy}"),
	)

	m.StaticCopyErrorsTotal, _ = meter.Int64Counter(
		"mapdev.static_copy.errors.total",
		metric.WithDescription("Total number of failed static copy target runs"),
		metric.WithUnit("{error}"),
	)

	return m
}
