package metrics

import (
	"orientia/backend/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestCounter cuenta el total de requests HTTP procesados.
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration observa la duración de los requests HTTP.
	HTTPRequestDuration *prometheus.HistogramVec

	// RateLimitedCounter cuenta requests rechazados por rate limiting.
	RateLimitedCounter *prometheus.CounterVec

	// EmailSendCounter cuenta los envíos de email por resultado.
	EmailSendCounter *prometheus.CounterVec

	// AppInfo expone información sobre la aplicación.
	AppInfo *prometheus.GaugeVec
)

func init() {
	HTTPRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orientia_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orientia_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimitedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orientia_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
		[]string{"endpoint"},
	)

	EmailSendCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orientia_email_sends_total",
			Help: "Total number of outbound email sends by result.",
		},
		[]string{"kind", "result"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orientia_app_info",
			Help: "Information about the Orientia backend.",
		},
		[]string{"version"},
	)
	AppInfo.With(prometheus.Labels{"version": config.Cfg.AppVersion}).Set(1)
}
