package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jingle_gift"

var (
	// Registry holds every collector the service exposes on /metrics.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"method", "path"},
	)

	imageAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "imagegen",
			Name:      "attempts_total",
			Help:      "Image provider attempts by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	imageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "imagegen",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of image provider attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"provider"},
	)

	greetings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "greeting",
			Name:      "generations_total",
			Help:      "Greeting generations by outcome (generated, fallback).",
		},
		[]string{"outcome"},
	)

	mailboxOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "operations_total",
			Help:      "Mailbox operations by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		imageAttempts,
		imageDuration,
		greetings,
		mailboxOps,
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func RecordImageAttempt(provider string, ok bool, d time.Duration) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	imageAttempts.WithLabelValues(provider, outcome).Inc()
	imageDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordGreeting(generated bool) {
	outcome := "fallback"
	if generated {
		outcome = "generated"
	}
	greetings.WithLabelValues(outcome).Inc()
}

func RecordMailbox(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	mailboxOps.WithLabelValues(action, outcome).Inc()
}
