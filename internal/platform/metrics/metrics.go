package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	LoginsStarted        prometheus.Counter
	LoginsCompleted      prometheus.Counter
	LoginsFailed         prometheus.Counter
	TokenRefreshes       prometheus.Counter
	TokenRefreshFailures prometheus.Counter
	FormsCreated         prometheus.Counter
	SubmissionsAccepted  prometheus.Counter
	SubmissionsRejected  prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_logins_started_total",
			Help: "Total number of PKCE login attempts started",
		}),
		LoginsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_logins_completed_total",
			Help: "Total number of logins completed via the OAuth callback",
		}),
		LoginsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_logins_failed_total",
			Help: "Total number of logins that failed at the callback",
		}),
		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_token_refreshes_total",
			Help: "Total number of access token refreshes performed",
		}),
		TokenRefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_token_refresh_failures_total",
			Help: "Total number of refresh exchanges rejected upstream",
		}),
		FormsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_forms_created_total",
			Help: "Total number of forms created",
		}),
		SubmissionsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_submissions_accepted_total",
			Help: "Total number of form submissions forwarded to the remote store",
		}),
		SubmissionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "formbridge_submissions_rejected_total",
			Help: "Total number of form submissions rejected by validation",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formbridge_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// The increment helpers are nil-safe so tests can run without a registry.

func (m *Metrics) IncLoginsStarted() {
	if m != nil {
		m.LoginsStarted.Inc()
	}
}

func (m *Metrics) IncLoginsCompleted() {
	if m != nil {
		m.LoginsCompleted.Inc()
	}
}

func (m *Metrics) IncLoginsFailed() {
	if m != nil {
		m.LoginsFailed.Inc()
	}
}

func (m *Metrics) IncTokenRefreshes() {
	if m != nil {
		m.TokenRefreshes.Inc()
	}
}

func (m *Metrics) IncTokenRefreshFailures() {
	if m != nil {
		m.TokenRefreshFailures.Inc()
	}
}

func (m *Metrics) IncFormsCreated() {
	if m != nil {
		m.FormsCreated.Inc()
	}
}

func (m *Metrics) IncSubmissionsAccepted() {
	if m != nil {
		m.SubmissionsAccepted.Inc()
	}
}

func (m *Metrics) IncSubmissionsRejected() {
	if m != nil {
		m.SubmissionsRejected.Inc()
	}
}

// ObserveRequestDuration records request latency for one route and status.
func (m *Metrics) ObserveRequestDuration(route, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
