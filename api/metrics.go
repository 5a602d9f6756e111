package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Business events counted in dialiv_events_total
const (
	EVENT_CHAT_TOKEN_ISSUED        = "chat_token_issued"
	EVENT_COMPENSATED              = "compensated"
	EVENT_EMAIL_FAILED             = "email_failed"
	EVENT_EMAIL_SENT               = "email_sent"
	EVENT_LOGIN                    = "login"
	EVENT_PASSWORD_RESET           = "password_reset"
	EVENT_PASSWORD_RESET_REQUESTED = "password_reset_requested"
	EVENT_SHARING_BOUND            = "sharing_bound"
	EVENT_SHARING_INVITED          = "sharing_invited"
	EVENT_USER_CODE_ISSUED         = "user_code_issued"
	EVENT_USER_REGISTERED          = "user_registered"
	EVENT_USER_VERIFIED            = "user_verified"
)

type Metrics struct {
	requests   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	events     *prometheus.CounterVec
	exposition http.Handler
}

// NewMetrics registers the collectors of the api on reg and serves reg on /metrics
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialiv_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dialiv_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialiv_events_total",
				Help: "Total number of business events",
			},
			[]string{"event"},
		),
		exposition: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
}

func metricsProvider() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetrics(reg)
}

func (m *Metrics) event(name string) {
	m.events.WithLabelValues(name).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handler records the count and duration of every routed request, labelled with the
// route template rather than the raw path.
func (m *Metrics) handler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		h.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		status := strconv.Itoa(rec.status)
		m.requests.WithLabelValues(r.Method, path, status).Inc()
		m.durations.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}
