package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec
	errorCount      *prometheus.CounterVec

	upstreamCalls *prometheus.CounterVec

	broadcastSends   *prometheus.CounterVec
	registeredChats  prometheus.Counter
	leaderboardSubs  *prometheus.CounterVec
	liveConnections  prometheus.Gauge
	subscriptionHits *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "morentube_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	m.requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morentube_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	m.errorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morentube_errors_total",
			Help: "HTTP responses with 4xx or 5xx status",
		},
		[]string{"type", "endpoint"},
	)
	m.upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morentube_upstream_calls_total",
			Help: "Calls to Telegram, YouTube and storage APIs",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	m.broadcastSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morentube_broadcast_messages_total",
			Help: "Broadcast deliveries by result",
		},
		[]string{"result"},
	)
	m.registeredChats = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "morentube_registered_chats_total",
		Help: "Chats newly added to the broadcast registry",
	})
	m.leaderboardSubs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morentube_leaderboard_submissions_total",
			Help: "Leaderboard score submissions by result",
		},
		[]string{"result"},
	)
	m.liveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "morentube_leaderboard_live_connections",
		Help: "Open live leaderboard websockets",
	})
	m.subscriptionHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morentube_subscription_checks_total",
			Help: "Subscription checks by chat and result",
		},
		[]string{"chat", "subscribed"},
	)

	m.registry.MustRegister(
		m.requestDuration,
		m.requestCount,
		m.errorCount,
		m.upstreamCalls,
		m.broadcastSends,
		m.registeredChats,
		m.leaderboardSubs,
		m.liveConnections,
		m.subscriptionHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(method, endpoint string, status int, duration time.Duration) {
	s := strconv.Itoa(status)
	m.requestCount.WithLabelValues(method, endpoint, s).Inc()
	m.requestDuration.WithLabelValues(method, endpoint, s).Observe(duration.Seconds())
	if status >= 400 {
		errorType := "client_error"
		if status >= 500 {
			errorType = "server_error"
		}
		m.errorCount.WithLabelValues(errorType, endpoint).Inc()
	}
}

// RecordUpstream counts one outbound call. Suitable as a client OnCall hook.
func (m *Metrics) RecordUpstream(service, endpoint string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamCalls.WithLabelValues(service, endpoint, outcome).Inc()
}

func (m *Metrics) RecordBroadcast(sent, failed int) {
	m.broadcastSends.WithLabelValues("sent").Add(float64(sent))
	m.broadcastSends.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) IncrementRegisteredChats() {
	m.registeredChats.Inc()
}

func (m *Metrics) RecordLeaderboardSubmission(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.leaderboardSubs.WithLabelValues(result).Inc()
}

func (m *Metrics) SetLiveConnections(n int) {
	m.liveConnections.Set(float64(n))
}

func (m *Metrics) RecordSubscription(chat string, subscribed bool) {
	m.subscriptionHits.WithLabelValues(chat, strconv.FormatBool(subscribed)).Inc()
}

// GinMiddleware records every request under its route template so path
// parameters do not explode label cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// Summary flattens a few headline counters for the health endpoint.
func (m *Metrics) Summary() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	summary := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.Metric {
			switch mf.GetName() {
			case "morentube_requests_total":
				summary["total_requests"] += metric.GetCounter().GetValue()
			case "morentube_broadcast_messages_total":
				for _, l := range metric.GetLabel() {
					if l.GetName() == "result" {
						summary["broadcast_"+l.GetValue()] += metric.GetCounter().GetValue()
					}
				}
			case "morentube_registered_chats_total":
				summary["registered_chats"] = metric.GetCounter().GetValue()
			case "morentube_leaderboard_live_connections":
				summary["live_connections"] = metric.GetGauge().GetValue()
			}
		}
	}
	return summary, nil
}
