// Package metrics exposes the Prometheus collectors of the accounts server.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accounts_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
	AuthEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_auth_events_total",
		Help: "Account operations by event and outcome",
	}, []string{"event", "outcome"})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_media_uploads_total",
		Help: "Media uploads by kind and outcome",
	}, []string{"kind", "outcome"})
)

func init() {
	prometheus.MustRegister(HttpRequestsTotal, HttpRequestDuration, AuthEventsTotal, UploadsTotal)
}

// ObserveAuth counts one account operation. outcome is "success" or "failure".
func ObserveAuth(event string, err error) {
	AuthEventsTotal.WithLabelValues(event, outcome(err)).Inc()
}

// ObserveUpload counts one media upload of the given kind (avatar, cover).
func ObserveUpload(kind string, err error) {
	UploadsTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// unmatchedPath is the path label for requests that matched no route.
const unmatchedPath = "unmatched"

// GinMiddleware records request count and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
