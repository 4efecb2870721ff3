package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	votesTotal      *prometheus.CounterVec
	issuesCreated   prometheus.Counter
	classifierCalls *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	votesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issue_votes_total",
		Help: "Total vote casts by outcome",
	}, []string{"outcome"})

	issuesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "issues_created_total",
		Help: "Total issues submitted",
	})

	classifierCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classifier_requests_total",
		Help: "Total classifier calls by result",
	}, []string{"result"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	registry.MustRegister(requestDuration, requestTotal, votesTotal, issuesCreated, classifierCalls, cacheHits, cacheMisses)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		votesTotal:      votesTotal,
		issuesCreated:   issuesCreated,
		classifierCalls: classifierCalls,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records duration and count for a completed request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// CountVote records a vote cast by outcome.
func (s *MetricsService) CountVote(outcome string) {
	s.votesTotal.WithLabelValues(outcome).Inc()
}

// CountIssueCreated records a submitted issue.
func (s *MetricsService) CountIssueCreated() {
	s.issuesCreated.Inc()
}

// CountClassifierCall records a classifier call result, "ok" or "error".
func (s *MetricsService) CountClassifierCall(result string) {
	s.classifierCalls.WithLabelValues(result).Inc()
}

// CountCacheLookup records a cache hit or miss.
func (s *MetricsService) CountCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}
