// Package metrics holds the Prometheus collectors of the threadparse
// service. Collectors live on a private registry so that several instances
// can coexist in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics:
//   - threadparse_conversations_received_total{source} - conversations accepted
//   - threadparse_parse_jobs_total{result} - parse jobs by "ok", "retry" or "failed"
//   - threadparse_messages_extracted_total - messages persisted by parse jobs
//   - threadparse_parse_duration_seconds - engine run time per conversation
//   - threadparse_conversations_purged_total - conversations removed on expiry
//   - threadparse_notifications_total{result} - ready notifications by result
type Metrics struct {
	registry *prometheus.Registry

	ConversationsReceived *prometheus.CounterVec
	ParseJobs             *prometheus.CounterVec
	MessagesExtracted     prometheus.Counter
	ParseDuration         prometheus.Histogram
	ConversationsPurged   prometheus.Counter
	Notifications         *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		ConversationsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadparse_conversations_received_total",
			Help: "Total number of conversations accepted for parsing",
		}, []string{"source"}),
		ParseJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadparse_parse_jobs_total",
			Help: "Total number of parse jobs by result",
		}, []string{"result"}),
		MessagesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadparse_messages_extracted_total",
			Help: "Total number of messages extracted from conversations",
		}),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "threadparse_parse_duration_seconds",
			Help:    "Time spent segmenting one conversation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		ConversationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadparse_conversations_purged_total",
			Help: "Total number of expired conversations deleted",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadparse_notifications_total",
			Help: "Total number of conversation ready notifications by result",
		}, []string{"result"}),
	}
	registry.MustRegister(
		m.ConversationsReceived,
		m.ParseJobs,
		m.MessagesExtracted,
		m.ParseDuration,
		m.ConversationsPurged,
		m.Notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
