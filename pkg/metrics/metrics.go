// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RoutingTransitions counts call routing state changes.
	RoutingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_routing_transitions_total",
			Help: "Call routing state transitions",
		},
		[]string{"from", "event", "to"},
	)

	// RoutingDecisions counts parsed AI routing decisions by action and fallback use.
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_routing_decisions_total",
			Help: "AI routing decisions by action",
		},
		[]string{"action", "fallback"},
	)

	// LLMRequestDuration tracks inference latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_llm_request_duration_seconds",
			Help:    "AI inference request duration",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16},
		},
		[]string{"purpose", "status"},
	)

	// SMSMessages counts SMS traffic by direction and kind.
	SMSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_sms_messages_total",
			Help: "SMS messages handled",
		},
		[]string{"direction", "kind"},
	)

	// AgentHandoffs counts conversations handed to a human.
	AgentHandoffs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_agent_handoffs_total",
			Help: "Conversations switched to human mode",
		},
	)

	// CampaignSends counts per-recipient campaign send outcomes.
	CampaignSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_campaign_sends_total",
			Help: "Campaign recipient send outcomes",
		},
		[]string{"result"},
	)

	// CampaignBatchDuration tracks time to drain one batch.
	CampaignBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "switchboard_campaign_batch_duration_seconds",
			Help:    "Time to send and persist one campaign batch",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60},
		},
	)

	// QueueDeliveries counts work queue acknowledgements by outcome.
	QueueDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_queue_deliveries_total",
			Help: "Work queue deliveries by ack outcome",
		},
		[]string{"outcome"},
	)
)

// Middleware records request duration per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RequestDuration.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
