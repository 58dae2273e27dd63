package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for inbound provider webhooks.
type WebhookMetrics struct {
	eventsTotal    *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcrm",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total inbound voice provider webhook events",
		}, []string{"event_type", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callcrm",
			Subsystem: "webhook",
			Name:      "ack_latency_seconds",
			Help:      "Time from request receipt to acknowledgement",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.webhookLatency)
	return m
}

// ObserveEvent counts one webhook delivery. outcome is accepted, duplicate, rejected or unrecognized.
func (m *WebhookMetrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *WebhookMetrics) ObserveLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

// PipelineMetrics tracks background call processing.
type PipelineMetrics struct {
	stageTotal      *prometheus.CounterVec
	extractionTotal *prometheus.CounterVec
	jobRetries      *prometheus.CounterVec
	jobsParked      *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcrm",
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Pipeline stage executions by outcome",
		}, []string{"stage", "outcome"}),
		extractionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcrm",
			Subsystem: "pipeline",
			Name:      "extraction_total",
			Help:      "Transcript extractions by path (model or fallback)",
		}, []string{"path"}),
		jobRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcrm",
			Subsystem: "jobs",
			Name:      "retries_total",
			Help:      "Jobs re-enqueued after a failed attempt",
		}, []string{"kind"}),
		jobsParked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcrm",
			Subsystem: "jobs",
			Name:      "parked_total",
			Help:      "Jobs parked after exhausting their attempt budget",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stageTotal, m.extractionTotal, m.jobRetries, m.jobsParked)
	return m
}

func (m *PipelineMetrics) ObserveStage(stage string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *PipelineMetrics) ObserveExtraction(path string) {
	if m == nil {
		return
	}
	m.extractionTotal.WithLabelValues(path).Inc()
}

func (m *PipelineMetrics) ObserveRetry(kind string) {
	if m == nil {
		return
	}
	m.jobRetries.WithLabelValues(kind).Inc()
}

func (m *PipelineMetrics) ObserveParked(kind string) {
	if m == nil {
		return
	}
	m.jobsParked.WithLabelValues(kind).Inc()
}
