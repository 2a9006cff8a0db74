package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the lead intake pipeline and
// its outbound CRM/voice calls.
type LeadMetrics struct {
	submissionsTotal *prometheus.CounterVec
	tierTotal        *prometheus.CounterVec
	score            prometheus.Histogram
	outboundTotal    *prometheus.CounterVec
	outboundLatency  *prometheus.HistogramVec
	followUpTotal    *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcenda",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Lead submissions by outcome",
		}, []string{"outcome"}),
		tierTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcenda",
			Subsystem: "leads",
			Name:      "qualification_total",
			Help:      "Qualified leads by workflow tier",
		}, []string{"tier"}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "transcenda",
			Subsystem: "leads",
			Name:      "score",
			Help:      "Distribution of lead qualification scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcenda",
			Subsystem: "outbound",
			Name:      "requests_total",
			Help:      "Outbound CRM/voice API requests",
		}, []string{"service", "operation", "status"}),
		outboundLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "transcenda",
			Subsystem: "outbound",
			Name:      "latency_seconds",
			Help:      "Latency of outbound CRM/voice API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		followUpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcenda",
			Subsystem: "followup",
			Name:      "jobs_total",
			Help:      "Delayed voice follow-up jobs by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.tierTotal, m.score, m.outboundTotal, m.outboundLatency, m.followUpTotal)
	return m
}

// ObserveSubmission counts a submission outcome (accepted, invalid,
// duplicate, failed).
func (m *LeadMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveQualification(tier string, score int) {
	if m == nil {
		return
	}
	m.tierTotal.WithLabelValues(tier).Inc()
	m.score.Observe(float64(score))
}

// ObserveOutbound records one outbound API call. status is the HTTP status
// code as text, or "timeout"/"error" when no response arrived.
func (m *LeadMetrics) ObserveOutbound(service, operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(service, operation, status).Inc()
	m.outboundLatency.WithLabelValues(service, operation).Observe(seconds)
}

func (m *LeadMetrics) ObserveFollowUp(status string) {
	if m == nil {
		return
	}
	m.followUpTotal.WithLabelValues(status).Inc()
}
